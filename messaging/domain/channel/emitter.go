package channel

import (
	"fmt"
	"sync"

	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"github.com/sirupsen/logrus"
)

// Dispatcher decouples listener invocation from the adapter's inbound event
// loop. Jobs for the same chat key run in order; jobs for different chats may
// run concurrently. pkg/msgworker provides the production implementation.
type Dispatcher interface {
	Dispatch(connectionID uint, chatKey string, fn func())
}

// goDispatcher is the fallback when no pool is wired: one goroutine per event.
type goDispatcher struct{}

func (goDispatcher) Dispatch(_ uint, _ string, fn func()) {
	go fn()
}

// Emitter owns an adapter's listener registrations. Every variant embeds one;
// it is the only behavior the five adapters share.
type Emitter struct {
	connectionID uint
	dispatcher   Dispatcher

	mu              sync.RWMutex
	msgListeners    []MessageListener
	statusListeners []StatusListener
}

func NewEmitter(connectionID uint, dispatcher Dispatcher) *Emitter {
	if dispatcher == nil {
		dispatcher = goDispatcher{}
	}
	return &Emitter{connectionID: connectionID, dispatcher: dispatcher}
}

func (e *Emitter) OnMessage(listener MessageListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.msgListeners = append(e.msgListeners, listener)
}

func (e *Emitter) OnConnectionUpdate(listener StatusListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statusListeners = append(e.statusListeners, listener)
}

// EmitMessage hands msg to every registered listener in registration order.
// The invocation runs off the caller's goroutine so a slow listener cannot
// stall the adapter's event loop; ordering per chat is preserved by the
// dispatcher.
func (e *Emitter) EmitMessage(msg message.Normalized) {
	e.mu.RLock()
	listeners := make([]MessageListener, len(e.msgListeners))
	copy(listeners, e.msgListeners)
	e.mu.RUnlock()

	if len(listeners) == 0 {
		return
	}

	e.dispatcher.Dispatch(e.connectionID, msg.From, func() {
		for i, listener := range listeners {
			invoke(e.connectionID, i, func() { listener(msg) })
		}
	})
}

// EmitStatus notifies status listeners. Status changes are rare and ordered
// per connection, so they dispatch under the connection id itself.
func (e *Emitter) EmitStatus(status ConnectionStatus) {
	e.mu.RLock()
	listeners := make([]StatusListener, len(e.statusListeners))
	copy(listeners, e.statusListeners)
	e.mu.RUnlock()

	if len(listeners) == 0 {
		return
	}

	e.dispatcher.Dispatch(e.connectionID, fmt.Sprintf("status-%d", e.connectionID), func() {
		for i, listener := range listeners {
			invoke(e.connectionID, i, func() { listener(status) })
		}
	})
}

func invoke(connectionID uint, index int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"connection_id": connectionID,
				"listener":      index,
			}).Errorf("[CHANNEL] Listener panicked: %v", r)
		}
	}()
	fn()
}
