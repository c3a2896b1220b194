package channel

import (
	"testing"

	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"github.com/stretchr/testify/assert"
)

// inlineDispatcher runs jobs on the caller's goroutine so assertions need no
// synchronization.
type inlineDispatcher struct{}

func (inlineDispatcher) Dispatch(_ uint, _ string, fn func()) { fn() }

func TestEmitMessageInRegistrationOrder(t *testing.T) {
	emitter := NewEmitter(1, inlineDispatcher{})

	var order []int
	emitter.OnMessage(func(msg message.Normalized) { order = append(order, 1) })
	emitter.OnMessage(func(msg message.Normalized) { order = append(order, 2) })
	emitter.OnMessage(func(msg message.Normalized) { order = append(order, 3) })

	emitter.EmitMessage(message.Normalized{ID: "M1", From: "chat-a"})

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestPanickingListenerDoesNotStopOthers(t *testing.T) {
	emitter := NewEmitter(1, inlineDispatcher{})

	var reached bool
	emitter.OnMessage(func(msg message.Normalized) { panic("listener bug") })
	emitter.OnMessage(func(msg message.Normalized) { reached = true })

	emitter.EmitMessage(message.Normalized{ID: "M1", From: "chat-a"})

	assert.True(t, reached)
}

func TestEmitStatus(t *testing.T) {
	emitter := NewEmitter(1, inlineDispatcher{})

	var got []ConnectionStatus
	emitter.OnConnectionUpdate(func(status ConnectionStatus) { got = append(got, status) })

	emitter.EmitStatus(StatusConnecting)
	emitter.EmitStatus(StatusConnected)

	assert.Equal(t, []ConnectionStatus{StatusConnecting, StatusConnected}, got)
}

func TestEmitWithoutListenersIsANoOp(t *testing.T) {
	emitter := NewEmitter(1, inlineDispatcher{})
	emitter.EmitMessage(message.Normalized{ID: "M1"})
	emitter.EmitStatus(StatusDisconnected)
}

func TestListenerRegisteredAfterEmitMissesNothingFurther(t *testing.T) {
	emitter := NewEmitter(1, inlineDispatcher{})

	emitter.EmitMessage(message.Normalized{ID: "M1", From: "chat-a"})

	var seen []string
	emitter.OnMessage(func(msg message.Normalized) { seen = append(seen, msg.ID) })
	emitter.EmitMessage(message.Normalized{ID: "M2", From: "chat-a"})

	assert.Equal(t, []string{"M2"}, seen)
}
