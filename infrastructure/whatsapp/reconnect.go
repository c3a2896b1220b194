package whatsapp

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/pkg/apperror"
	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
)

// closedConnSignatures are the transport-level error strings treated as "the
// socket died underneath us". Anything else propagates untouched.
var closedConnSignatures = []string{
	"websocket not connected",
	"websocket disconnected",
	"websocket is closed",
	"connection closed",
	"connection reset",
	"broken pipe",
	"use of closed network connection",
}

func isClosedConnErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, whatsmeow.ErrNotConnected) || errors.Is(err, net.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range closedConnSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// ensureReady performs the pre-send readiness check: the transport must be
// actually open, not merely referenced. A failed check triggers exactly one
// reinitialization before giving up with SOCKET_NOT_AVAILABLE.
func (wa *Adapter) ensureReady(ctx context.Context) (Transport, error) {
	cli := wa.transport()
	if cli != nil && cli.IsConnected() {
		return cli, nil
	}

	cli, err := wa.reinitialize(ctx)
	if err != nil {
		wa.setStatus(channel.StatusDisconnected)
		return nil, apperror.SocketNotAvailable(err)
	}
	if !cli.IsConnected() {
		wa.setStatus(channel.StatusDisconnected)
		return nil, apperror.SocketNotAvailable(errors.New("transport still closed after reinitialization"))
	}
	return cli, nil
}

// reinitialize re-acquires the current shared transport handle from the pool
// and reconnects it when needed. Idempotent: concurrent sends racing a dead
// socket may each call this, but the provider hands both the same handle.
func (wa *Adapter) reinitialize(ctx context.Context) (Transport, error) {
	logrus.WithField("connection_id", wa.connectionID).Debug("[WHATSAPP] Reinitializing transport")

	cli, err := wa.provider.AcquireClient(ctx, wa.connectionID)
	if err != nil {
		return nil, err
	}

	wa.mu.Lock()
	if wa.client != cli {
		if wa.handlerID != 0 && wa.client != nil {
			wa.client.RemoveEventHandler(wa.handlerID)
		}
		wa.client = cli
		wa.handlerID = cli.AddEventHandler(wa.handleEvent)
	}
	wa.mu.Unlock()

	if !cli.IsConnected() {
		if err := cli.Connect(); err != nil {
			return nil, err
		}
	}
	return cli, nil
}

// sendWithRetry is the bounded reconnect-and-retry-once policy: readiness
// check, send, and on a closed-connection failure one fixed backoff, one
// reinitialization and one retry. A second failure propagates to the caller
// unmodified; unbounded retries under a dead transport would only pin the
// failure in place and starve other senders.
func (wa *Adapter) sendWithRetry(ctx context.Context, to types.JID, msg *waE2E.Message) (whatsmeow.SendResponse, error) {
	cli, err := wa.ensureReady(ctx)
	if err != nil {
		return whatsmeow.SendResponse{}, err
	}

	resp, err := cli.SendMessage(ctx, to, msg)
	if err == nil {
		return resp, nil
	}
	if !isClosedConnErr(err) {
		return whatsmeow.SendResponse{}, err
	}

	logrus.WithError(err).WithField("connection_id", wa.connectionID).
		Warn("[WHATSAPP] Send hit closed transport, retrying once after backoff")

	backoff := time.Second
	if wa.cfg != nil && wa.cfg.RetryBackoff > 0 {
		backoff = wa.cfg.RetryBackoff
	}
	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return whatsmeow.SendResponse{}, ctx.Err()
	}

	cli, rerr := wa.reinitialize(ctx)
	if rerr != nil {
		return whatsmeow.SendResponse{}, apperror.ConnectionClosed(err)
	}

	return cli.SendMessage(ctx, to, msg)
}
