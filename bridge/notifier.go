package bridge

import (
	"time"

	"github.com/quantfx/pipstride/core"
	"github.com/quantfx/pipstride/logger"
)

// Notifier mirrors trade lifecycle events onto the bridge so an attached
// terminal can follow the simulated account. It implements core.Notifier.
type Notifier struct {
	bridge *Bridge
	log    logger.Logger
}

// NewNotifier creates a notifier publishing through the given bridge
func NewNotifier(bridge *Bridge, log logger.Logger) *Notifier {
	return &Notifier{bridge: bridge, log: log}
}

// Notify refreshes the heartbeat; plain text has no message type on the
// wire, so liveness is all it can convey
func (n *Notifier) Notify(_ string) {
	if err := n.bridge.WriteHeartbeat("pipstride"); err != nil {
		n.log.WithError(err).Error("Bridge heartbeat failed")
	}
}

// OnTrade publishes a trade lifecycle event to the command file
func (n *Notifier) OnTrade(event core.TradeEvent) {
	msg := core.Message{
		Type:  core.MessageTrade,
		Time:  time.Now().UTC(),
		Trade: &event,
	}
	if err := n.bridge.writeMessage(commandFileName, msg); err != nil {
		n.log.WithError(err).Error("Bridge trade publish failed")
	}
}

// OnError publishes a failure to the command file
func (n *Notifier) OnError(err error) {
	msg := core.Message{
		Type:  core.MessageError,
		Time:  time.Now().UTC(),
		Error: &core.ErrorEvent{Message: err.Error()},
	}
	if writeErr := n.bridge.writeMessage(commandFileName, msg); writeErr != nil {
		n.log.WithError(writeErr).Error("Bridge error publish failed")
	}
}
