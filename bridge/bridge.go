// Package bridge exchanges typed JSON messages with a trading terminal
// through files in a shared directory. Outbound signals and heartbeats are
// written atomically; inbound trade and status reports are consumed on
// read so each message is processed once.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quantfx/pipstride/core"
)

// File names inside the shared directory, matching what the terminal side
// expects
const (
	signalFileName    = "python_signals.json"
	heartbeatFileName = "heartbeat.json"
	commandFileName   = "python_to_mt5.json"
	tradesFileName    = "mt5_to_python.json"
	statusFileName    = "mt5_status.json"
)

// Bridge reads and writes message files in one shared directory
type Bridge struct {
	dir string
}

// New creates a bridge over the given directory, creating it if needed
func New(dir string) (*Bridge, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bridge dir: %w", err)
	}
	return &Bridge{dir: dir}, nil
}

// WriteSignal publishes an entry request for the terminal
func (b *Bridge) WriteSignal(event core.SignalEvent) error {
	msg := core.Message{
		Type:   core.MessageSignal,
		Time:   time.Now().UTC(),
		Signal: &event,
	}
	return b.writeMessage(signalFileName, msg)
}

// WriteHeartbeat publishes liveness of this side
func (b *Bridge) WriteHeartbeat(source string) error {
	msg := core.Message{
		Type:      core.MessageHeartbeat,
		Time:      time.Now().UTC(),
		Heartbeat: &core.HeartbeatEvent{Source: source},
	}
	return b.writeMessage(heartbeatFileName, msg)
}

// ReadTrade consumes the terminal's pending trade report, if any. The
// second return value is false when no report is waiting.
func (b *Bridge) ReadTrade() (core.TradeEvent, bool, error) {
	msg, ok, err := b.readMessage(tradesFileName, true)
	if err != nil || !ok {
		return core.TradeEvent{}, false, err
	}
	if msg.Type != core.MessageTrade {
		return core.TradeEvent{}, false, fmt.Errorf("expected %s message, got %s", core.MessageTrade, msg.Type)
	}
	return *msg.Trade, true, nil
}

// ReadStatus returns the terminal's last published account status. Status
// is a snapshot, so the file is left in place.
func (b *Bridge) ReadStatus() (core.StatusEvent, bool, error) {
	msg, ok, err := b.readMessage(statusFileName, false)
	if err != nil || !ok {
		return core.StatusEvent{}, false, err
	}
	if msg.Type != core.MessageStatus {
		return core.StatusEvent{}, false, fmt.Errorf("expected %s message, got %s", core.MessageStatus, msg.Type)
	}
	return *msg.Status, true, nil
}

// writeMessage writes via a temp file and rename so the terminal never
// observes a partial message
func (b *Bridge) writeMessage(name string, msg core.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msg.Type, err)
	}

	path := filepath.Join(b.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	return nil
}

func (b *Bridge) readMessage(name string, consume bool) (core.Message, bool, error) {
	path := filepath.Join(b.dir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return core.Message{}, false, nil
	}
	if err != nil {
		return core.Message{}, false, fmt.Errorf("read %s: %w", name, err)
	}

	msg, err := core.DecodeMessage(data)
	if err != nil {
		return core.Message{}, false, err
	}

	if consume {
		if err := os.Remove(path); err != nil {
			return core.Message{}, false, fmt.Errorf("consume %s: %w", name, err)
		}
	}

	return msg, true, nil
}
