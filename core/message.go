package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType discriminates bridge message payloads
type MessageType string

// Bridge message kinds
const (
	MessageSignal    MessageType = "SIGNAL"
	MessageTrade     MessageType = "TRADE"
	MessageStatus    MessageType = "STATUS"
	MessageHeartbeat MessageType = "HEARTBEAT"
	MessageError     MessageType = "ERROR"
)

// Message is the envelope exchanged with an external terminal bridge.
// Payloads are decoded once at the boundary into one of the typed events;
// exactly one of the event fields is non-nil, matching Type.
type Message struct {
	Type MessageType `json:"type"`
	Time time.Time   `json:"time"`

	Signal    *SignalEvent    `json:"signal,omitempty"`
	Trade     *TradeEvent     `json:"trade,omitempty"`
	Status    *StatusEvent    `json:"status,omitempty"`
	Heartbeat *HeartbeatEvent `json:"heartbeat,omitempty"`
	Error     *ErrorEvent     `json:"error,omitempty"`
}

// SignalEvent asks the terminal to open a position. Distances are in pips.
type SignalEvent struct {
	Symbol          string   `json:"symbol"`
	Side            SideType `json:"side"`
	StopLossPips    float64  `json:"stop_loss_pips"`
	TakeProfit1Pips float64  `json:"take_profit_partial_pips"`
	TakeProfit2Pips float64  `json:"take_profit_final_pips"`
	Comment         string   `json:"comment"`
}

// TradeEvent reports a lifecycle transition of a position
type TradeEvent struct {
	Ticket int64    `json:"ticket"`
	Symbol string   `json:"symbol"`
	Side   SideType `json:"side"`
	Action string   `json:"action"` // OPEN, CLOSE or PARTIAL_CLOSE
	Volume float64  `json:"volume"`
	Price  float64  `json:"price"`
	Profit float64  `json:"profit"`
	Reason string   `json:"reason"`
}

// StatusEvent reports terminal-side account state
type StatusEvent struct {
	Connected bool    `json:"connected"`
	Balance   float64 `json:"balance"`
	Equity    float64 `json:"equity"`
	OpenCount int     `json:"open_count"`
}

// HeartbeatEvent signals liveness of either side of the bridge
type HeartbeatEvent struct {
	Source string `json:"source"`
}

// ErrorEvent reports a terminal-side failure
type ErrorEvent struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// DecodeMessage parses and validates a bridge message envelope
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode bridge message: %w", err)
	}

	if err := msg.validate(); err != nil {
		return Message{}, err
	}

	return msg, nil
}

func (m Message) validate() error {
	switch m.Type {
	case MessageSignal:
		if m.Signal == nil {
			return fmt.Errorf("message %s: missing signal payload", m.Type)
		}
	case MessageTrade:
		if m.Trade == nil {
			return fmt.Errorf("message %s: missing trade payload", m.Type)
		}
	case MessageStatus:
		if m.Status == nil {
			return fmt.Errorf("message %s: missing status payload", m.Type)
		}
	case MessageHeartbeat:
		if m.Heartbeat == nil {
			return fmt.Errorf("message %s: missing heartbeat payload", m.Type)
		}
	case MessageError:
		if m.Error == nil {
			return fmt.Errorf("message %s: missing error payload", m.Type)
		}
	default:
		return fmt.Errorf("unknown message type: %q", m.Type)
	}
	return nil
}
