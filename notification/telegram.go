// Package notification provides implementations for delivering signal and
// trade notifications
package notification

import (
	"fmt"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/quantfx/pipstride/core"
	"github.com/quantfx/pipstride/logger"
)

const pollingTimeout = 10 * time.Second

// Telegram delivers trade lifecycle messages to a single chat. It
// implements core.NotifierWithStart.
type Telegram struct {
	client *tb.Bot
	chat   *tb.Chat
	log    logger.Logger
}

// NewTelegram creates a notifier bound to one user's chat
func NewTelegram(token string, userID int64, log logger.Logger) (*Telegram, error) {
	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     token,
		Poller:    &tb.LongPoller{Timeout: pollingTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Telegram{
		client: client,
		chat:   &tb.Chat{ID: userID},
		log:    log,
	}, nil
}

// Start runs the bot's polling loop. Blocks until the client stops.
func (t *Telegram) Start() {
	t.log.Info("Telegram notifier started")
	t.client.Start()
}

// Notify sends a plain text message
func (t *Telegram) Notify(message string) {
	if _, err := t.client.Send(t.chat, message); err != nil {
		t.log.WithError(err).Error("Telegram send failed")
	}
}

// OnTrade formats and sends a trade lifecycle event
func (t *Telegram) OnTrade(event core.TradeEvent) {
	var title string
	switch event.Action {
	case "OPEN":
		title = "🟢 *Trade opened*"
	case "PARTIAL_CLOSE":
		title = "🟡 *Partial close*"
	default:
		title = "🔴 *Trade closed*"
	}

	message := fmt.Sprintf("%s\nTicket: `%d`\n%s %s %.2f @ %.5f",
		title, event.Ticket, event.Symbol, event.Side, event.Volume, event.Price)
	if event.Action != "OPEN" {
		message += fmt.Sprintf("\nProfit: `%.2f`\nReason: %s", event.Profit, event.Reason)
	}

	t.Notify(message)
}

// OnError reports a failure
func (t *Telegram) OnError(err error) {
	t.Notify(fmt.Sprintf("🚨 *ERROR*\n`%s`", err))
}
