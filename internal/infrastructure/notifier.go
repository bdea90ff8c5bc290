package infrastructure

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// OpsNotifier forwards notable pipeline events to an operator Telegram chat.
// It is a best-effort bus listener: send failures are logged, never surfaced.
type OpsNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewOpsNotifier connects the bot. A missing or invalid token disables the
// notifier rather than failing startup.
func NewOpsNotifier(token string, chatID int64) *OpsNotifier {
	if token == "" {
		return &OpsNotifier{}
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		slog.Warn("ops notifier disabled", "err", err)
		return &OpsNotifier{}
	}
	return &OpsNotifier{bot: bot, chatID: chatID}
}

// Register subscribes the notifier to the events operators care about.
func (n *OpsNotifier) Register(bus *Bus) {
	bus.Subscribe(EventAwaitingApproval, func(payload map[string]interface{}) {
		n.send(fmt.Sprintf("⏳ Task %v needs approval (intent %v, confidence %v)",
			payload["task_id"], payload["intent"], payload["confidence"]))
	})
	bus.Subscribe(EventAutomationFailed, func(payload map[string]interface{}) {
		n.send(fmt.Sprintf("❌ Automation failed for task %v: %v",
			payload["task_id"], payload["error"]))
	})
}

func (n *OpsNotifier) send(text string) {
	if n.bot == nil {
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		slog.Warn("ops notification failed", "err", err)
	}
}
