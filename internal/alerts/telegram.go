package alerts

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram delivers alert reports through the Bot API. The chat target
// is either a numeric chat id or an @channel username.
type Telegram struct {
	token    string
	chatID   string
	endpoint string
	client   *http.Client

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// TelegramOption customizes the notifier.
type TelegramOption func(*Telegram)

// WithTelegramEndpoint overrides the Bot API endpoint format, used by
// tests.
func WithTelegramEndpoint(format string) TelegramOption {
	return func(t *Telegram) { t.endpoint = format }
}

// WithTelegramClient overrides the HTTP client.
func WithTelegramClient(c *http.Client) TelegramOption {
	return func(t *Telegram) { t.client = c }
}

// NewTelegram builds a notifier for one bot token and chat. The bot
// authorizes lazily on first Notify, so construction never touches the
// network.
func NewTelegram(token, chatID string, opts ...TelegramOption) *Telegram {
	t := &Telegram{
		token:    token,
		chatID:   chatID,
		endpoint: tgbotapi.APIEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Telegram) connect() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(t.token, t.endpoint, t.client)
	if err != nil {
		return nil, fmt.Errorf("telegram: authorizing bot: %w", err)
	}
	t.bot = bot
	return bot, nil
}

func (t *Telegram) message(text string) (tgbotapi.MessageConfig, error) {
	if strings.HasPrefix(t.chatID, "@") {
		return tgbotapi.NewMessageToChannel(t.chatID, text), nil
	}
	id, err := strconv.ParseInt(t.chatID, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, fmt.Errorf("telegram: chat id %q: %w", t.chatID, err)
	}
	return tgbotapi.NewMessage(id, text), nil
}

// Notify implements Notifier.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bot, err := t.connect()
	if err != nil {
		return err
	}
	msg, err := t.message(text)
	if err != nil {
		return err
	}
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: sendMessage: %w", err)
	}
	return nil
}
