package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
)

const telegramAPI = "https://api.telegram.org"

// markdownEscaper escapes the legacy Markdown entities Telegram parses.
var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

// TelegramSender posts market events to a chat via the Telegram Bot API.
type TelegramSender struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
}

// NewTelegramSender creates a TelegramSender for the given bot token and chat
// ID with a 10-second HTTP timeout. An empty baseURL uses the public API.
func NewTelegramSender(baseURL, token, chatID string) *TelegramSender {
	if baseURL == "" {
		baseURL = telegramAPI
	}
	return &TelegramSender{
		baseURL: baseURL,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// SendLifecycle implements Sender.
func (t *TelegramSender) SendLifecycle(ctx context.Context, m domain.Market, ev domain.LifecycleEvent) error {
	title, message := FormatLifecycle(m, ev)
	return t.post(ctx, renderTelegram(title, message, m.ID))
}

// SendTrade implements Sender.
func (t *TelegramSender) SendTrade(ctx context.Context, m domain.Market, ev domain.TradeEvent) error {
	title, message := FormatTrade(m, ev)
	return t.post(ctx, renderTelegram(title, message, ev.ID))
}

// renderTelegram puts the title in bold and the reference in code style.
func renderTelegram(title, message, ref string) string {
	return fmt.Sprintf("*%s* `%s`\n%s", markdownEscaper.Replace(title), strings.ReplaceAll(ref, "`", ""), markdownEscaper.Replace(message))
}

func (t *TelegramSender) post(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)

	body, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}
