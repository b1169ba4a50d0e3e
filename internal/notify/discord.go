package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
)

// Embed colours.
const (
	colorInfo    = 0x3498db
	colorWarn    = 0xe67e22
	colorSuccess = 0x2ecc71
	colorTrade   = 0x95a5a6
)

// DiscordSender posts market events to a Discord webhook as embeds.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender with a 10-second HTTP timeout.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

type discordPayload struct {
	Embeds          []discordEmbed `json:"embeds"`
	AllowedMentions map[string]any `json:"allowed_mentions"`
}

// SendLifecycle implements Sender.
func (d *DiscordSender) SendLifecycle(ctx context.Context, m domain.Market, ev domain.LifecycleEvent) error {
	title, message := FormatLifecycle(m, ev)
	embed := discordEmbed{
		Title:       title,
		Description: message,
		Color:       lifecycleColor(ev.Kind),
		Fields: []discordField{
			{Name: "Market", Value: m.ID, Inline: true},
			{Name: "Actor", Value: orDash(ev.Actor), Inline: true},
		},
		Timestamp: timestamp(ev.CreatedAt),
	}
	if ev.Kind == domain.LifecycleResolved {
		embed.Fields = append(embed.Fields, discordField{Name: "Winner", Value: winnerName(m, ev.Winner), Inline: true})
	}
	return d.post(ctx, embed)
}

// SendTrade implements Sender.
func (d *DiscordSender) SendTrade(ctx context.Context, m domain.Market, ev domain.TradeEvent) error {
	title, message := FormatTrade(m, ev)
	return d.post(ctx, discordEmbed{
		Title:       title,
		Description: message,
		Color:       colorTrade,
		Fields: []discordField{
			{Name: "Market", Value: m.ID, Inline: true},
			{Name: "Trader", Value: ev.Trader, Inline: true},
			{Name: "In", Value: Amount(ev.AmountIn), Inline: true},
			{Name: "Out", Value: Amount(ev.AmountOut), Inline: true},
			{Name: "Pool value", Value: Amount(ev.PoolValue), Inline: true},
		},
		Timestamp: timestamp(ev.CreatedAt),
	})
}

func (d *DiscordSender) post(ctx context.Context, embed discordEmbed) error {
	body, err := json.Marshal(discordPayload{
		Embeds:          []discordEmbed{embed},
		AllowedMentions: map[string]any{"parse": []string{}},
	})
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}

func lifecycleColor(kind domain.LifecycleKind) int {
	switch kind {
	case domain.LifecycleHalted:
		return colorWarn
	case domain.LifecycleResolved:
		return colorSuccess
	default:
		return colorInfo
	}
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
