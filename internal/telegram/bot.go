package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/web3-frozen/nav-oracle/internal/fetch"
)

const telegramAPI = "https://api.telegram.org/bot"

// Bot posts operator alerts to a single chat.
type Bot struct {
	token   string
	chatID  int64
	client  *fetch.Client
	baseURL string
}

func NewBot(token string, chatID int64, client *fetch.Client) *Bot {
	return &Bot{token: token, chatID: chatID, client: client, baseURL: telegramAPI}
}

// Alert sends text to the configured chat. Its signature matches nav.AlertFunc.
func (b *Bot) Alert(ctx context.Context, text string) error {
	return b.SendMessage(ctx, b.chatID, text)
}

// SendMessage sends a text message to a Telegram chat.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := b.client.Do(ctx, fetch.Request{
		Method:     http.MethodPost,
		URL:        b.baseURL + b.token + "/sendMessage",
		SecretPath: true,
		Body: map[string]any{
			"chat_id":                  chatID,
			"text":                     text,
			"disable_web_page_preview": true,
		},
	})
	if err == nil {
		return nil
	}

	var ferr *fetch.FetchError
	if errors.As(err, &ferr) && ferr.Kind == fetch.KindHTTPStatus {
		var errResp struct {
			Description string `json:"description"`
		}
		if json.Unmarshal([]byte(ferr.Detail), &errResp) == nil && errResp.Description != "" {
			return fmt.Errorf("telegram API error %d: %s", ferr.Status, errResp.Description)
		}
	}
	return fmt.Errorf("send message: %w", err)
}
