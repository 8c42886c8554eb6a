package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/jhquant/pkg/config"
	"github.com/wonny/jhquant/pkg/httputil"
	"github.com/wonny/jhquant/pkg/logger"
)

const (
	telegramTimeout   = 10 * time.Second
	telegramParseMode = "Markdown"
)

// sendMessageRequest is the sendMessage body
type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// sendMessageResponse is the subset of the Bot API envelope we read
type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// TelegramError is a Bot API reply with ok=false
type TelegramError struct {
	Code        int
	Description string
}

func (e *TelegramError) Error() string {
	return fmt.Sprintf("telegram error %d: %s", e.Code, e.Description)
}

// Telegram sends messages through the Bot API sendMessage method
type Telegram struct {
	http    *httputil.Client
	logger  *logger.Logger
	token   string
	chatID  string
	baseURL string
}

// NewTelegram creates a Telegram notifier. Missing credentials make it a no-op.
func NewTelegram(cfg config.TelegramConfig, log *logger.Logger) *Telegram {
	return &Telegram{
		http:    httputil.NewWithTimeout(log, telegramTimeout).WithRetry(1, time.Second),
		logger:  log.WithComponent("telegram"),
		token:   cfg.Token,
		chatID:  cfg.ChatID,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// Enabled reports whether both token and chat id are configured
func (t *Telegram) Enabled() bool {
	return t.token != "" && t.chatID != ""
}

// Send posts text to the configured chat
func (t *Telegram) Send(ctx context.Context, text string) error {
	if !t.Enabled() {
		t.logger.Debug("Telegram not configured, message skipped")
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	resp, err := t.http.PostJSON(ctx, url, sendMessageRequest{
		ChatID:    t.chatID,
		Text:      text,
		ParseMode: telegramParseMode,
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}

	var out sendMessageResponse
	if err := httputil.DecodeJSON(resp, &out); err != nil {
		// Bot API는 4xx에도 JSON 본문을 돌려주므로 description을 살린다
		var se *httputil.StatusError
		if errors.As(err, &se) {
			return &TelegramError{Code: se.StatusCode, Description: se.Body}
		}
		return fmt.Errorf("telegram send: %w", err)
	}
	if !out.OK {
		return &TelegramError{Code: out.ErrorCode, Description: out.Description}
	}

	t.logger.WithField("chars", len(text)).Debug("Telegram message sent")
	return nil
}
