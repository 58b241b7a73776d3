package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TelegramConfig holds the bot credentials. Both fields are required.
// Credentials are constructed once at startup and passed in explicitly —
// never read from ambient process state inside the connector.
type TelegramConfig struct {
	// BotToken is the Telegram bot API token (from @BotFather).
	BotToken string `yaml:"bot_token"`
	// ChatID is the destination chat.
	ChatID string `yaml:"chat_id"`
	// BaseURL overrides the API endpoint, mainly for tests.
	// Default: https://api.telegram.org.
	BaseURL string `yaml:"base_url"`
	// Timeout bounds each API call. Default: 30s.
	Timeout time.Duration `yaml:"timeout"`
}

func (c *TelegramConfig) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.telegram.org"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Telegram delivers notifications through the Telegram bot API using
// sendMessage for text and sendDocument for attachments.
type Telegram struct {
	config TelegramConfig
	client *http.Client
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram: bot_token is required")
	}
	if cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram: chat_id is required")
	}
	cfg.defaults()
	return &Telegram{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// SendText posts a sendMessage call.
func (t *Telegram) SendText(ctx context.Context, message string) error {
	form := url.Values{}
	form.Set("chat_id", t.config.ChatID)
	form.Set("text", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.endpoint("sendMessage"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telegram: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return t.do(req, "sendMessage")
}

// SendFile posts a sendDocument call with the file as multipart payload.
func (t *Telegram) SendFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("telegram: open document: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("chat_id", t.config.ChatID); err != nil {
		return fmt.Errorf("telegram: write field: %w", err)
	}
	part, err := mw.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("telegram: create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("telegram: copy document: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("telegram: close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.endpoint("sendDocument"), &body)
	if err != nil {
		return fmt.Errorf("telegram: new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return t.do(req, "sendDocument")
}

func (t *Telegram) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.config.BaseURL, t.config.BotToken, method)
}

func (t *Telegram) do(req *http.Request, method string) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram: %s: status %d", method, resp.StatusCode)
	}
	return nil
}
