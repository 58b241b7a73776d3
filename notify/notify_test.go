package notify

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func TestTelegram_SendText(t *testing.T) {
	var gotPath, gotChatID, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		r.ParseForm()
		gotChatID = r.FormValue("chat_id")
		gotText = r.FormValue("text")
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	tg, err := NewTelegram(TelegramConfig{BotToken: "123:ABC", ChatID: "42", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if err := tg.SendText(context.Background(), "changed!"); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/bot123:ABC/sendMessage" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotChatID != "42" || gotText != "changed!" {
		t.Fatalf("unexpected form values: chat_id=%q text=%q", gotChatID, gotText)
	}
}

func TestTelegram_SendFile(t *testing.T) {
	var gotChatID, gotFilename, gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Error(err)
			return
		}
		gotChatID = r.FormValue("chat_id")
		f, hdr, err := r.FormFile("document")
		if err != nil {
			t.Error(err)
			return
		}
		defer f.Close()
		var buf bytes.Buffer
		buf.ReadFrom(f)
		gotFilename = hdr.Filename
		gotContent = buf.String()
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "report.txt")
	if err := os.WriteFile(path, []byte("[!] Finished\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tg, err := NewTelegram(TelegramConfig{BotToken: "123:ABC", ChatID: "42", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if err := tg.SendFile(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if gotChatID != "42" || gotFilename != "report.txt" {
		t.Fatalf("unexpected upload: chat_id=%q filename=%q", gotChatID, gotFilename)
	}
	if gotContent != "[!] Finished\n" {
		t.Fatalf("unexpected content %q", gotContent)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal("SendFile must not delete the caller's file")
	}
}

func TestTelegram_BadStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	tg, err := NewTelegram(TelegramConfig{BotToken: "bad", ChatID: "42", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if err := tg.SendText(context.Background(), "hi"); err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestTelegram_RequiresCredentials(t *testing.T) {
	if _, err := NewTelegram(TelegramConfig{ChatID: "42"}); err == nil {
		t.Fatal("expected error for missing bot_token")
	}
	if _, err := NewTelegram(TelegramConfig{BotToken: "123:ABC"}); err == nil {
		t.Fatal("expected error for missing chat_id")
	}
}

func TestWebhook_SendText(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		buf.ReadFrom(r.Body)
		gotBody = buf.String()
	}))
	t.Cleanup(srv.Close)

	wh := NewWebhook(srv.URL)
	if err := wh.SendText(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(gotBody, `"type":"text"`) || !strings.Contains(gotBody, `"text":"hello"`) {
		t.Fatalf("unexpected body %q", gotBody)
	}
}

func TestWebhook_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
	}))
	t.Cleanup(srv.Close)

	wh := NewWebhook(srv.URL, WithWebhookRetries(1))
	if err := wh.SendText(context.Background(), "retry me"); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestWebhook_ExhaustedRetriesIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	wh := NewWebhook(srv.URL, WithWebhookRetries(0))
	if err := wh.SendText(context.Background(), "doomed"); err == nil {
		t.Fatal("expected error after exhausted retries")
	}
}

type flakyNotifier struct {
	err   error
	texts []string
}

func (f *flakyNotifier) SendText(_ context.Context, msg string) error {
	f.texts = append(f.texts, msg)
	return f.err
}

func (f *flakyNotifier) SendFile(context.Context, string) error { return f.err }

func TestRouter_FansOutAndReturnsFirstError(t *testing.T) {
	failing := &flakyNotifier{err: errors.New("boom")}
	healthy := &flakyNotifier{}
	r := NewRouter(nil, failing, healthy)

	err := r.SendText(context.Background(), "msg")
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected first error, got %v", err)
	}
	if len(healthy.texts) != 1 {
		t.Fatal("healthy notifier must still receive the message")
	}
}

func TestStdout_SendText(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)
	if err := s.SendText(context.Background(), "note"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "note\n" {
		t.Fatalf("got %q", buf.String())
	}
}
