// Package notify delivers change notifications to external endpoints.
//
// A Notifier accepts a text message or a file attachment and reports
// success or failure. Delivery is best-effort: the poller treats a failed
// send as a logged event, never as a reason to stop watching.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Notifier is the outbound delivery capability.
type Notifier interface {
	// SendText delivers a plain text message.
	SendText(ctx context.Context, message string) error
	// SendFile delivers the file at path as an attachment. The caller
	// retains ownership of the file; SendFile never deletes it.
	SendFile(ctx context.Context, path string) error
}

// Router fans a notification out to all configured notifiers. One failing
// notifier does not block the others — errors are logged and the first
// encountered is returned.
type Router struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewRouter creates a fan-out router delivering to all notifiers.
func NewRouter(logger *slog.Logger, notifiers ...Notifier) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{notifiers: notifiers, logger: logger}
}

// SendText delivers message to every notifier.
func (r *Router) SendText(ctx context.Context, message string) error {
	var firstErr error
	for _, n := range r.notifiers {
		if err := n.SendText(ctx, message); err != nil {
			r.logger.Warn("notify: send text failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// SendFile delivers the file to every notifier.
func (r *Router) SendFile(ctx context.Context, path string) error {
	var firstErr error
	for _, n := range r.notifiers {
		if err := n.SendFile(ctx, path); err != nil {
			r.logger.Warn("notify: send file failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Stdout writes notifications to a local writer. Useful for single-shot
// runs and tests.
type Stdout struct {
	w io.Writer
}

// NewStdout creates a Stdout notifier. A nil writer defaults to os.Stdout.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{w: w}
}

// SendText writes the message as one line.
func (s *Stdout) SendText(_ context.Context, message string) error {
	_, err := fmt.Fprintln(s.w, message)
	return err
}

// SendFile writes the file content preceded by its name.
func (s *Stdout) SendFile(_ context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("notify: read %s: %w", path, err)
	}
	if _, err := fmt.Fprintf(s.w, "--- %s ---\n%s", path, data); err != nil {
		return err
	}
	return nil
}
