package changelog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hazyhaar/chwatch/linediff"
	"github.com/hazyhaar/chwatch/notify"
)

// sentinel terminates every report artifact.
const sentinel = "[!] Finished"

// Reporter writes standalone change-report artifacts and hands them to a
// Notifier. Artifacts are transient: they exist only between creation and
// the send attempt, and are removed afterwards whether or not the send
// succeeded, so failures never accumulate files on disk.
type Reporter struct {
	dir      string
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewReporter creates a Reporter writing artifacts under dir.
func NewReporter(dir string, notifier notify.Notifier, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{dir: dir, notifier: notifier, logger: logger}
}

// Deliver writes the change set to a uniquely named artifact and sends it
// as an attachment. The artifact is deleted via defer, so cleanup runs even
// if the notifier panics. An empty ChangeSet is a no-op.
func (r *Reporter) Deliver(ctx context.Context, cs linediff.ChangeSet) error {
	if cs.Empty() {
		return nil
	}

	path := r.artifactPath(cs)
	if err := os.WriteFile(path, []byte(formatReport(cs)), 0o644); err != nil {
		return fmt.Errorf("changelog: write report: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			r.logger.Warn("changelog: remove report failed", "path", path, "error", err)
		}
	}()

	if err := r.notifier.SendFile(ctx, path); err != nil {
		return fmt.Errorf("changelog: deliver report: %w", err)
	}
	r.logger.Info("changelog: report delivered", "target", cs.Target.Identifier, "records", len(cs.Records))
	return nil
}

// artifactPath derives the artifact name from the sanitized target
// identifier plus the change timestamp.
func (r *Reporter) artifactPath(cs linediff.ChangeSet) string {
	name := fmt.Sprintf("report_%s_%s.txt",
		cs.Target.Slug(), cs.Timestamp.UTC().Format("20060102T150405Z"))
	return filepath.Join(r.dir, name)
}

// formatReport renders the record lines plus the trailing sentinel.
func formatReport(cs linediff.ChangeSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s has been changed!\n",
		cs.Timestamp.Format(time.RFC3339), cs.Target.Identifier)
	for _, rec := range cs.Records {
		b.WriteString(FormatRecord(rec) + "\n")
	}
	b.WriteString(sentinel + "\n")
	return b.String()
}
