// Package changelog renders change sets into a shared append-only log and
// standalone report artifacts for notification delivery.
//
// The log is a plain text file shared by every poller in the process, so
// writes are serialized behind a mutex — interleaved partial blocks would
// be worse than a short stall.
package changelog

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/chwatch/linediff"
	"github.com/hazyhaar/chwatch/target"
)

const separator = "----------------------------------------"

// Log is the shared append-only change log.
type Log struct {
	path string
	mu   sync.Mutex
}

// NewLog creates a Log appending to path. The file is created on first write.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Record appends one change block. An empty ChangeSet is a no-op.
func (l *Log) Record(cs linediff.ChangeSet) error {
	if cs.Empty() {
		return nil
	}
	return l.append(FormatBlock(cs))
}

// RecordPresence appends a presence-transition block: the fingerprint
// changed but one side had no content, so there are no line-level records.
// A vanished target (deleted file, unreachable URL) is logged explicitly
// rather than tracked silently.
func (l *Log) RecordPresence(t target.Target, ts time.Time, present bool) error {
	state := "content unavailable"
	marker := "[-]"
	if present {
		state = "content available"
		marker = "[+]"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s has been changed!\n", ts.Format(time.RFC3339), t.Identifier)
	fmt.Fprintf(&b, "%s presence: %s\n", marker, state)
	b.WriteString(separator + "\n")
	return l.append(b.String())
}

// RecordNotice appends a coarse change block with a single annotation line
// instead of line-level records. Used when a change is detected but no
// previous content exists to diff against (e.g. a baseline restored from
// the state store after a restart).
func (l *Log) RecordNotice(t target.Target, ts time.Time, notice string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s has been changed!\n", ts.Format(time.RFC3339), t.Identifier)
	fmt.Fprintf(&b, "[!] %s\n", notice)
	b.WriteString(separator + "\n")
	return l.append(b.String())
}

func (l *Log) append(block string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("changelog: open %s: %w", l.path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(block); err != nil {
		return fmt.Errorf("changelog: write: %w", err)
	}
	return nil
}

// FormatBlock renders a change set as one log block: timestamped header,
// one marker line per record, separator.
func FormatBlock(cs linediff.ChangeSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s has been changed!\n",
		cs.Timestamp.Format(time.RFC3339), cs.Target.Identifier)
	for _, rec := range cs.Records {
		b.WriteString(FormatRecord(rec) + "\n")
	}
	b.WriteString(separator + "\n")
	return b.String()
}

// FormatRecord renders one record as "<marker> line <n>: <trimmed content>".
func FormatRecord(rec linediff.Record) string {
	return fmt.Sprintf("%s line %d: %s", rec.Kind.Marker(), rec.Line, strings.TrimSpace(rec.Content))
}
