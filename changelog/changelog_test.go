package changelog

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/chwatch/linediff"
	"github.com/hazyhaar/chwatch/target"
)

func testChangeSet(identifier string) linediff.ChangeSet {
	return linediff.ChangeSet{
		Target:    target.New(identifier, time.Minute),
		Timestamp: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
		Records: []linediff.Record{
			{Line: 2, Content: "b", Kind: linediff.Removed},
			{Line: 2, Content: "x", Kind: linediff.Added},
		},
	}
}

func TestLog_RecordFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changes.log")
	log := NewLog(path)

	if err := log.Record(testChangeSet("/etc/hosts")); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{
		"/etc/hosts has been changed!",
		"[-] line 2: b",
		"[+] line 2: x",
		"----",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("log missing %q:\n%s", want, content)
		}
	}
}

func TestLog_EmptyChangeSetIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changes.log")
	log := NewLog(path)

	cs := testChangeSet("/etc/hosts")
	cs.Records = nil
	if err := log.Record(cs); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("empty change set must not touch the log")
	}
}

func TestLog_RecordPresence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changes.log")
	log := NewLog(path)

	tgt := target.New("/etc/hosts", time.Minute)
	if err := log.RecordPresence(tgt, time.Now(), false); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[-] presence: content unavailable") {
		t.Fatalf("missing presence record:\n%s", data)
	}
}

func TestLog_ConcurrentWritersKeepBlocksIntact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changes.log")
	log := NewLog(path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := log.Record(testChangeSet("/etc/hosts")); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), "has been changed!"); got != 20 {
		t.Fatalf("expected 20 headers, got %d", got)
	}
	// Every header must be followed by its two records before the separator.
	blocks := strings.Split(strings.TrimSuffix(string(data), "\n"), "----------------------------------------\n")
	for _, block := range blocks {
		if block == "" {
			continue
		}
		if !strings.Contains(block, "[-] line 2: b") || !strings.Contains(block, "[+] line 2: x") {
			t.Fatalf("interleaved block:\n%q", block)
		}
	}
}

func TestFormatRecord_TrimsContent(t *testing.T) {
	got := FormatRecord(linediff.Record{Line: 7, Content: "  padded  ", Kind: linediff.Added})
	if got != "[+] line 7: padded" {
		t.Fatalf("got %q", got)
	}
}
