// Package poll drives the per-target watch loop: fetch, compare, diff,
// log, notify, sleep — repeated for the process lifetime.
//
// Each target is owned by exactly one Poller. Pollers never communicate;
// the only shared state is the append-only change log (serialized inside
// changelog) and the state database (serialized by SQLite).
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/chwatch/changelog"
	"github.com/hazyhaar/chwatch/jsref"
	"github.com/hazyhaar/chwatch/linediff"
	"github.com/hazyhaar/chwatch/notify"
	"github.com/hazyhaar/chwatch/snapshot"
	"github.com/hazyhaar/chwatch/state"
	"github.com/hazyhaar/chwatch/target"
)

// Mode selects how two snapshots are compared.
type Mode int

const (
	// LineDiff compares line sequences with a line-level edit script.
	LineDiff Mode = iota
	// JSRefs compares the sets of JavaScript references extracted from an
	// HTML document.
	JSRefs
)

// Config wires one Poller.
type Config struct {
	Target  target.Target
	Fetcher snapshot.Fetcher
	Mode    Mode

	// Log is the shared append-only change log. Required.
	Log *changelog.Log
	// Reporter delivers change-report artifacts. Optional.
	Reporter *changelog.Reporter
	// Notifier receives text notifications. Optional.
	Notifier notify.Notifier
	// Store persists the baseline fingerprint. Optional.
	Store *state.Store

	Logger *slog.Logger
}

// Stats are point-in-time counters for one poller.
type Stats struct {
	Target          string    `json:"target"`
	Kind            string    `json:"kind"`
	Checks          int64     `json:"checks"`
	ChangesDetected int64     `json:"changes_detected"`
	Errors          int64     `json:"errors"`
	Notifications   int64     `json:"notifications"`
	LastFingerprint string    `json:"last_fingerprint"`
	LastPresent     bool      `json:"last_present"`
	LastChecked     time.Time `json:"last_checked"`
}

// Poller owns one target's lifecycle.
type Poller struct {
	cfg    Config
	logger *slog.Logger

	checks   atomic.Int64
	changes  atomic.Int64
	errors   atomic.Int64
	notifies atomic.Int64

	// lastFingerprint/lastPresent/lastChecked back Stats; written only by
	// the loop goroutine, read by Stats callers.
	last atomic.Pointer[Stats]

	prev     snapshot.Snapshot
	prevRefs jsref.Table

	// restored marks a baseline seeded from the state store: it carries a
	// fingerprint but no line content, so the first change after a restart
	// can only be reported coarsely.
	restored bool
}

// New creates a Poller. Call Run to start the loop.
func New(cfg Config) *Poller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	p := &Poller{
		cfg:    cfg,
		logger: cfg.Logger.With("target", cfg.Target.Identifier),
	}
	p.last.Store(&Stats{Target: cfg.Target.Identifier, Kind: cfg.Target.Kind.String()})
	return p
}

// Stats returns the current counters.
func (p *Poller) Stats() Stats {
	s := *p.last.Load()
	s.Checks = p.checks.Load()
	s.ChangesDetected = p.changes.Load()
	s.Errors = p.errors.Load()
	s.Notifications = p.notifies.Load()
	return s
}

// Run blocks until ctx is cancelled, polling at the target's interval.
//
// The baseline comes from the state store when one exists (fingerprint
// only — the first change after a restart is reported as a coarse
// presence/fingerprint transition), otherwise from a synchronous initial
// fetch so the first comparison cycle never runs against nothing.
func (p *Poller) Run(ctx context.Context) {
	if !p.seedFromStore(ctx) {
		p.prev = p.cfg.Fetcher.Fetch(ctx, p.cfg.Target)
		p.persist(ctx, p.prev, false)
	}
	if p.cfg.Mode == JSRefs {
		if stop := p.seedRefs(); stop {
			return
		}
	}
	p.publishLast()

	p.logger.Info("poll: started",
		"kind", p.cfg.Target.Kind.String(),
		"interval", p.cfg.Target.Interval,
		"mode", modeName(p.cfg.Mode))

	ticker := time.NewTicker(p.cfg.Target.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poll: stopped")
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// seedFromStore loads a persisted baseline. Returns false when the store is
// absent or has never seen this target.
func (p *Poller) seedFromStore(ctx context.Context) bool {
	if p.cfg.Store == nil {
		return false
	}
	b, ok, err := p.cfg.Store.Baseline(ctx, p.cfg.Target.Identifier)
	if err != nil {
		p.logger.Warn("poll: load baseline failed", "error", err)
		return false
	}
	if !ok {
		return false
	}
	p.prev = snapshot.Snapshot{
		Fingerprint: b.Fingerprint,
		Present:     b.Present,
		FetchedAt:   b.CheckedAt,
	}
	p.restored = true
	p.logger.Debug("poll: baseline restored", "fingerprint", b.Fingerprint, "present", b.Present)
	return true
}

// coarseChange reports a fingerprint transition against a restored
// baseline: the previous content is gone, so no diff can be produced.
func (p *Poller) coarseChange(ctx context.Context, cur snapshot.Snapshot) {
	if err := p.cfg.Log.RecordNotice(p.cfg.Target, cur.FetchedAt,
		"content changed; no previous content to diff"); err != nil {
		p.errors.Add(1)
		p.logger.Error("poll: log notice failed", "error", err)
	}
	p.logger.Info("poll: coarse change against restored baseline")

	if p.cfg.Notifier == nil {
		return
	}
	msg := fmt.Sprintf("%s has been changed!", p.cfg.Target.Identifier)
	if err := p.cfg.Notifier.SendText(ctx, msg); err != nil {
		p.errors.Add(1)
		p.logger.Warn("poll: notify failed", "error", err)
		return
	}
	p.notifies.Add(1)
}

// seedRefs builds the initial reference table. A reachable document with
// zero references stops this target — there is nothing to track — without
// affecting other pollers.
func (p *Poller) seedRefs() (stop bool) {
	// A restored baseline has no content to extract from; the table is
	// rebuilt on the first present cycle.
	if p.restored || !p.prev.Present {
		return false
	}
	p.prevRefs = jsref.Extract(p.prev.Lines)
	if len(p.prevRefs) == 0 {
		p.logger.Info("poll: no JavaScript references found, stopping target")
		return true
	}
	p.logger.Info("poll: tracking JavaScript references", "count", len(p.prevRefs))
	return false
}

// cycle runs one fetch → compare → log → notify pass.
func (p *Poller) cycle(ctx context.Context) {
	start := time.Now()
	p.checks.Add(1)

	cur := p.cfg.Fetcher.Fetch(ctx, p.cfg.Target)
	changed := !cur.SameFingerprint(p.prev)

	if changed {
		p.changes.Add(1)
		switch {
		case !cur.Present || !p.prev.Present:
			p.presenceTransition(ctx, cur)
		case p.restored:
			p.coarseChange(ctx, cur)
		default:
			p.compareContent(ctx, cur)
		}
	}

	// The new baseline is established unconditionally, matched or not.
	p.prev = cur
	p.restored = false
	if p.cfg.Mode == JSRefs && cur.Present {
		p.prevRefs = jsref.Extract(cur.Lines)
	}

	p.persistCycle(ctx, cur, changed, time.Since(start))
	p.publishLast()
}

// compareContent diffs two present snapshots and ships a non-empty result.
func (p *Poller) compareContent(ctx context.Context, cur snapshot.Snapshot) {
	cs := linediff.ChangeSet{
		Target:    p.cfg.Target,
		Timestamp: cur.FetchedAt,
	}
	switch p.cfg.Mode {
	case JSRefs:
		cs.Records = jsref.Compare(p.prevRefs, jsref.Extract(cur.Lines))
	default:
		cs.Records = linediff.Diff(p.prev.Lines, cur.Lines)
	}
	if cs.Empty() {
		return
	}

	if err := p.cfg.Log.Record(cs); err != nil {
		p.errors.Add(1)
		p.logger.Error("poll: log change failed", "error", err)
	}
	p.logger.Info("poll: change detected", "records", len(cs.Records))
	p.sendNotifications(ctx, cs)
}

// presenceTransition handles a fingerprint change where one side has no
// content: only a coarse changed signal is available.
func (p *Poller) presenceTransition(ctx context.Context, cur snapshot.Snapshot) {
	if err := p.cfg.Log.RecordPresence(p.cfg.Target, cur.FetchedAt, cur.Present); err != nil {
		p.errors.Add(1)
		p.logger.Error("poll: log presence failed", "error", err)
	}
	p.logger.Info("poll: presence transition", "present", cur.Present)

	if p.cfg.Notifier == nil {
		return
	}
	stateMsg := "content unavailable"
	if cur.Present {
		stateMsg = "content available"
	}
	msg := fmt.Sprintf("%s has been changed! (%s)", p.cfg.Target.Identifier, stateMsg)
	if err := p.cfg.Notifier.SendText(ctx, msg); err != nil {
		p.errors.Add(1)
		p.logger.Warn("poll: notify failed", "error", err)
		return
	}
	p.notifies.Add(1)
}

func (p *Poller) sendNotifications(ctx context.Context, cs linediff.ChangeSet) {
	if p.cfg.Notifier != nil {
		msg := fmt.Sprintf("%s has been changed! (%d records)", cs.Target.Identifier, len(cs.Records))
		if err := p.cfg.Notifier.SendText(ctx, msg); err != nil {
			p.errors.Add(1)
			p.logger.Warn("poll: notify failed", "error", err)
		} else {
			p.notifies.Add(1)
		}
	}
	if p.cfg.Reporter != nil {
		if err := p.cfg.Reporter.Deliver(ctx, cs); err != nil {
			p.errors.Add(1)
			p.logger.Warn("poll: deliver report failed", "error", err)
		}
	}
}

// persist saves the baseline without a check-log row (used for the initial
// synchronous fetch).
func (p *Poller) persist(ctx context.Context, s snapshot.Snapshot, changed bool) {
	if p.cfg.Store == nil {
		return
	}
	if err := p.cfg.Store.SaveBaseline(ctx, p.cfg.Target, s.Fingerprint, s.Present, changed); err != nil {
		p.logger.Warn("poll: save baseline failed", "error", err)
	}
}

// persistCycle saves the baseline and a check-log row for one cycle.
func (p *Poller) persistCycle(ctx context.Context, s snapshot.Snapshot, changed bool, elapsed time.Duration) {
	if p.cfg.Store == nil {
		return
	}
	p.persist(ctx, s, changed)

	status := "unchanged"
	switch {
	case !s.Present:
		status = "absent"
	case changed:
		status = "changed"
	}
	err := p.cfg.Store.LogCheck(ctx, state.Check{
		Target:      p.cfg.Target.Identifier,
		Status:      status,
		Fingerprint: s.Fingerprint,
		Duration:    elapsed,
		CheckedAt:   s.FetchedAt,
	})
	if err != nil {
		p.logger.Warn("poll: log check failed", "error", err)
	}
}

func (p *Poller) publishLast() {
	p.last.Store(&Stats{
		Target:          p.cfg.Target.Identifier,
		Kind:            p.cfg.Target.Kind.String(),
		LastFingerprint: p.prev.Fingerprint,
		LastPresent:     p.prev.Present,
		LastChecked:     p.prev.FetchedAt,
	})
}

func modeName(m Mode) string {
	if m == JSRefs {
		return "jsrefs"
	}
	return "linediff"
}
