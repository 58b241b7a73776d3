// Package linediff computes ordered, line-numbered edit scripts between two
// line sequences using a longest-common-subsequence alignment.
//
// Line numbering follows the historical convention of the change log this
// package feeds: a running counter over the current sequence advances for
// every emitted line that is not a removal, and a removed line is numbered
// by the position it would occupy in the current sequence had it survived.
// Consecutive removals therefore take consecutive numbers after the last
// kept line.
package linediff

import (
	"sort"
	"time"

	"github.com/hazyhaar/chwatch/target"
)

// Kind classifies a change record.
type Kind int

const (
	Added Kind = iota
	Removed
)

// String returns "added" or "removed".
func (k Kind) String() string {
	if k == Added {
		return "added"
	}
	return "removed"
}

// Marker returns the log marker, "[+]" or "[-]".
func (k Kind) Marker() string {
	if k == Added {
		return "[+]"
	}
	return "[-]"
}

// Record is one added or removed line.
type Record struct {
	Line    int
	Content string
	Kind    Kind
}

// ChangeSet is the ordered collection of records between two snapshots of
// one target. Records are sorted by line number ascending, removals before
// additions at equal line number. An empty ChangeSet is a no-op everywhere.
type ChangeSet struct {
	Target    target.Target
	Timestamp time.Time
	Records   []Record
}

// Empty reports whether the set carries no records.
func (cs ChangeSet) Empty() bool { return len(cs.Records) == 0 }

// Diff computes the edit script from previous to current. Identical inputs
// yield nil. The output ordering is deterministic.
func Diff(previous, current []string) []Record {
	n, m := len(previous), len(current)

	// lcs[i][j] = LCS length of previous[i:] and current[j:].
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if previous[i] == current[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var records []Record
	counter := 0 // lines emitted into the would-be current sequence
	pending := 0 // removals since the last kept/added line
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case previous[i] == current[j]:
			counter++
			pending = 0
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			// Prefer the removal when tied so removals lead their hunk.
			pending++
			records = append(records, Record{Line: counter + pending, Content: previous[i], Kind: Removed})
			i++
		default:
			counter++
			pending = 0
			records = append(records, Record{Line: counter, Content: current[j], Kind: Added})
			j++
		}
	}
	for ; i < n; i++ {
		pending++
		records = append(records, Record{Line: counter + pending, Content: previous[i], Kind: Removed})
	}
	for ; j < m; j++ {
		counter++
		records = append(records, Record{Line: counter, Content: current[j], Kind: Added})
	}

	Sort(records)
	return records
}

// Sort orders records by line number ascending, removals before additions
// at equal line number. The sort is stable.
func Sort(records []Record) {
	sort.SliceStable(records, func(a, b int) bool {
		if records[a].Line != records[b].Line {
			return records[a].Line < records[b].Line
		}
		return records[a].Kind == Removed && records[b].Kind == Added
	})
}
