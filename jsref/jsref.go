// Package jsref extracts JavaScript asset references from an HTML document
// and compares reference tables across poll cycles.
//
// Extraction is a pattern scan rather than a DOM walk: the references worth
// tracking often live in comments, concatenated strings, or unquoted text
// that an HTML parser would drop. The package boundary keeps that an
// implementation detail — callers only see reference tables.
package jsref

import (
	"regexp"
	"sort"
	"strings"

	"github.com/hazyhaar/chwatch/linediff"
)

// refPattern matches any path-like token ending in .js, optionally followed
// by a query string, optionally wrapped in quotes, case-insensitively.
var refPattern = regexp.MustCompile(`(?i)["']?([^"'\s<>]+\.js(?:\?[^"'\s<>]*)?)["']?`)

// Table maps a reference path to the first 1-based line that contains it.
type Table map[string]int

// Extract scans document lines for .js references. For each distinct path
// the line number is the first line whose raw text contains the path as a
// literal substring; paths with no containing line are discarded — they
// cannot be correlated across snapshots.
func Extract(lines []string) Table {
	table := make(Table)
	doc := strings.Join(lines, "\n")
	for _, m := range refPattern.FindAllStringSubmatch(doc, -1) {
		path := m[1]
		if _, seen := table[path]; seen {
			continue
		}
		if line := lineOf(lines, path); line > 0 {
			table[path] = line
		}
	}
	return table
}

// lineOf returns the first 1-based line containing path, or 0.
func lineOf(lines []string, path string) int {
	for i, line := range lines {
		if strings.Contains(line, path) {
			return i + 1
		}
	}
	return 0
}

// Compare produces change records by key-set difference: added = paths only
// in current, removed = paths only in previous. Added records carry the
// current line number, removed records the previous one. Ordering matches
// linediff: line ascending, removals before additions at equal line.
func Compare(previous, current Table) []linediff.Record {
	var records []linediff.Record
	for path, line := range previous {
		if _, ok := current[path]; !ok {
			records = append(records, linediff.Record{Line: line, Content: path, Kind: linediff.Removed})
		}
	}
	for path, line := range current {
		if _, ok := previous[path]; !ok {
			records = append(records, linediff.Record{Line: line, Content: path, Kind: linediff.Added})
		}
	}
	// Map iteration order is random; tie-break on path for determinism.
	sort.Slice(records, func(a, b int) bool {
		if records[a].Line != records[b].Line {
			return records[a].Line < records[b].Line
		}
		if records[a].Kind != records[b].Kind {
			return records[a].Kind == linediff.Removed
		}
		return records[a].Content < records[b].Content
	})
	return records
}
