// Package store persists append-only cache entries.
//
// Error contract: Latest returns sentinel.ErrNotFound when no entry matches
// both fingerprint and user. Backends never update or delete entries.
package store

import (
	"sort"

	"docucred/internal/document/models"
)

// newestFirst sorts by the most-recent-wins rule.
func newestFirst(entries []*models.CacheEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].NewerThan(entries[j])
	})
}

func cloneEntry(e *models.CacheEntry) *models.CacheEntry {
	c := *e
	if e.Edits != nil {
		edits := *e.Edits
		c.Edits = &edits
	}
	return &c
}
