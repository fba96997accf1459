package models

import (
	"encoding/json"
	"time"

	id "docucred/pkg/domain"
)

// Entry origins, used for metrics and logs.
const (
	OriginExtraction = "extraction"
	OriginCorrection = "correction"
)

// CacheEntry is one recorded extraction or correction. Entries are never
// updated; a correction appends a new one.
type CacheEntry struct {
	ID          int64
	Fingerprint Fingerprint
	UserID      id.UserID
	Fields      string
	Edits       *string
	CreatedAt   time.Time
}

// NewerThan orders entries for the most-recent-wins rule: later CreatedAt
// first, then higher ID.
func (e *CacheEntry) NewerThan(other *CacheEntry) bool {
	if !e.CreatedAt.Equal(other.CreatedAt) {
		return e.CreatedAt.After(other.CreatedAt)
	}
	return e.ID > other.ID
}

// EntryResponse is the wire form of a CacheEntry. Stored field text is
// emitted as JSON objects.
type EntryResponse struct {
	ID          int64           `json:"id"`
	Fingerprint string          `json:"imageHash"`
	UserID      string          `json:"userId"`
	OCRText     json.RawMessage `json:"ocrText"`
	UserEdits   json.RawMessage `json:"userEdits,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func (e *CacheEntry) Response() *EntryResponse {
	res := &EntryResponse{
		ID:          e.ID,
		Fingerprint: e.Fingerprint.String(),
		UserID:      e.UserID.String(),
		OCRText:     rawOrNull(e.Fields),
		CreatedAt:   e.CreatedAt,
	}
	if e.Edits != nil {
		res.UserEdits = rawOrNull(*e.Edits)
	}
	return res
}

func rawOrNull(text string) json.RawMessage {
	if text == "" || !json.Valid([]byte(text)) {
		return json.RawMessage("null")
	}
	return json.RawMessage(text)
}

// Lookup is the result of a latest-entry read. A hit renders the entry's
// fields at the top level next to found; a miss is just {"found":false}.
type Lookup struct {
	Found bool `json:"found"`
	*EntryResponse
}

// History lists a user's entries for one fingerprint, newest first.
type History struct {
	Entries []*EntryResponse `json:"entries"`
}
