// Package audit exposes the audit trail written by the core services. Entries
// are append-only; this package only reads them.
package audit

import (
	"encoding/json"
	"time"
)

// Entry is one audit trail row.
type Entry struct {
	ID         int64
	ActorID    int64
	Action     string
	Entity     string
	EntityID   string
	Meta       json.RawMessage
	OccurredAt time.Time
}

// Filters narrows a trail listing.
type Filters struct {
	From     time.Time
	To       time.Time
	ActorID  int64
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// PagingInfo reports position without a total count; listings fetch one row
// past the page to detect a next page.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result bundles one page of the trail with its paging metadata.
type Result struct {
	Rows   []Entry
	Paging PagingInfo
}
