package audit

import "time"

// TimelineFilters narrows the audit timeline.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one audit entry with its actor resolved to an email.
type TimelineRow struct {
	At         time.Time
	ActorEmail string
	Action     string
	Entity     string
	EntityID   string
	Meta       string
}

// PagingInfo carries simple previous/next paging.
type PagingInfo struct {
	Page     int
	HasNext  bool
	PageSize int
	PrevPage int
	NextPage int
}

// Result is a page of timeline rows.
type Result struct {
	Rows   []TimelineRow
	Paging PagingInfo
}

// ViewModel feeds the timeline template.
type ViewModel struct {
	Filters TimelineFilters
	Rows    []TimelineRow
	Paging  PagingInfo
}
