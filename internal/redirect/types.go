package redirect

import "time"

// Domain maps a host name to the group that owns it.
type Domain struct {
	Name      string
	GroupID   int64
	CreatedOn time.Time
}

// Group is a bucket of records sharing a default destination.
// At most one group across the dataset is flagged IsDefault.
type Group struct {
	ID          int64
	IsDefault   bool
	DefaultLink *string
	Visits      int64
	LatestVisit *time.Time
	Description string
	CreatedOn   time.Time
}

// Record is a single slug to link mapping. A nil GroupID makes the slug global.
type Record struct {
	ID          int64
	Slug        string
	IsActive    bool
	Link        *string
	GroupID     *int64
	Visits      int64
	LatestVisit *time.Time
	CreatedBy   string
	Description string
	CreatedOn   time.Time
}

// Subject identifies what a visit is counted against.
type Subject string

const (
	SubjectGroup  Subject = "group"
	SubjectRecord Subject = "record"
)

// Visit is an append-only audit fact.
type Visit struct {
	Subject   Subject
	SubjectID int64
	VisitedAt time.Time
}

// ResolvedTarget is the product of a resolver lookup and the cache payload.
// ID is a record id or a group id depending on the lookup that produced it.
type ResolvedTarget struct {
	ID   int64
	Link string
}

// LinkOf dereferences a nullable link.
func LinkOf(link *string) string {
	if link == nil {
		return ""
	}

	return *link
}
