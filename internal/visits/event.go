// Package visits records redirect visits without holding up the redirect.
package visits

import (
	"context"
	"time"
)

// TopicVisitRecorded is the stream topic visit events are published to.
const TopicVisitRecorded = "visit.recorded"

// Event is a visit waiting to be applied to the record store.
type Event struct {
	Subject   string    `json:"subject"`
	SubjectID int64     `json:"subjectId"`
	VisitedAt time.Time `json:"visitedAt"`
}

// Dispatch hands an event off. Implementations must not block on I/O.
type Dispatch func(ctx context.Context, event *Event) error
