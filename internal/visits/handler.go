package visits

import (
	"context"
	"errors"
	"fmt"

	"github.com/serroba/go-redirector/internal/messaging"
	"github.com/serroba/go-redirector/internal/redirect"
)

var errUnknownSubject = errors.New("unknown visit subject")

// NewStoreHandler applies visit events to the record store. Events for
// subjects that no longer exist fail permanently.
func NewStoreHandler(store redirect.VisitStore) messaging.Handler[Event] {
	return func(ctx context.Context, event *Event) error {
		var err error

		switch redirect.Subject(event.Subject) {
		case redirect.SubjectGroup:
			err = store.RecordGroupVisit(ctx, event.SubjectID, event.VisitedAt)
		case redirect.SubjectRecord:
			err = store.RecordRecordVisit(ctx, event.SubjectID, event.VisitedAt)
		default:
			return messaging.Permanent(fmt.Errorf("%w: %q", errUnknownSubject, event.Subject))
		}

		if errors.Is(err, redirect.ErrNotFound) {
			return messaging.Permanent(fmt.Errorf("%s %d: %w", event.Subject, event.SubjectID, err))
		}

		return err
	}
}
