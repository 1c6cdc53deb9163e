package visits

import (
	"context"
	"time"

	"github.com/serroba/go-redirector/internal/metrics"
	"github.com/serroba/go-redirector/internal/redirect"
	"go.uber.org/zap"
)

// Recorder stamps visits and dispatches them without waiting for the write.
// Dispatch failures are logged and dropped.
type Recorder struct {
	dispatch Dispatch
	now      func() time.Time
	logger   *zap.Logger
}

// NewRecorder creates a recorder over dispatch, usually Worker.Enqueue.
func NewRecorder(dispatch Dispatch, logger *zap.Logger) *Recorder {
	return &Recorder{
		dispatch: dispatch,
		now:      time.Now,
		logger:   logger,
	}
}

// RecordGroupVisit counts a visit against a group.
func (r *Recorder) RecordGroupVisit(ctx context.Context, groupID int64) {
	r.record(ctx, redirect.SubjectGroup, groupID)
}

// RecordRecordVisit counts a visit against a record.
func (r *Recorder) RecordRecordVisit(ctx context.Context, recordID int64) {
	r.record(ctx, redirect.SubjectRecord, recordID)
}

func (r *Recorder) record(ctx context.Context, subject redirect.Subject, id int64) {
	event := &Event{
		Subject:   string(subject),
		SubjectID: id,
		VisitedAt: r.now().UTC(),
	}

	if err := r.dispatch(ctx, event); err != nil {
		metrics.Visits.WithLabelValues(event.Subject, "dropped").Inc()
		r.logger.Warn("visit dropped",
			zap.String("subject", event.Subject),
			zap.Int64("subjectId", id),
			zap.Error(err),
		)
	}
}

var _ redirect.VisitRecorder = (*Recorder)(nil)
