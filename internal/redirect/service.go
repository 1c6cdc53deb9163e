package redirect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/serroba/go-redirector/internal/metrics"
	"go.uber.org/zap"
)

// Source names the cascade step that produced a destination.
type Source string

const (
	SourceRecord   Source = "record"
	SourceGroup    Source = "group"
	SourceSystem   Source = "system"
	SourceFallback Source = "fallback"
)

// OutagePolicy decides what Resolve does when the record store fails.
type OutagePolicy int

const (
	// OutageFail returns ErrStoreUnavailable to the caller.
	OutageFail OutagePolicy = iota
	// OutageFallback serves the static fallback link.
	OutageFallback
)

// ParseOutagePolicy maps "fail" or "fallback" to a policy.
func ParseOutagePolicy(s string) (OutagePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return OutageFail, nil
	case "fallback":
		return OutageFallback, nil
	default:
		return OutageFail, fmt.Errorf("unknown store outage policy %q", s)
	}
}

// Outcome is the result of a redirect resolution.
type Outcome struct {
	Destination string
	Source      Source
	// SubjectID is the record or group the visit was counted against, zero for fallback.
	SubjectID int64
	// Noteworthy marks a request that asked for something that did not exist.
	Noteworthy bool
}

// Service runs the redirect cascade:
// group+slug, global slug, group default, system default, static fallback.
type Service struct {
	resolver     *Resolver
	visits       VisitRecorder
	fallbackLink string
	policy       OutagePolicy
	logger       *zap.Logger
}

// NewService creates a redirect service.
func NewService(
	resolver *Resolver,
	visits VisitRecorder,
	fallbackLink string,
	policy OutagePolicy,
	logger *zap.Logger,
) *Service {
	return &Service{
		resolver:     resolver,
		visits:       visits,
		fallbackLink: strings.TrimSpace(fallbackLink),
		policy:       policy,
		logger:       logger,
	}
}

// Resolve returns the destination for a host and path segment. Not finding
// anything is not an error; the static fallback link is used instead.
func (s *Service) Resolve(ctx context.Context, host, slug string) (*Outcome, error) {
	domain := strings.TrimSpace(host)
	slug = strings.TrimSpace(slug)

	outcome, err := s.cascade(ctx, domain, slug)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) && s.policy == OutageFallback {
			s.logger.Error("record store unavailable, serving fallback link",
				zap.String("domain", domain),
				zap.String("slug", slug),
				zap.Error(err),
			)

			outcome, err = s.fallback()
			if err != nil {
				return nil, err
			}

			metrics.Resolutions.WithLabelValues(string(outcome.Source)).Inc()

			return outcome, nil
		}

		return nil, err
	}

	metrics.Resolutions.WithLabelValues(string(outcome.Source)).Inc()

	return outcome, nil
}

func (s *Service) cascade(ctx context.Context, domain, slug string) (*Outcome, error) {
	var (
		record *ResolvedTarget
		group  *ResolvedTarget
		err    error
	)

	if slug != "" {
		if domain != "" {
			if record, err = s.resolver.ResolveGroupSlug(ctx, domain, slug); err != nil {
				return nil, err
			}
		}

		if record == nil {
			if record, err = s.resolver.ResolveSlugNoGroup(ctx, slug); err != nil {
				return nil, err
			}
		}
	}

	source := SourceGroup

	if record == nil && domain != "" {
		if group, err = s.resolver.ResolveGroupDefault(ctx, domain); err != nil {
			return nil, err
		}
	}

	if record == nil && group == nil {
		source = SourceSystem

		if group, err = s.resolver.ResolveSystemDefault(ctx); err != nil {
			return nil, err
		}
	}

	switch {
	case record != nil:
		outcome, err := s.destination(record, SourceRecord, false)
		if err != nil {
			return nil, err
		}

		s.visits.RecordRecordVisit(ctx, record.ID)

		return outcome, nil
	case group != nil:
		outcome, err := s.destination(group, source, slug != "" && !IsMuted(slug))
		if err != nil {
			return nil, err
		}

		s.visits.RecordGroupVisit(ctx, group.ID)

		return outcome, nil
	default:
		return s.fallback()
	}
}

// destination uses the target link, or the fallback link when the matched
// record or group carries none.
func (s *Service) destination(target *ResolvedTarget, source Source, noteworthy bool) (*Outcome, error) {
	if target.Link == "" {
		if s.fallbackLink == "" {
			return nil, ErrNoDestination
		}

		return &Outcome{
			Destination: s.fallbackLink,
			Source:      source,
			SubjectID:   target.ID,
			Noteworthy:  true,
		}, nil
	}

	return &Outcome{
		Destination: target.Link,
		Source:      source,
		SubjectID:   target.ID,
		Noteworthy:  noteworthy,
	}, nil
}

func (s *Service) fallback() (*Outcome, error) {
	if s.fallbackLink == "" {
		return nil, ErrNoDestination
	}

	return &Outcome{
		Destination: s.fallbackLink,
		Source:      SourceFallback,
		Noteworthy:  true,
	}, nil
}

// InvalidateCache purges the cache key computed for host and slug. The
// reserved default key is never purged; purged reports whether a removal ran.
func (s *Service) InvalidateCache(ctx context.Context, host, slug string) (key string, purged bool, err error) {
	key = BuildKey(strings.TrimSpace(host), strings.TrimSpace(slug))
	if key == DefaultKey {
		return key, false, nil
	}

	if err := s.resolver.Purge(ctx, key); err != nil {
		return key, false, err
	}

	s.logger.Info("cache key purged upon request", zap.String("key", key))

	return key, true, nil
}
