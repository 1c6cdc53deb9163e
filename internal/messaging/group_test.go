package messaging_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/serroba/go-redirector/internal/messaging"
	"github.com/serroba/go-redirector/internal/redirect"
	"github.com/serroba/go-redirector/internal/store"
	"github.com/serroba/go-redirector/internal/visits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// lifecycle records start and stop order across consumers.
type lifecycle struct {
	events []string
}

type stubConsumer struct {
	name        string
	life        *lifecycle
	startErr    error
	shutdownErr error
}

func (s *stubConsumer) Start(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}

	s.life.events = append(s.life.events, "start "+s.name)

	return nil
}

func (s *stubConsumer) Shutdown() error {
	s.life.events = append(s.life.events, "stop "+s.name)

	return s.shutdownErr
}

func newVisitStream(t *testing.T) (*gochannel.GoChannel, *store.MemoryStore) {
	t.Helper()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, messaging.NewZapLogger(zap.NewNop()))

	repo := store.NewMemoryStore()
	repo.PutGroup(redirect.Group{ID: 7})
	repo.PutRecord(redirect.Record{ID: 1, Slug: "docs", IsActive: true, GroupID: ptrTo(int64(7))})

	return pubSub, repo
}

func ptrTo[T any](v T) *T {
	return &v
}

func TestConsumerGroup_VisitStream(t *testing.T) {
	t.Run("applies published visits to the store", func(t *testing.T) {
		pubSub, repo := newVisitStream(t)

		group := messaging.NewConsumerGroup(pubSub, zap.NewNop())
		group.Add(messaging.NewConsumer(pubSub, visits.TopicVisitRecorded, visits.NewStoreHandler(repo), zap.NewNop()))
		require.NoError(t, group.Start(context.Background()))

		t.Cleanup(func() { _ = group.Shutdown() })

		publish := messaging.NewPublishFunc[visits.Event](pubSub, visits.TopicVisitRecorded)
		require.NoError(t, publish(context.Background(), &visits.Event{
			Subject: string(redirect.SubjectGroup), SubjectID: 7, VisitedAt: time.Now(),
		}))
		require.NoError(t, publish(context.Background(), &visits.Event{
			Subject: string(redirect.SubjectRecord), SubjectID: 1, VisitedAt: time.Now(),
		}))

		assert.Eventually(t, func() bool {
			g, _ := repo.Group(7)
			r, _ := repo.Record(1)

			return g.Visits == 1 && r.Visits == 1
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("acks visits for missing subjects so later visits flow", func(t *testing.T) {
		pubSub, repo := newVisitStream(t)

		group := messaging.NewConsumerGroup(pubSub, zap.NewNop())
		group.Add(messaging.NewConsumer(pubSub, visits.TopicVisitRecorded, visits.NewStoreHandler(repo), zap.NewNop()))
		require.NoError(t, group.Start(context.Background()))

		t.Cleanup(func() { _ = group.Shutdown() })

		publish := messaging.NewPublishFunc[visits.Event](pubSub, visits.TopicVisitRecorded)
		require.NoError(t, publish(context.Background(), &visits.Event{
			Subject: string(redirect.SubjectRecord), SubjectID: 404, VisitedAt: time.Now(),
		}))
		require.NoError(t, publish(context.Background(), &visits.Event{
			Subject: string(redirect.SubjectRecord), SubjectID: 1, VisitedAt: time.Now(),
		}))

		assert.Eventually(t, func() bool {
			r, _ := repo.Record(1)

			return r.Visits == 1
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("reports consumer topics when started", func(t *testing.T) {
		pubSub, repo := newVisitStream(t)
		core, logs := observer.New(zapcore.InfoLevel)

		group := messaging.NewConsumerGroup(pubSub, zap.New(core))
		group.Add(messaging.NewConsumer(pubSub, visits.TopicVisitRecorded, visits.NewStoreHandler(repo), zap.NewNop()))
		group.Add(&stubConsumer{name: "untopiced", life: &lifecycle{}})

		require.NoError(t, group.Start(context.Background()))

		t.Cleanup(func() { _ = group.Shutdown() })

		assert.Equal(t, []string{visits.TopicVisitRecorded}, group.Topics())

		started := logs.FilterMessage("consumer group started").All()
		require.Len(t, started, 1)
		assert.Equal(t, []any{visits.TopicVisitRecorded}, started[0].ContextMap()["topics"])
	})
}

func TestConsumerGroup_Lifecycle(t *testing.T) {
	t.Run("stops started consumers when a later one fails", func(t *testing.T) {
		life := &lifecycle{}
		group := messaging.NewConsumerGroup(newMockSubscriber(), zap.NewNop())
		group.Add(&stubConsumer{name: "a", life: life})
		group.Add(&stubConsumer{name: "b", life: life})
		group.Add(&stubConsumer{name: "c", life: life, startErr: errors.New("subscribe refused")})

		err := group.Start(context.Background())

		require.ErrorContains(t, err, "subscribe refused")
		assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, life.events)
	})

	t.Run("shutdown stops newest first and reports every error", func(t *testing.T) {
		life := &lifecycle{}
		group := messaging.NewConsumerGroup(newMockSubscriber(), zap.NewNop())
		group.Add(&stubConsumer{name: "a", life: life, shutdownErr: errors.New("a stuck")})
		group.Add(&stubConsumer{name: "b", life: life, shutdownErr: errors.New("b stuck")})
		require.NoError(t, group.Start(context.Background()))

		err := group.Shutdown()

		require.Error(t, err)
		assert.ErrorContains(t, err, "a stuck")
		assert.ErrorContains(t, err, "b stuck")
		assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, life.events)
	})

	t.Run("shutdown closes the subscriber", func(t *testing.T) {
		sub := newMockSubscriber()
		group := messaging.NewConsumerGroup(sub, zap.NewNop())
		require.NoError(t, group.Start(context.Background()))

		require.NoError(t, group.Shutdown())

		sub.mu.Lock()
		defer sub.mu.Unlock()
		assert.True(t, sub.closed)
	})
}
