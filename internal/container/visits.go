package container

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/samber/do"
	"github.com/serroba/go-redirector/internal/messaging"
	"github.com/serroba/go-redirector/internal/redirect"
	"github.com/serroba/go-redirector/internal/visits"
	"go.uber.org/zap"
)

// VisitsPackage provides the visit recorder. In inline mode visits are
// written to the record store by background workers; in stream mode the
// workers publish them for cmd/consumer.
func VisitsPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*visits.Worker, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		var handler messaging.Handler[visits.Event]

		switch opts.VisitMode {
		case VisitModeInline, "":
			handler = visits.NewStoreHandler(do.MustInvoke[RecordStore](i))
		case VisitModeStream:
			group := do.MustInvoke[*messaging.PublisherGroup](i)
			handler = messaging.Handler[visits.Event](
				messaging.NewPublishFunc[visits.Event](group.Publisher(), visits.TopicVisitRecorded),
			)
		default:
			return nil, fmt.Errorf("unknown visit mode %q", opts.VisitMode)
		}

		worker := visits.NewWorker(handler, visits.WorkerConfig{
			Workers:   opts.VisitWorkers,
			QueueSize: opts.VisitQueueSize,
		}, logger.With(zap.String("visitMode", opts.VisitMode)))

		if err := worker.Start(context.Background()); err != nil {
			return nil, err
		}

		return worker, nil
	})

	do.Provide(i, func(i *do.Injector) (redirect.VisitRecorder, error) {
		worker := do.MustInvoke[*visits.Worker](i)

		return visits.NewRecorder(worker.Enqueue, do.MustInvoke[*zap.Logger](i)), nil
	})
}

func PublisherGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		conn := do.MustInvoke[*redisConn](i)
		logger := do.MustInvoke[*zap.Logger](i)

		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client:     conn.Client,
			Marshaller: redisstream.DefaultMarshallerUnmarshaller{},
		}, messaging.NewZapLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("create stream publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})
}

func ConsumerGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		opts := do.MustInvoke[*Options](i)
		conn := do.MustInvoke[*redisConn](i)
		logger := do.MustInvoke[*zap.Logger](i)
		recordStore := do.MustInvoke[RecordStore](i)

		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        conn.Client,
			Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
			ConsumerGroup: opts.ConsumerGroup,
		}, messaging.NewZapLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("create stream subscriber: %w", err)
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(messaging.NewConsumer(
			subscriber,
			visits.TopicVisitRecorded,
			visits.NewStoreHandler(recordStore),
			logger,
		))

		return group, nil
	})
}
