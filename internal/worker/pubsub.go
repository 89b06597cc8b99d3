package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const attrJobType = "job_type"

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	// MaxOutstandingMessages bounds concurrent message handling (default 10).
	MaxOutstandingMessages int
	// MaxExtension bounds how long a message's ack deadline is extended
	// while it is being handled (default 10m).
	MaxExtension time.Duration
	Logger       zerolog.Logger
}

// PubSubHandler feeds messages from a subscription into a Dispatcher.
type PubSubHandler struct {
	client     *pubsub.Client
	sub        *pubsub.Subscriber
	name       string
	dispatcher *Dispatcher
	log        zerolog.Logger
}

// NewPubSubHandler connects to Pub/Sub and prepares the subscription.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	sub := client.Subscriber(cfg.SubscriptionName)
	sub.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstandingMessages
	if sub.ReceiveSettings.MaxOutstandingMessages <= 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = 10
	}
	sub.ReceiveSettings.MaxExtension = cfg.MaxExtension
	if sub.ReceiveSettings.MaxExtension <= 0 {
		sub.ReceiveSettings.MaxExtension = 10 * time.Minute
	}

	return &PubSubHandler{
		client:     client,
		sub:        sub,
		name:       cfg.SubscriptionName,
		dispatcher: cfg.Dispatcher,
		log:        cfg.Logger.With().Str("subscription", cfg.SubscriptionName).Logger(),
	}, nil
}

// Start receives messages until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.log.Info().Msg("receiving ingest messages")
	return h.sub.Receive(ctx, h.receive)
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) receive(ctx context.Context, msg *pubsub.Message) {
	start := time.Now()
	ctx = extractTrace(ctx, msg.Attributes)

	log := h.log.With().
		Str("message_id", msg.ID).
		Str("job_type", msg.Attributes[attrJobType]).
		Logger()
	if msg.DeliveryAttempt != nil {
		log = log.With().Int("delivery_attempt", *msg.DeliveryAttempt).Logger()
	}
	log.Debug().Time("published_at", msg.PublishTime).Msg("message received")

	if !settle(h.dispatcher.Handle(ctx, msg.Data), log) {
		msg.Nack()
		return
	}
	log.Debug().Dur("duration", time.Since(start)).Msg("message acked")
	msg.Ack()
}

// settle reports whether a message should be acked after handling. Permanent
// failures are acked so they are not redelivered.
func settle(err error, log zerolog.Logger) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, ErrPermanent) {
		log.Error().Err(err).Msg("dropping unprocessable message")
		return true
	}
	log.Warn().Err(err).Msg("job failed, message will be redelivered")
	return false
}

// Publisher enqueues ingest messages on a topic.
type Publisher struct {
	client *pubsub.Client
	pub    *pubsub.Publisher
	topic  string
}

// NewPublisher creates a publisher for topic.
func NewPublisher(ctx context.Context, projectID, topic string) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	return &Publisher{client: client, pub: client.Publisher(topic), topic: topic}, nil
}

// PublishRegionImport enqueues a region import and returns the message ID.
func (p *Publisher) PublishRegionImport(ctx context.Context, regionID string, geojson []byte) (string, error) {
	data, err := json.Marshal(Message{JobType: JobRegionImport, RegionID: regionID, GeoJSON: geojson})
	if err != nil {
		return "", fmt.Errorf("encoding region import: %w", err)
	}

	id, err := p.pub.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attributes(ctx, JobRegionImport),
	}).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publishing to %s: %w", p.topic, err)
	}
	return id, nil
}

// Close flushes pending messages and closes the client.
func (p *Publisher) Close() error {
	p.pub.Stop()
	return p.client.Close()
}

// attributes builds message attributes carrying the job type and the trace
// context of ctx.
func attributes(ctx context.Context, jobType string) map[string]string {
	attrs := propagation.MapCarrier{attrJobType: jobType}
	otel.GetTextMapPropagator().Inject(ctx, attrs)
	return attrs
}

func extractTrace(ctx context.Context, attrs map[string]string) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(attrs))
}
