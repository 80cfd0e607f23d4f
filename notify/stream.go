package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/switchyard/internal/logging"
	"github.com/arloliu/switchyard/types"
)

// StreamConfig configures the JetStream notification stream.
type StreamConfig struct {
	// StreamName is the JetStream stream name.
	// Default: "SWITCHYARD_NOTIFICATIONS"
	StreamName string

	// SubjectPrefix is the prefix for subjects. Notifications are published
	// to "{SubjectPrefix}.{level}".
	// Default: "switchyard.notify"
	SubjectPrefix string

	// MaxAge is the maximum age of notifications in the stream.
	// Default: 24 hours
	MaxAge time.Duration

	// MaxMsgs is the maximum number of notifications in the stream.
	// Default: 10,000
	MaxMsgs int64

	// Replicas is the number of stream replicas.
	// Default: 1
	Replicas int

	// PublishTimeout bounds synchronous publishes.
	// Default: 5 seconds
	PublishTimeout time.Duration

	// Logger reports asynchronous publish failures.
	Logger types.Logger
}

// DefaultStreamConfig returns the default configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		StreamName:     "SWITCHYARD_NOTIFICATIONS",
		SubjectPrefix:  "switchyard.notify",
		MaxAge:         24 * time.Hour,
		MaxMsgs:        10_000,
		Replicas:       1,
		PublishTimeout: 5 * time.Second,
	}
}

// StreamOption configures a Stream.
type StreamOption func(*StreamConfig)

// WithStreamName sets the JetStream stream name.
func WithStreamName(name string) StreamOption {
	return func(c *StreamConfig) {
		c.StreamName = name
	}
}

// WithSubjectPrefix sets the subject prefix.
func WithSubjectPrefix(prefix string) StreamOption {
	return func(c *StreamConfig) {
		c.SubjectPrefix = prefix
	}
}

// WithMaxAge sets the maximum age of notifications in the stream.
func WithMaxAge(d time.Duration) StreamOption {
	return func(c *StreamConfig) {
		c.MaxAge = d
	}
}

// WithMaxMsgs sets the maximum number of notifications in the stream.
func WithMaxMsgs(n int64) StreamOption {
	return func(c *StreamConfig) {
		c.MaxMsgs = n
	}
}

// WithReplicas sets the number of stream replicas.
func WithReplicas(n int) StreamOption {
	return func(c *StreamConfig) {
		c.Replicas = n
	}
}

// WithPublishTimeout sets the timeout for synchronous publishes.
func WithPublishTimeout(d time.Duration) StreamOption {
	return func(c *StreamConfig) {
		c.PublishTimeout = d
	}
}

// WithStreamLogger sets the logger for asynchronous publish failures.
func WithStreamLogger(l types.Logger) StreamOption {
	return func(c *StreamConfig) {
		c.Logger = l
	}
}

// Stream publishes notifications to a NATS JetStream stream.
//
// The stream uses limits retention so that several UIs can read the same
// notifications with their own consumers.
type Stream struct {
	js     jetstream.JetStream
	stream jetstream.Stream
	config StreamConfig
}

// Compile-time assertion that Stream implements types.Notifier.
var _ types.Notifier = (*Stream)(nil)

// NewStream creates or updates the notification stream.
//
// Parameters:
//   - js: A JetStream context (created via jetstream.New(conn))
//   - opts: Optional configuration options
//
// Returns:
//   - *Stream: The notifier
//   - error: Error if js is nil or stream creation fails
func NewStream(js jetstream.JetStream, opts ...StreamOption) (*Stream, error) {
	if js == nil {
		return nil, errors.New("switchyard: JetStream context is nil")
	}

	cfg := DefaultStreamConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Logger = logging.Or(cfg.Logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "switchyard replication notifications",
		Subjects:    []string{cfg.SubjectPrefix + ".*"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      cfg.MaxAge,
		MaxMsgs:     cfg.MaxMsgs,
		Replicas:    cfg.Replicas,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
	})
	if err != nil {
		return nil, fmt.Errorf("switchyard: failed to create/update stream: %w", err)
	}

	return &Stream{js: js, stream: stream, config: cfg}, nil
}

// Config returns the stream configuration.
func (s *Stream) Config() StreamConfig {
	return s.config
}

// Notify publishes asynchronously and returns immediately.
//
// Failures are logged, never returned.
func (s *Stream) Notify(message string, level types.Level) {
	n := New(message, level)
	data, err := Encode(n)
	if err != nil {
		s.config.Logger.Warn("notification encode failed", "error", err)
		return
	}

	future, err := s.js.PublishAsync(s.subject(n.Level), data, jetstream.WithMsgID(n.ID))
	if err != nil {
		s.config.Logger.Warn("notification publish failed", "id", n.ID, "error", err)
		return
	}

	go func() {
		select {
		case <-future.Ok():
		case err := <-future.Err():
			s.config.Logger.Warn("notification publish failed", "id", n.ID, "error", err)
		}
	}()
}

// Publish stores n in the stream and waits for the acknowledgement.
//
// It is the sink used by Relay.
func (s *Stream) Publish(ctx context.Context, n types.Notification) error {
	data, err := Encode(n)
	if err != nil {
		return fmt.Errorf("switchyard: failed to encode notification: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, s.config.PublishTimeout)
	defer cancel()

	if _, err := s.js.Publish(pubCtx, s.subject(n.Level), data, jetstream.WithMsgID(n.ID)); err != nil {
		return fmt.Errorf("switchyard: failed to publish notification: %w", err)
	}

	return nil
}

// Fetch returns up to batch notifications not yet seen by the durable
// consumer named consumer, acknowledging them.
//
// Each UI uses its own consumer name. An empty result means no new
// notifications arrived within maxWait.
func (s *Stream) Fetch(ctx context.Context, consumer string, batch int, maxWait time.Duration) ([]types.Notification, error) {
	cons, err := s.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumer,
		Durable:       consumer,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("switchyard: failed to create consumer: %w", err)
	}

	msgs, err := cons.Fetch(batch, jetstream.FetchMaxWait(maxWait))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, jetstream.ErrNoMessages) {
			return nil, nil
		}

		return nil, fmt.Errorf("switchyard: failed to fetch notifications: %w", err)
	}

	var out []types.Notification
	for msg := range msgs.Messages() {
		n, err := Decode(msg.Data())
		if err != nil {
			// Malformed entries would be redelivered forever
			_ = msg.Term()
			continue
		}
		out = append(out, n)
		_ = msg.Ack()
	}
	if err := msgs.Error(); err != nil && !errors.Is(err, jetstream.ErrNoMessages) {
		return out, fmt.Errorf("switchyard: error during notification fetch: %w", err)
	}

	return out, nil
}

func (s *Stream) subject(level types.Level) string {
	if level == "" {
		level = types.LevelInfo
	}

	return s.config.SubjectPrefix + "." + string(level)
}
