package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/dvote-dapp/dvote/internal/domain"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type options struct {
	signal    SignalPublisher
	counts    CountCache
	metrics   Metrics
	clock     Clock
	generator CandidateIDGenerator
	logger    *slog.Logger
}

// Option configures the optional collaborators of a usecase.
type Option func(*options)

func WithSignal(s SignalPublisher) Option {
	return func(o *options) { o.signal = s }
}

func WithCountCache(c CountCache) Option {
	return func(o *options) { o.counts = c }
}

func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithCandidateIDGenerator(g CandidateIDGenerator) Option {
	return func(o *options) { o.generator = g }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(module string, opts []Option) options {
	o := options{
		clock:  systemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.generator == nil {
		o.generator = NewCandidateIDGenerator(o.clock)
	}
	o.logger = o.logger.With(slog.String("module", module))
	return o
}

func (o options) publish(ctx context.Context, event domain.Event) {
	if o.signal == nil {
		return
	}
	if err := o.signal.Publish(ctx, domain.TopicChannel(event.VotingTopicID), event); err != nil {
		o.logger.WarnContext(ctx, "failed to publish event",
			slog.String("type", event.Type),
			slog.String("votingTopicId", event.VotingTopicID),
			slog.String("error", err.Error()),
		)
	}
}

func (o options) cachedCount(ctx context.Context, key string, load func() (int64, error)) (int64, error) {
	if o.counts != nil {
		if n, ok := o.counts.Get(ctx, key); ok {
			return n, nil
		}
	}
	n, err := load()
	if err != nil {
		return 0, err
	}
	if o.counts != nil {
		o.counts.Set(ctx, key, n)
	}
	return n, nil
}

func (o options) invalidate(ctx context.Context, key string) {
	if o.counts != nil {
		o.counts.Invalidate(ctx, key)
	}
}

func voterCountKey(votingTopicID string) string     { return "voters:" + votingTopicID }
func candidateCountKey(votingTopicID string) string { return "candidates:" + votingTopicID }
