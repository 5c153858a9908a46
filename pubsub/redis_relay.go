package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/toolink/widgets/limiter"
	"github.com/toolink/widgets/meta"
)

// DefaultChannelPrefix is prepended to event names to form Redis channel names.
const DefaultChannelPrefix = "widgets:push:"

var errRelayClosed = errors.New("pubsub: redis subscription closed")

// RedisRelay carries pushes between processes over Redis pub/sub.
// Publish sends a push to every process running the relay; Run receives
// pushes and hands them to the local target.
// Like local pushes, relayed pushes without a listener are dropped.
type RedisRelay struct {
	client  redis.UniversalClient
	target  Pusher
	poster  Poster
	limiter *limiter.RateLimiter
	prefix  string
}

// RelayOption configures a RedisRelay.
type RelayOption func(*RedisRelay)

// WithChannelPrefix sets the Redis channel prefix. Default DefaultChannelPrefix.
func WithChannelPrefix(prefix string) RelayOption {
	return func(r *RedisRelay) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithPoster makes the relay deliver pushes through p, normally the host loop.
// Without it the target is called on the relay's own goroutine.
func WithPoster(p Poster) RelayOption {
	return func(r *RedisRelay) {
		r.poster = p
	}
}

// WithRelayLimiter throttles incoming pushes.
func WithRelayLimiter(rl *limiter.RateLimiter) RelayOption {
	return func(r *RedisRelay) {
		r.limiter = rl
	}
}

// NewRedisRelay creates a relay delivering received pushes to target.
func NewRedisRelay(client redis.UniversalClient, target Pusher, opts ...RelayOption) *RedisRelay {
	if client == nil {
		panic("pubsub: redis client cannot be nil")
	}
	r := &RedisRelay{
		client: client,
		target: target,
		prefix: DefaultChannelPrefix,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ChannelName returns the Redis channel used for event.
func (r *RedisRelay) ChannelName(event string) string {
	return r.prefix + event
}

// Publish sends value to the listeners of event in every relaying process.
func (r *RedisRelay) Publish(ctx context.Context, event string, value any) error {
	env, err := NewEnvelope(event, value)
	if err != nil {
		return err
	}
	env.Source = meta.SourceRedis

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("pubsub: encode envelope: %w", err)
	}
	if err := r.client.Publish(ctx, r.ChannelName(event), payload).Err(); err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to publish push to redis")
		return fmt.Errorf("pubsub: publish %q: %w", event, err)
	}
	log.Debug().Str("event", event).Str("message_id", env.ID).Msg("push published to redis")
	return nil
}

// Run receives pushes until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	ps := r.client.PSubscribe(ctx, r.prefix+"*")
	defer ps.Close()

	// wait for the subscription to be confirmed
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("pubsub: subscribe %s*: %w", r.prefix, err)
	}
	log.Info().Str("pattern", r.prefix+"*").Msg("redis relay subscribed")

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("redis relay stopping")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errRelayClosed
			}
			r.handle(ctx, msg.Channel, []byte(msg.Payload))
		}
	}
}

// handle decodes one Redis message and delivers it to the target.
func (r *RedisRelay) handle(ctx context.Context, channel string, payload []byte) {
	env, err := DecodeEnvelope(payload)
	if err != nil {
		log.Warn().Err(err).Str("channel", channel).Msg("dropping malformed push")
		return
	}
	if event := strings.TrimPrefix(channel, r.prefix); event != env.Event {
		log.Warn().Str("channel", channel).Str("event", env.Event).Msg("dropping push sent on a foreign channel")
		return
	}
	value, err := env.Decode()
	if err != nil {
		log.Warn().Err(err).Str("event", env.Event).Msg("dropping push with malformed value")
		return
	}
	if r.limiter.Limit(ctx, env.Event, "") {
		return
	}

	pushCtx := env.Context(context.WithoutCancel(ctx), meta.SourceRedis)
	push := func() {
		if err := r.target.Push(pushCtx, env.Event, value); err != nil {
			log.Debug().Err(err).Str("event", env.Event).Str("message_id", env.ID).Msg("relayed push not delivered")
		}
	}
	if r.poster == nil {
		push()
		return
	}
	if err := r.poster.Post(ctx, push); err != nil {
		log.Warn().Err(err).Str("event", env.Event).Msg("failed to schedule relayed push")
	}
}
