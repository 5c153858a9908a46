package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/toolink/widgets/config"
	"github.com/toolink/widgets/core"
	"github.com/toolink/widgets/dom"
	"github.com/toolink/widgets/extension"
	"github.com/toolink/widgets/global"
	"github.com/toolink/widgets/limiter"
	"github.com/toolink/widgets/loop"
	"github.com/toolink/widgets/meta"
)

// host is one widget core with the services around it.
type host struct {
	cfg     *config.Config
	core    *core.Core
	loop    *loop.Loop
	metrics *prometheus.Registry
	redis   redis.UniversalClient // nil without relay.redis_addr
	limiter *limiter.RateLimiter
}

func newHost(cfg *config.Config) *host {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	h := &host{
		cfg:     cfg,
		core:    core.New(dom.NewDocument(), core.WithConfig(cfg), core.WithRegisterer(reg)),
		loop:    loop.New(64),
		metrics: reg,
	}
	if cfg.Relay.RedisAddr != "" {
		h.redis = redis.NewClient(&redis.Options{Addr: cfg.Relay.RedisAddr})
	}

	var store limiter.Store
	if cfg.Limits.StorageType == limiter.StorageRedis {
		store = limiter.NewRedisStore(h.redis)
	} else {
		store = limiter.NewMemoryStore()
	}
	h.limiter = limiter.NewRateLimiter(&cfg.Limits, store)

	// widgets built outside this command find the host core here
	global.SetCore(h.core)
	return h
}

// mount declares and loads every configured widget, in order.
// Must run on the host loop once it is started.
func (h *host) mount(ctx context.Context) error {
	doc := h.core.Document()
	for _, w := range h.cfg.Widgets {
		parent, err := resolveParent(doc, w.Parent)
		if err != nil {
			return fmt.Errorf("widget %q: %w", w.Name, err)
		}
		err = h.core.Chain(ctx).
			Extend(w.Name, textWidget(h.core, w.Event)).
			Load(w.Name, w.Params, parent).
			Err()
		if err != nil {
			return fmt.Errorf("widget %q: %w", w.Name, err)
		}
	}
	log.Info().Int("count", len(h.cfg.Widgets)).Msg("widgets mounted")
	return nil
}

func (h *host) close() {
	if h.redis != nil {
		if err := h.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
}

// resolveParent maps a configured parent to an element of doc.
// "" means no parent, "body" the body element, anything else an element id.
func resolveParent(doc *dom.Document, parent string) (*html.Node, error) {
	switch parent {
	case "":
		return nil, nil
	case "body":
		if body := doc.Body(); body != nil {
			return body, nil
		}
		return nil, dom.ErrNoBody
	default:
		if el := doc.GetElementByID(parent); el != nil {
			return el, nil
		}
		return nil, fmt.Errorf("%w: #%s", dom.ErrUnknownElement, parent)
	}
}

// textWidget shows its params as text and, when event is set, replaces
// the text with every value pushed to event.
func textWidget(c *core.Core, event string) extension.Factory {
	return func(ctx context.Context, self *html.Node, params any) {
		name := meta.Widget(ctx)
		if self != nil {
			dom.SetText(self, formatValue(params))
		}
		if event == "" {
			return
		}
		c.Listen(event, func(ctx context.Context, value any) {
			log.Info().
				Str("widget", name).
				Str("event", event).
				Str("source", meta.Source(ctx)).
				Str("from", meta.Widget(ctx)).
				Msg("widget updated")
			if self != nil {
				dom.SetText(self, formatValue(value))
			}
		})
	}
}

// formatValue renders strings as is and anything else as JSON.
func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// parseValue reads a command-line value as JSON, falling back to a plain string.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}
