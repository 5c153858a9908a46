package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/toolink/widgets/pubsub"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Mount the configured widgets and accept pushes until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		h := newHost(cfg)
		defer h.close()

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := h.serve(ctx); err != nil {
			return err
		}
		return renderTo(cmd, h)
	},
}

// serve runs the loop and every configured transport until ctx is done
// or one of them fails.
func (h *host) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := h.loop.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	var mountErr error
	if err := h.loop.Do(gctx, func() { mountErr = h.mount(gctx) }); err != nil {
		mountErr = err
	}
	if mountErr != nil {
		cancel()
		_ = g.Wait()
		return mountErr
	}

	if h.redis != nil {
		relay := pubsub.NewRedisRelay(h.redis, h.core,
			pubsub.WithPoster(h.loop),
			pubsub.WithChannelPrefix(h.cfg.Relay.ChannelPrefix),
			pubsub.WithRelayLimiter(h.limiter),
		)
		g.Go(func() error { return relay.Run(gctx) })
	}
	if addr := h.cfg.GRPC.Addr; addr != "" {
		if err := h.serveGRPC(gctx, g, addr); err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
	}
	if addr := h.cfg.Metrics.Addr; addr != "" {
		h.serveMetrics(gctx, g, addr)
	}

	log.Info().Msg("widget host running")
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("widget host stopped")
	return nil
}

func (h *host) serveGRPC(ctx context.Context, g *errgroup.Group, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	srv := grpc.NewServer()
	pubsub.RegisterChannelServer(srv, pubsub.NewGateway(h.core,
		pubsub.WithDoer(h.loop),
		pubsub.WithGatewayLimiter(h.limiter),
	))

	g.Go(func() error {
		log.Info().Str("addr", lis.Addr().String()).Msg("grpc gateway listening")
		if err := srv.Serve(lis); err != nil {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		srv.GracefulStop()
		return nil
	})
	return nil
}

func (h *host) serveMetrics(ctx context.Context, g *errgroup.Group, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(h.metrics, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("metrics listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
