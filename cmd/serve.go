package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/desertthunder/mediafetch/internal/artifacts"
	"github.com/desertthunder/mediafetch/internal/server"
	"github.com/desertthunder/mediafetch/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultSweepAge = time.Hour

// Serve runs the HTTP server until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Server
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := cmd.Int("port"); port != 0 {
		cfg.Port = port
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := r.healthCheck()
	if !cmd.Bool("skip-check") {
		version, err := r.checkExtractor(ctx, r.config.Extractor.AutoInstall)
		if err != nil {
			return err
		}
		r.logger.Info("yt-dlp ready", "version", version)
	}

	st, err := r.open(stackOpts{history: true, rateLimit: true})
	if err != nil {
		return err
	}
	defer func() {
		if st.db != nil {
			st.db.Close()
		}
	}()

	if st.db == nil {
		r.logger.Info("history disabled")
	}

	api := server.NewAPI(server.APIOpts{
		Service:   st.service,
		Store:     st.store,
		History:   historyLister(st),
		Health:    health,
		Logger:    r.logger,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
	})
	srv := server.New(cfg, api, r.logger)

	ln, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.Addr(), err)
	}

	if age := cmd.Duration("sweep-after"); age > 0 {
		go r.sweep(ctx, st.store, age)
	}

	if cmd.Bool("open") {
		url := "http://" + browserAddr(ln.Addr()) + "/health"
		if err := shared.OpenBrowser(url); err != nil {
			r.logger.Warn("could not open browser", "url", url, "err", err)
		}
	}

	return srv.Run(ctx, ln)
}

// historyLister avoids handing the API a typed nil repository.
func historyLister(st *stack) server.HistoryLister {
	if st.history == nil {
		return nil
	}
	return st.history
}

// healthCheck adapts the extractor's version check for GET /health.
func (r *Runner) healthCheck() server.HealthCheck {
	c, ok := r.checker()
	if !ok {
		return nil
	}
	return func(ctx context.Context) (string, error) {
		return c.Check(ctx, false)
	}
}

func (r *Runner) checkExtractor(ctx context.Context, install bool) (string, error) {
	c, ok := r.checker()
	if !ok {
		return "", fmt.Errorf("%w: extractor has no version check", shared.ErrNotImplemented)
	}
	return c.Check(ctx, install)
}

// sweep periodically removes files left behind by interrupted downloads and deliveries.
func (r *Runner) sweep(ctx context.Context, store *artifacts.Store, age time.Duration) {
	interval := min(age, 10*time.Minute)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Sweep(age)
			if err != nil {
				r.logger.Warn("sweep failed", "err", err)
				continue
			}
			if n > 0 {
				r.logger.Info("swept stale files", "count", n)
			}
		}
	}
}

// browserAddr turns a listener address into something a browser can reach.
func browserAddr(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return addr.String()
	}
	host := "localhost"
	if !tcp.IP.IsUnspecified() {
		host = tcp.IP.String()
	}
	return net.JoinHostPort(host, strconv.Itoa(tcp.Port))
}

