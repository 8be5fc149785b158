package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"rigelnet/config"
	"rigelnet/handler"
	"rigelnet/middleware"
	"rigelnet/node"
	"rigelnet/provider"
	"rigelnet/registry"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	statusInterval time.Duration
	peerRate       float64
	peerBurst      int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a lobby server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cmd)
	},
}

func init() {
	serveCmd.Flags().DurationVar(&statusInterval, "status", 0, "print the slot table at this interval (0 disables)")
	serveCmd.Flags().Float64Var(&peerRate, "peer-rate", 50, "calls per second allowed per peer")
	serveCmd.Flags().IntVar(&peerBurst, "peer-burst", 100, "burst of calls allowed per peer")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	opts, err := cfg.Options()
	if err != nil {
		return err
	}

	reg := handler.NewRegistry()
	lb := &lobby{log: logger}
	if err := lb.register(reg); err != nil {
		return err
	}
	err = reg.Use(
		middleware.RecoverMiddleware(),
		middleware.LoggingMiddleware(logger),
		middleware.PeerRateLimitMiddleware(peerRate, peerBurst),
	)
	if err != nil {
		return err
	}

	udp, err := provider.ListenUDP(net.JoinHostPort(cfg.Listen.Address, strconv.Itoa(cfg.Listen.Port)))
	if err != nil {
		return err
	}
	defer udp.Close()

	opts.Handlers = reg
	opts.Logger = logger
	srv, err := node.NewServer(udp, opts)
	if err != nil {
		return err
	}
	lb.srv = srv
	logger.Info("serving", zap.Int("port", udp.LocalPort()), zap.Int("slots", cfg.MaxConnections))

	g, ctx := errgroup.WithContext(ctx)

	if len(cfg.Discovery.Endpoints) > 0 {
		etcd, err := registry.NewEtcdRegistry(cfg.Discovery.Endpoints)
		if err != nil {
			return fmt.Errorf("connect to etcd: %w", err)
		}
		defer etcd.Close()
		if err := srv.Advertise(etcd, cfg.Discovery.Service, cfg.Discovery.Version, cfg.Discovery.Host, cfg.Discovery.TTL); err != nil {
			return err
		}
		g.Go(func() error {
			watchService(ctx, etcd, cfg.Discovery.Service)
			return nil
		})
	}

	var reloads <-chan *config.Config
	if _, err := os.Stat(cfgFile); err == nil {
		reloads, err = config.Watch(ctx, cfgFile, logger)
		if err != nil {
			logger.Warn("config watch unavailable", zap.Error(err))
		}
	}

	g.Go(func() error {
		return tickServer(ctx, cmd, srv, reloads)
	})
	return g.Wait()
}

// tickServer is the only goroutine that touches srv.
func tickServer(ctx context.Context, cmd *cobra.Command, srv *node.Server, reloads <-chan *config.Config) error {
	tick := time.NewTicker(cfg.TickInterval)
	defer tick.Stop()

	var status <-chan time.Time
	if statusInterval > 0 {
		t := time.NewTicker(statusInterval)
		defer t.Stop()
		status = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return srv.Shutdown()
		case next, ok := <-reloads:
			if !ok {
				reloads = nil
				continue
			}
			applyReload(srv, next)
		case <-status:
			fmt.Fprintln(cmd.OutOrStdout(), renderPeers(srv.Slots()))
		case <-tick.C:
			// Handler errors are already logged by the node.
			_ = srv.Update()
		}
	}
}

// applyReload takes the settings that can change on a live server. Slot
// count, codec and listen address need a restart.
func applyReload(srv *node.Server, next *config.Config) {
	srv.SetPassphrase(next.Passphrase)
	if err := srv.SetTimeouts(next.LivenessTimeout, next.HeartbeatInterval); err != nil {
		logger.Warn("reload rejected", zap.Error(err))
		return
	}
	if next.MaxConnections != cfg.MaxConnections || next.Codec != cfg.Codec || next.Listen != cfg.Listen {
		logger.Warn("reload ignores max_connections, codec and listen until restart")
	}
	logger.Info("config reloaded")
}

// watchService logs how many servers are advertised under service.
func watchService(ctx context.Context, reg registry.Registry, service string) {
	updates := reg.Watch(service)
	for {
		select {
		case <-ctx.Done():
			return
		case instances, ok := <-updates:
			if !ok {
				return
			}
			logger.Info("service changed", zap.String("service", service), zap.Int("servers", len(instances)))
		}
	}
}

