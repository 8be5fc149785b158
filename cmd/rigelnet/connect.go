package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"rigelnet/handler"
	"rigelnet/loadbalance"
	"rigelnet/node"
	"rigelnet/provider"
	"rigelnet/registry"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	passphrase string
	stay       time.Duration
	pings      int
)

var connectCmd = &cobra.Command{
	Use:   "connect [host:port]",
	Short: "Join a lobby and relay stdin lines as chat",
	Long: `connect joins the lobby at host:port, or, without an argument, discovers
one through the configured etcd endpoints. Each stdin line is sent as chat;
"/spawn NAME" and "/despawn ID" manage objects. The command exits when stdin
ends and --stay has elapsed, or on interrupt.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runConnect(ctx, cmd, args)
	},
}

func init() {
	connectCmd.Flags().StringVar(&passphrase, "pass", "", "passphrase (default from config)")
	connectCmd.Flags().DurationVar(&stay, "stay", time.Second, "keep ticking this long after stdin ends")
	connectCmd.Flags().IntVar(&pings, "ping", 0, "send this many pings after connecting")
	rootCmd.AddCommand(connectCmd)
}

func runConnect(ctx context.Context, cmd *cobra.Command, args []string) error {
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	reg := handler.NewRegistry()
	p := &player{out: cmd.OutOrStdout(), clock: time.Now}
	if err := p.register(reg); err != nil {
		return err
	}

	udp, err := provider.ListenUDP(":0")
	if err != nil {
		return err
	}
	defer udp.Close()

	opts.Handlers = reg
	opts.Logger = logger
	c, err := node.NewClient(udp, opts)
	if err != nil {
		return err
	}
	if passphrase == "" {
		passphrase = cfg.Passphrase
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := dial(connectCtx, c, args); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "connected to %s\n", c.Remote().Address())

	for i := 0; i < pings; i++ {
		if err := c.Call(idxPing, time.Now().UnixNano()); err != nil {
			return err
		}
	}

	lines := make(chan string)
	go readLines(cmd.InOrStdin(), lines)
	return tickClient(ctx, c, lines)
}

func dial(ctx context.Context, c *node.Client, args []string) error {
	if len(args) == 1 {
		host, port, err := splitHostPort(args[0])
		if err != nil {
			return err
		}
		return c.Connect(ctx, host, port, passphrase)
	}
	if len(cfg.Discovery.Endpoints) == 0 {
		return errors.New("no server given and no discovery endpoints configured")
	}
	etcd, err := registry.NewEtcdRegistry(cfg.Discovery.Endpoints)
	if err != nil {
		return err
	}
	defer etcd.Close()
	bal, err := loadbalance.New(cfg.Discovery.Balancer, cfg.Discovery.Key)
	if err != nil {
		return err
	}
	return c.ConnectService(ctx, etcd, bal, cfg.Discovery.Service, cfg.Discovery.Constraint, passphrase)
}

func splitHostPort(addr string) (string, int, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("bad port %q", p)
	}
	return host, port, nil
}

func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		out <- sc.Text()
	}
}

// tickClient is the only goroutine that touches c once connected.
func tickClient(ctx context.Context, c *node.Client, lines <-chan string) error {
	tick := time.NewTicker(cfg.TickInterval)
	defer tick.Stop()
	var done <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			c.Disconnect()
			return nil
		case <-done:
			c.Disconnect()
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				done = time.After(stay)
				continue
			}
			if err := sendLine(c, line); err != nil {
				logger.Warn("send failed", zap.Error(err))
			}
		case <-tick.C:
			_ = c.Update()
			if !c.Remote().Connected() {
				return errors.New("connection lost")
			}
		}
	}
}

func sendLine(c *node.Client, line string) error {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil
	case strings.HasPrefix(line, "/spawn "):
		return c.Call(idxSpawn, strings.TrimSpace(strings.TrimPrefix(line, "/spawn ")))
	case strings.HasPrefix(line, "/despawn "):
		id, err := strconv.ParseUint(strings.TrimSpace(strings.TrimPrefix(line, "/despawn ")), 10, 32)
		if err != nil {
			return fmt.Errorf("bad object id: %w", err)
		}
		return c.Call(idxDespawn, uint32(id))
	}
	return c.Call(idxSay, line)
}
