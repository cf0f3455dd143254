package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/crystaldolphin/murmur/internal/channels"
	"github.com/crystaldolphin/murmur/internal/dependency"
)

var (
	servePort        int
	serveInteractive bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the WebSocket server for transcription clients",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Gateway port (overrides gateway.port)")
	serveCmd.Flags().BoolVarP(&serveInteractive, "interactive", "i", false, "Also read utterances from the terminal")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Gateway.Port = servePort
	}

	container, err := dependency.New(cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := container.MessageBus()
	chs := []channels.Channel{channels.NewWebSocketChannel(cfg.GatewayAddr(), b)}
	if serveInteractive {
		cli := channels.NewCLIChannel(b, os.Stdin, os.Stdout)
		cli.OnExit = stop
		chs = append(chs, cli)
	}
	channelMgr := channels.NewManager(b, chs...)

	fmt.Printf("%s Starting murmur on ws://%s (%s)\n", logo, cfg.GatewayAddr(), container.Provider().Name())
	fmt.Printf("✓ Channels enabled: %s\n", strings.Join(channelMgr.EnabledChannels(), ", "))
	fmt.Printf("✓ Tools: %s\n", strings.Join(container.Registry().Names(), ", "))
	if jobs := container.Scheduler().Jobs(); len(jobs) > 0 {
		fmt.Printf("✓ Ingest jobs: %d\n", len(jobs))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return container.AgentLoop().Run(gctx) })
	g.Go(func() error { return container.Scheduler().Start(gctx) })
	g.Go(func() error { return channelMgr.StartAll(gctx) })

	fmt.Printf("%s Server running. Press Ctrl+C to stop.\n", logo)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "serve error: %v\n", err)
		return err
	}
	fmt.Println("\nShutdown complete.")
	return nil
}
