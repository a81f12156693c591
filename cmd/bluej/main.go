package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bluej-social/bluej"
	"github.com/bluej-social/bluej/store"
	"github.com/bluej-social/bluej/store/memstore"
	"github.com/bluej-social/bluej/store/neostore"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Name:   "bluej",
		Usage:  "graph-backed feed generator for the atproto firehose",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "relay-host",
				EnvVars: []string{"BLUEJ_RELAY_HOST"},
				Value:   "wss://bsky.network",
			},
			&cli.StringFlag{
				Name:    "feed-addr",
				EnvVars: []string{"BLUEJ_FEED_ADDR"},
				Value:   ":3000",
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				EnvVars: []string{"BLUEJ_METRICS_ADDR"},
				Value:   ":8000",
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"BLUEJ_LOG_LEVEL"},
				Value:   "info",
			},
			&cli.StringFlag{
				Name:     "cursor-file",
				EnvVars:  []string{"BLUEJ_CURSOR_FILE"},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "hostname",
				EnvVars:  []string{"BLUEJ_HOSTNAME"},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "publisher-did",
				EnvVars:  []string{"BLUEJ_PUBLISHER_DID"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "service-did",
				EnvVars: []string{"BLUEJ_SERVICE_DID"},
			},
			&cli.StringFlag{
				Name:    "appview-host",
				EnvVars: []string{"BLUEJ_APPVIEW_HOST"},
				Value:   "https://public.api.bsky.app",
			},
			&cli.StringFlag{
				Name:    "store-backend",
				Usage:   "memory or neo4j",
				EnvVars: []string{"BLUEJ_STORE_BACKEND"},
				Value:   "neo4j",
			},
			&cli.StringFlag{
				Name:    "neo4j-addr",
				EnvVars: []string{"BLUEJ_NEO4J_ADDR"},
				Value:   "bolt://localhost:7687",
			},
			&cli.StringFlag{
				Name:    "neo4j-user",
				EnvVars: []string{"BLUEJ_NEO4J_USER"},
			},
			&cli.StringFlag{
				Name:    "neo4j-pass",
				EnvVars: []string{"BLUEJ_NEO4J_PASS"},
			},
			&cli.StringFlag{
				Name:    "dev-did",
				Usage:   "serve credential-less requests as this did (dev only)",
				EnvVars: []string{"BLUEJ_DEV_DID"},
			},
		},
		ErrWriter: os.Stderr,
	}

	app.Run(os.Args)
}

var run = func(cmd *cli.Context) error {
	ctx := cmd.Context
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var level slog.Level
	switch cmd.String("log-level") {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	l := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	var st store.Store
	switch cmd.String("store-backend") {
	case "memory":
		st = memstore.New()
	case "neo4j":
		ns, err := neostore.New(ctx, &neostore.Args{
			URI:      cmd.String("neo4j-addr"),
			Username: cmd.String("neo4j-user"),
			Password: cmd.String("neo4j-pass"),
			Logger:   l,
		})
		if err != nil {
			return err
		}
		defer ns.Close(ctx)
		st = ns
	default:
		return fmt.Errorf("unknown store backend %q", cmd.String("store-backend"))
	}

	serviceDID := cmd.String("service-did")
	if serviceDID == "" {
		serviceDID = "did:web:" + cmd.String("hostname")
	}

	b, err := bluej.New(ctx, &bluej.Args{
		Logger:          l,
		RelayHost:       cmd.String("relay-host"),
		FeedAddr:        cmd.String("feed-addr"),
		MetricsAddr:     cmd.String("metrics-addr"),
		CursorFile:      cmd.String("cursor-file"),
		ServiceDID:      serviceDID,
		PublisherDID:    cmd.String("publisher-did"),
		Hostname:        cmd.String("hostname"),
		Store:           st,
		FollowClient:    bluej.NewXRPCFollowClient(cmd.String("appview-host")),
		Auth:            &bluej.DevAuthValidator{FallbackDID: cmd.String("dev-did")},
		RegisterMetrics: true,
	})
	if err != nil {
		return err
	}

	go func() {
		exitSignals := make(chan os.Signal, 1)
		signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)

		sig := <-exitSignals

		l.Info("received os exit signal", "signal", sig)
		cancel()
	}()

	return b.Run(ctx)
}
