package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"ict-sweep-bot/config"
	"ict-sweep-bot/internal/alert"
	"ict-sweep-bot/internal/api"
	"ict-sweep-bot/internal/bot"
	"ict-sweep-bot/internal/logging"
	"ict-sweep-bot/internal/market"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Logger is not up yet.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)
	logger.Info().Str("config", *configPath).Str("name", cfg.Name).Msg("Starting paper trader")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	alerts := alert.NewManager(cfg.Alerts, logger)
	engine := bot.New(cfg, alerts, logger)

	bars, err := barSource(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Bar feed setup failed")
	}

	if cfg.Server.Enabled {
		server := api.NewServer(cfg.Server, engine, logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error().Err(err).Msg("Status API failed")
			}
		}()
		defer func() {
			if err := server.Shutdown(context.Background()); err != nil {
				logger.Error().Err(err).Msg("Status API shutdown failed")
			}
		}()
	}

	if err := engine.Run(ctx, bars); err != nil && err != context.Canceled {
		logger.Fatal().Err(err).Msg("Bot stopped with error")
	}
	logger.Info().Msg("Shutdown complete")
}

// barSource wires the configured feed: a CSV replay when replay_data_file
// is set, otherwise the websocket stream.
func barSource(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (<-chan market.Bar, error) {
	if cfg.Feed.ReplayDataFile != "" {
		feed, err := market.NewReplayFeed(cfg.Feed.ReplayDataFile, cfg.Symbols[0], cfg.Timeframe)
		if err != nil {
			return nil, err
		}
		out := make(chan market.Bar)
		go func() {
			defer close(out)
			for _, bar := range feed.All() {
				select {
				case out <- bar:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out, nil
	}

	stream := market.NewStream(cfg.Feed.WebsocketURL, cfg.Feed.ReconnectSecs, logger)
	go stream.Run(ctx)
	return stream.Bars(), nil
}
