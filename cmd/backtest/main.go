package main

import (
	"flag"
	"fmt"
	"os"

	"ict-sweep-bot/config"
	"ict-sweep-bot/internal/backtest"
	"ict-sweep-bot/internal/logging"
	"ict-sweep-bot/internal/market"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	dataPath := flag.String("data", "", "CSV file with historical bars")
	symbol := flag.String("symbol", "", "symbol to run (defaults to the first configured one)")
	flag.Parse()

	if *dataPath == "" {
		os.Stderr.WriteString("usage: backtest -data bars.csv [-config config.yaml] [-symbol ES]\n")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)

	sym := *symbol
	if sym == "" {
		sym = cfg.Symbols[0]
	}

	feed, err := market.NewReplayFeed(*dataPath, sym, cfg.Timeframe)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load bars")
	}

	engine := backtest.NewEngine(cfg, logger)
	result, err := engine.Run(sym, feed.All())
	if err != nil {
		logger.Fatal().Err(err).Msg("Backtest failed")
	}

	fmt.Println(result.Summary())
	for _, trade := range result.Trades {
		fmt.Printf("  %s  %-5s  %d @ %.2f  net %.2f  (%.2fR)\n",
			trade.EntryTime.Format("2006-01-02 15:04"), trade.Direction,
			trade.Contracts, trade.Entry, trade.NetPnL, trade.RMultiple)
	}
}
