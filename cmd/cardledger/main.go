package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/alovak/cardledger/ledger"
	"golang.org/x/exp/slog"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := ledger.LoadConfig(".")
	if err != nil {
		logger.Error("loading config", "err", err)
		os.Exit(1)
	}

	app := ledger.NewApp(logger, cfg)
	if err := app.Start(); err != nil {
		logger.Error("starting app", "err", err)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	app.Shutdown()
}
