// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/log"

	"github.com/plasmalabs/exitgame/api"
	"github.com/plasmalabs/exitgame/challenge"
	"github.com/plasmalabs/exitgame/containers/events"
	"github.com/plasmalabs/exitgame/cmd/util"
	"github.com/plasmalabs/exitgame/payment"
	"github.com/plasmalabs/exitgame/protocol"
	"github.com/plasmalabs/exitgame/store"
	"github.com/plasmalabs/exitgame/util/timeref"
)

func init() {
	http.DefaultServeMux = http.NewServeMux()
}

func main() {
	if err := startup(); err != nil {
		log.Error("Error running exit game", "err", err)
	}
}

func printSampleUsage() {
	progname := os.Args[0]
	fmt.Printf("\n")
	fmt.Printf("Sample usage:                  %s --help \n", progname)
}

func startup() error {
	config, err := ParseExitGame(context.Background(), os.Args[1:])
	if err != nil {
		printSampleUsage()
		if !strings.Contains(err.Error(), "help requested") {
			fmt.Printf("%s\n", err.Error())
		}
		return nil
	}

	glogger := log.NewGlogHandler(log.StreamHandler(os.Stderr, log.TerminalFormat(false)))
	glogger.Verbosity(log.Lvl(config.LogLevel))
	log.Root().SetHandler(glogger)

	if err := util.StartMetrics(config.Metrics, &config.MetricsServer); err != nil {
		return err
	}

	var exits store.Store
	if config.Persistent.Path != "" {
		exits, err = store.OpenPebble(config.Persistent.Path)
		if err != nil {
			return err
		}
	} else {
		log.Warn("No database path configured, exit records will not survive a restart")
		exits = store.NewMemory()
	}
	defer func() {
		if err := exits.Close(); err != nil {
			log.Error("Error closing exit store", "err", err)
		}
	}()

	framework := protocol.NewStaticFramework(
		timeref.SecondsDuration(config.Chain.MinExitPeriod),
		config.Chain.ChildBlockInterval,
	)
	if err := framework.RegisterProtocol(payment.TxType, protocol.ProtocolMoreVP); err != nil {
		return err
	}
	guards := protocol.NewMapGuardRegistry()
	if err := guards.Register(payment.OutputType, payment.NewGuardHandler()); err != nil {
		return err
	}
	spends := protocol.NewMapSpendRegistry()
	if err := spends.Register(payment.OutputType, payment.TxType, payment.NewSpendingCondition()); err != nil {
		return err
	}

	controller := challenge.NewController(exits, framework, guards, spends, payment.TxType)
	challenged := controller.SubscribeChallenged()
	defer challenged.Close()
	responded := controller.SubscribeResponded()
	defer responded.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go logDisputeEvents(ctx, challenged, responded)

	addr := fmt.Sprintf("%v:%v", config.HTTP.Addr, config.HTTP.Port)
	server, err := api.New(addr, exits, framework)
	if err != nil {
		return err
	}
	go func() {
		if err := server.Start(ctx); err != nil && err != http.ErrServerClosed {
			log.Error("API server stopped", "err", err)
		}
	}()
	log.Info("Exit game started", "httpAddr", addr, "txType", payment.TxType)

	defer log.Info("Cleanly shutting down exit game")

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	<-sigint

	return server.Stop(context.Background())
}

func logDisputeEvents(
	ctx context.Context,
	challenged *events.Subscription[challenge.Challenged],
	responded *events.Subscription[challenge.Responded],
) {
	go func() {
		for {
			ev, err := challenged.Next(ctx)
			if err != nil {
				return
			}
			log.Info("Observed challenge",
				"challenger", ev.Challenger, "txHash", ev.TxHash, "competitorPosition", ev.CompetitorPosition)
		}
	}()
	for {
		ev, err := responded.Next(ctx)
		if err != nil {
			return
		}
		log.Info("Observed rebuttal",
			"responder", ev.Responder, "txHash", ev.TxHash, "respondedPosition", ev.RespondedPosition)
	}
}
