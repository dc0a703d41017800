// notaryctl inspects transactions on the configured chain without touching
// the document store: check reports the current state of a transaction hash,
// wait blocks until it is confirmed or the monitor gives up.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/absnotary/internal/logging"
	"github.com/dmitrijs2005/absnotary/internal/worker/chain"
	"github.com/dmitrijs2005/absnotary/internal/worker/config"
	"github.com/dmitrijs2005/absnotary/internal/worker/monitor"
)

func main() {

	if len(os.Args) < 3 {
		usage()
		os.Exit(2)
	}

	command := os.Args[1]
	txHash := os.Args[2]
	os.Args = append(os.Args[:1], os.Args[3:]...)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger := logging.NewJSON(cfg.LogLevel)
	client := chain.NewRPCClient(cfg.ChainRPCEndpoint, cfg.ChainContractAddress, cfg.ChainAccountAddress, logger)
	m := monitor.New(client, monitor.Config{
		RequiredConfirmations: cfg.RequiredConfirmations,
		PollInterval:          cfg.PollInterval,
		MaxAttempts:           cfg.MaxPollAttempts,
		MaxWait:               cfg.MaxConfirmationWait,
	}, logger)

	ctx := context.Background()

	switch command {
	case "check":
		status, err := m.CheckStatus(ctx, txHash)
		if err != nil {
			log.Fatalf("%v", err)
		}
		printStatus(status)
	case "wait":
		receipt, err := m.WaitForConfirmation(ctx, txHash)
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Printf("confirmed in block %d\n", receipt.BlockNumber)
	default:
		usage()
		os.Exit(2)
	}

}

func printStatus(s *monitor.Status) {
	fmt.Printf("state: %s\n", s.State)
	if s.Receipt != nil {
		fmt.Printf("block: %d\n", s.Receipt.BlockNumber)
	}
	if s.State == monitor.TxConfirmed {
		fmt.Printf("confirmations: %d\n", s.Confirmations)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: notaryctl <check|wait> <tx-hash> [flags]")
}
