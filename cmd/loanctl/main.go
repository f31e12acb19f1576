// Command loanctl is the operator CLI: it trains and validates on data files,
// scores applicants from JSON or flags, runs the interactive application form
// and queries the policy assistant.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
