package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"itemservice/pkg/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args[1:], nil); err != nil {
		fmt.Fprintf(os.Stderr, "itemservice: %v\n", err)
		stop()
		os.Exit(1)
	}
}
