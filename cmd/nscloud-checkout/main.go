package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/namespacelabs/nscloud-checkout-action/errors"
	"github.com/namespacelabs/nscloud-checkout-action/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	masker := logging.NewMasker(nil)
	root := newRootCommand(masker)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", masker.Mask(err.Error()))
		if hint := errors.Hint(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", masker.Mask(hint))
		}
		stop()
		os.Exit(1)
	}
}
