package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var configPath string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "catalogsync",
		Short: "Product catalog writer and order-side projection",
		Long: `catalogsync runs the two halves of the product catalog pipeline.

  writer     - stores products and publishes product-created events
  projector  - consumes product-created events into the order-side store
  relay      - publishes events left in the outbox by the writer
  standalone - writer and projector in one process over an in-memory channel`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a TOML or YAML config file")

	root.AddCommand(newWriterCommand())
	root.AddCommand(newProjectorCommand())
	root.AddCommand(newRelayCommand())
	root.AddCommand(newStandaloneCommand())
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		slog.Error("Exiting", "err", err)
		cancel()
		os.Exit(1)
	}
}
