package main

import (
	"context"
	"errors"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	httpdelivery "github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/delivery/http"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/messaging"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/outbox"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/repository"
)

var relayFlags = map[string]cobraflags.Flag{
	httpAddrFlag: &cobraflags.StringFlag{
		Name:  httpAddrFlag,
		Value: "",
		Usage: "Metrics listen address (overrides http.addr; metrics are off when both are empty)",
	},
}

func newRelayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Publish pending outbox events",
		Long:  "Drains the writer's outbox table. Only needed when the writer runs with publish.mode=outbox and the relay is hosted separately.",
		RunE:  relayCommand,
	}
	cobraflags.RegisterMap(cmd, relayFlags)
	return cmd
}

func relayCommand(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	_, outboxRepo, err := a.openCatalog(ctx)
	if err != nil {
		return err
	}
	if outboxRepo == nil {
		return errors.New("the configured database driver has no outbox")
	}
	pub, err := a.newPublisher()
	if err != nil {
		return err
	}

	fns := []func(context.Context) error{a.relay(outboxRepo, pub).Run}
	if addr := listenAddr(relayFlags[httpAddrFlag].GetString(), a.cfg.HTTP.Addr, ""); addr != "" {
		router := httpdelivery.NewRouter(a.logger, a.metrics)
		fns = append(fns, func(ctx context.Context) error { return serve(ctx, a.logger, "relay", addr, router) })
	}
	return runAll(ctx, fns...)
}

func (a *app) relay(repo repository.OutboxRepository, pub messaging.Publisher) *outbox.Relay {
	return outbox.NewRelay(repo, pub,
		outbox.WithLogger(a.logger),
		outbox.WithMetrics(a.metrics),
		outbox.WithInterval(a.cfg.Publish.RelayInterval),
		outbox.WithBatchSize(a.cfg.Publish.RelayBatch),
	)
}
