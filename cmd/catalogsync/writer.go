package main

import (
	"context"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	httpdelivery "github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/delivery/http"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/outbox"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/service"
)

const httpAddrFlag = "http-addr"

var writerFlags = map[string]cobraflags.Flag{
	httpAddrFlag: &cobraflags.StringFlag{
		Name:  httpAddrFlag,
		Value: "",
		Usage: "HTTP listen address (overrides http.addr, default :8080)",
	},
}

func newWriterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "writer",
		Short: "Run the catalog writer",
		RunE:  writerCommand,
	}
	cobraflags.RegisterMap(cmd, writerFlags)
	return cmd
}

func writerCommand(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	svc, relay, err := a.catalogService(ctx)
	if err != nil {
		return err
	}

	addr := listenAddr(writerFlags[httpAddrFlag].GetString(), a.cfg.HTTP.Addr, ":8080")
	router := httpdelivery.NewRouter(a.logger, a.metrics, httpdelivery.NewWriterHandler(svc, a.logger))

	fns := []func(context.Context) error{
		func(ctx context.Context) error { return serve(ctx, a.logger, "writer", addr, router) },
	}
	if relay != nil {
		fns = append(fns, relay.Run)
	}
	return runAll(ctx, fns...)
}

// catalogService wires the writer. In outbox mode it also returns the relay
// that drains the outbox.
func (a *app) catalogService(ctx context.Context) (*service.CatalogService, *outbox.Relay, error) {
	repo, outboxRepo, err := a.openCatalog(ctx)
	if err != nil {
		return nil, nil, err
	}
	pub, err := a.newPublisher()
	if err != nil {
		return nil, nil, err
	}

	mode, err := service.ParsePublishMode(a.cfg.Publish.Mode)
	if err != nil {
		return nil, nil, err
	}
	opts := []service.CatalogOption{
		service.WithCatalogLogger(a.logger),
		service.WithCatalogMetrics(a.metrics),
		service.WithTopic(a.cfg.Kafka.Topic),
	}
	var relay *outbox.Relay
	if mode == service.PublishOutbox {
		opts = append(opts, service.WithOutbox(outboxRepo))
		relay = a.relay(outboxRepo, pub)
		a.logger.Warn("Outbox mode enabled: create requests no longer report publish failures")
	}
	return service.NewCatalogService(repo, pub, opts...), relay, nil
}

func listenAddr(flag, configured, fallback string) string {
	if flag != "" {
		return flag
	}
	if configured != "" {
		return configured
	}
	return fallback
}
