package main

import (
	"context"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/config"
	httpdelivery "github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/delivery/http"
)

const projectorAddrFlag = "projector-addr"

var standaloneFlags = map[string]cobraflags.Flag{
	httpAddrFlag: &cobraflags.StringFlag{
		Name:  httpAddrFlag,
		Value: ":8080",
		Usage: "Writer HTTP listen address",
	},
	projectorAddrFlag: &cobraflags.StringFlag{
		Name:  projectorAddrFlag,
		Value: ":8081",
		Usage: "Projector HTTP listen address",
	},
}

func newStandaloneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "standalone",
		Short: "Run writer and projector in one process",
		Long:  "Runs both services against in-memory stores, connected by an in-process channel. Nothing survives a restart.",
		RunE:  standaloneCommand,
	}
	cobraflags.RegisterMap(cmd, standaloneFlags)
	return cmd
}

func standaloneCommand(cmd *cobra.Command, _ []string) error {
	a, err := newApp(func(c *config.Config) {
		c.Database.Driver = config.DriverMemory
		c.Kafka.Client = config.ClientGoChannel
	})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	catalog, relay, err := a.catalogService(ctx)
	if err != nil {
		return err
	}
	repo, err := a.openProjection(ctx)
	if err != nil {
		return err
	}
	projection, sub, err := a.projector(repo)
	if err != nil {
		return err
	}

	writerRouter := httpdelivery.NewRouter(a.logger, a.metrics, httpdelivery.NewWriterHandler(catalog, a.logger))
	projectorRouter := httpdelivery.NewRouter(a.logger, a.metrics, httpdelivery.NewProjectorHandler(projection, sub, a.logger))
	writerAddr := standaloneFlags[httpAddrFlag].GetString()
	projectorAddr := standaloneFlags[projectorAddrFlag].GetString()

	fns := []func(context.Context) error{
		sub.Run,
		func(ctx context.Context) error { return serve(ctx, a.logger, "writer", writerAddr, writerRouter) },
		func(ctx context.Context) error { return serve(ctx, a.logger, "projector", projectorAddr, projectorRouter) },
	}
	if relay != nil {
		fns = append(fns, relay.Run)
	}
	return runAll(ctx, fns...)
}
