package main

import (
	"context"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	httpdelivery "github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/delivery/http"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/projector"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/repository"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/service"
)

var projectorFlags = map[string]cobraflags.Flag{
	httpAddrFlag: &cobraflags.StringFlag{
		Name:  httpAddrFlag,
		Value: "",
		Usage: "HTTP listen address (overrides http.addr, default :8081)",
	},
}

func newProjectorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projector",
		Short: "Run the order-side projector",
		RunE:  projectorCommand,
	}
	cobraflags.RegisterMap(cmd, projectorFlags)
	return cmd
}

func projectorCommand(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	repo, err := a.openProjection(ctx)
	if err != nil {
		return err
	}
	svc, sub, err := a.projector(repo)
	if err != nil {
		return err
	}

	addr := listenAddr(projectorFlags[httpAddrFlag].GetString(), a.cfg.HTTP.Addr, ":8081")
	router := httpdelivery.NewRouter(a.logger, a.metrics, httpdelivery.NewProjectorHandler(svc, sub, a.logger))

	return runAll(ctx,
		sub.Run,
		func(ctx context.Context) error { return serve(ctx, a.logger, "projector", addr, router) },
	)
}

func (a *app) projector(repo repository.ProjectionRepository) (*service.ProjectionService, *projector.Subscriber, error) {
	source, err := a.newSubscriber()
	if err != nil {
		return nil, nil, err
	}
	svc := service.NewProjectionService(repo)

	opts := []projector.Option{
		projector.WithLogger(a.logger),
		projector.WithMetrics(a.metrics),
	}
	if topic := a.cfg.Kafka.DeadLetterTopic; topic != "" {
		dlq, err := a.newPublisher()
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, projector.WithDeadLetter(dlq, topic))
	}
	return svc, projector.New(source, a.cfg.Kafka.Topic, svc, opts...), nil
}
