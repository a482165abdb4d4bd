package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thedartagnan/brainer/internal/brainerrole"
	"github.com/thedartagnan/brainer/internal/bus"
	"github.com/thedartagnan/brainer/internal/logging"
	"github.com/thedartagnan/brainer/internal/role"
)

func brainerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brainer",
		Short: "Run the brainer terminal role",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			shutdown, err := initObservability(cfg, "brainer")
			if err != nil {
				return err
			}
			defer shutdown()

			conn, err := bus.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Heartbeat)
			if err != nil {
				return fmt.Errorf("dial amqp: %w", err)
			}
			defer conn.Close()

			var b role.Agent = brainerrole.New(conn, bus.NewPublisher(conn), cfg.RabbitMQ.Exchange, cfg.RabbitMQ.QuestionKey, cfg.RabbitMQ.AnswerKey)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				logging.Op().Info("shutdown signal received")
				cancel()
			}()

			return b.Start(ctx)
		},
	}
	return cmd
}
