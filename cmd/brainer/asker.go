package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thedartagnan/brainer/internal/asker"
	"github.com/thedartagnan/brainer/internal/bus"
	"github.com/thedartagnan/brainer/internal/logging"
	"github.com/thedartagnan/brainer/internal/role"
)

func askerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asker",
		Short: "Run the asker terminal role",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			shutdown, err := initObservability(cfg, "asker")
			if err != nil {
				return err
			}
			defer shutdown()

			conn, err := bus.Dial(cfg.RabbitMQ.URL, 0)
			if err != nil {
				return fmt.Errorf("dial amqp: %w", err)
			}
			defer conn.Close()

			var a role.Agent = asker.New(conn, bus.NewPublisher(conn), cfg.RabbitMQ.QuestionQueue)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				logging.Op().Info("shutdown signal received")
				cancel()
			}()

			return a.Start(ctx)
		},
	}
	return cmd
}
