package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thedartagnan/brainer/internal/audit"
	"github.com/thedartagnan/brainer/internal/bus"
	"github.com/thedartagnan/brainer/internal/logging"
	"github.com/thedartagnan/brainer/internal/memory"
	"github.com/thedartagnan/brainer/internal/store"
)

// memoryCmd wires the memory coordinator role: a MongoDB-backed store,
// two bus ingress loops (asker questions, brainer answers), one sender
// connection, and the Coordinator dispatch loop between them. Each of
// the three roles gets its own AMQP connection, since one is used for
// publishing while the other two each run their own long-lived consume
// loop.
func memoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Run the memory coordinator role",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			shutdown, err := initObservability(cfg, "memory")
			if err != nil {
				return err
			}
			defer shutdown()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			st, err := store.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection, store.Credentials{
				Username:   cfg.Mongo.Username,
				Password:   cfg.Mongo.Password,
				AuthSource: cfg.Mongo.AuthSource,
			})
			if err != nil {
				return fmt.Errorf("connect store: %w", err)
			}
			defer st.Close(context.Background())

			var auditLogger *audit.Logger
			if cfg.Audit.Enabled {
				auditLogger, err = audit.NewLogger(ctx, cfg.Audit.DSN, cfg.Audit.Table)
				if err != nil {
					logging.Op().Warn("audit logger unavailable, continuing without it", "error", err)
					auditLogger = nil
				} else {
					defer auditLogger.Close()
				}
			}

			senderConn, err := bus.Dial(cfg.RabbitMQ.URL, 0)
			if err != nil {
				return fmt.Errorf("dial amqp (sender): %w", err)
			}
			defer senderConn.Close()
			publisher := bus.NewPublisher(senderConn)

			mailbox := memory.NewMailbox(cfg.Daemon.MailboxSize)
			coordinator := memory.NewCoordinator(mailbox, st, publisher, auditLogger, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.QuestionKey)
			coordinator.Start()
			defer coordinator.Stop()

			askerConn, err := bus.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Heartbeat)
			if err != nil {
				return fmt.Errorf("dial amqp (asker ingress): %w", err)
			}
			defer askerConn.Close()
			askerIngress, err := memory.NewAskerIngress(askerConn, cfg.RabbitMQ.QuestionQueue, cfg.RabbitMQ.PrefetchCount, mailbox)
			if err != nil {
				return err
			}
			if err := askerIngress.Start(ctx); err != nil {
				return err
			}
			defer askerIngress.Stop()

			brainerConn, err := bus.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Heartbeat)
			if err != nil {
				return fmt.Errorf("dial amqp (brainer ingress): %w", err)
			}
			defer brainerConn.Close()
			brainerIngress, err := memory.NewBrainerIngress(brainerConn, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.AnswerKey, mailbox)
			if err != nil {
				return err
			}
			if err := brainerIngress.Start(ctx); err != nil {
				return err
			}
			defer brainerIngress.Stop()

			logging.Op().Info("memory coordinator started", "question_queue", cfg.RabbitMQ.QuestionQueue)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			logging.Op().Info("shutdown signal received")
			cancel()

			return nil
		},
	}
	return cmd
}
