package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"betpool-service/internal/worker"
)

// NewWorkerCmd runs the kafka rescore worker until interrupted.
func NewWorkerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume answer-posted events and rescore affected bets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadWithLogger(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topic == "" {
				return fmt.Errorf("kafka brokers and topic not configured")
			}
			groupID := cfg.Kafka.GroupID
			if groupID == "" {
				groupID = "betpool-rescore"
			}

			svc, err := buildServices(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer svc.close()

			reader := worker.NewReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, groupID)
			w := worker.New(reader, svc.scoring, svc.tally, log)
			defer func() { _ = w.Close() }()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-stop
				log.Info("stopping worker")
				cancel()
			}()

			log.Info("worker started",
				zap.Strings("brokers", cfg.Kafka.Brokers),
				zap.String("topic", cfg.Kafka.Topic),
				zap.String("group", groupID),
			)
			return w.Run(ctx)
		},
	}
}
