package worker

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chrismeller/mj/internal/app"
	"github.com/chrismeller/mj/internal/kafka"
	"github.com/chrismeller/mj/internal/metrics"
	"github.com/chrismeller/mj/internal/repository"
	"github.com/chrismeller/mj/internal/service/clients"
	"github.com/chrismeller/mj/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var projectorCmd = &cobra.Command{
	Use:   "projector",
	Short: "Project clients.created events from Kafka into ClickHouse",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, log, err := app.Bootstrap(cfgPath)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		metrics.MustRegister(prometheus.DefaultRegisterer)

		// 2) ClickHouse
		chDB, err := app.OpenClickHouse(cfg)
		if err != nil {
			return err
		}
		defer chDB.Close()

		// 3) kafka consumer
		groupID := cfg.Kafka.GroupID
		if groupID == "" {
			groupID = "mj-projector"
		}
		consumer := kafka.NewConsumerFromConfig(kafka.Config{
			Brokers:        cfg.Kafka.Brokers,
			Topic:          clients.CreatedTopic,
			GroupID:        groupID,
			MinBytes:       cfg.Kafka.MinBytes,
			MaxBytes:       cfg.Kafka.MaxBytes,
			CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
		})
		defer consumer.Close()

		p := worker.NewClientProjector(consumer, repository.NewClientEventsRepository(chDB), log.Named("projector"))

		// tune knobs
		if cfg.Projector.BatchSize > 0 {
			p.BatchSize = cfg.Projector.BatchSize
		}
		if cfg.Projector.BatchWait > 0 {
			p.BatchWait = cfg.Projector.BatchWait
		}

		// 4) graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("projector started",
			zap.String("topic", clients.CreatedTopic),
			zap.String("group", groupID),
			zap.Int("batch_size", p.BatchSize),
			zap.Duration("batch_wait", p.BatchWait))

		return p.Run(ctx)
	},
}
