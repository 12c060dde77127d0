package worker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/chrismeller/mj/internal/app"
	"github.com/chrismeller/mj/internal/kafka"
	"github.com/chrismeller/mj/internal/metrics"
	"github.com/chrismeller/mj/internal/repository"
	"github.com/chrismeller/mj/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Publish outbox rows to Kafka (use instead of a Debezium outbox connector)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, log, err := app.Bootstrap(cfgPath)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		metrics.MustRegister(prometheus.DefaultRegisterer)

		sqlDB, err := app.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		producer := kafka.NewProducer(cfg.Kafka.Brokers, 0)
		defer producer.Close()

		r := worker.NewOutboxRelay(repository.NewOutboxRepository(sqlDB), producer, log.Named("relay"))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("outbox relay started", zap.Strings("brokers", cfg.Kafka.Brokers), zap.Duration("interval", r.Interval))
		return r.Run(ctx)
	},
}
