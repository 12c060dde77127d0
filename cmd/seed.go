package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/chrismeller/mj/internal/app"
	"github.com/chrismeller/mj/internal/model"
	"github.com/chrismeller/mj/internal/service/clients"
	"github.com/chrismeller/mj/internal/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, log, err := app.Bootstrap(cfgPath)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		// 2) connect the record store
		sqlDB, err := app.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		svc, err := app.NewClientService(cfg, sqlDB, log)
		if err != nil {
			return err
		}

		log.Info("seeding demo clients")
		created, err := seedClients(cmd.Context(), svc, log)
		if err != nil {
			return err
		}

		log.Info("seed completed", zap.Int("created", created))
		return nil
	},
}

// demoClients go through the same validation as API submissions. Phones are GB personal numbers.
var demoClients = []model.Fields{
	{"email": "ada@example.com", "phone": "070 1234 0001", "name": "Ada Lovelace", "company": "Analytical Engines"},
	{"email": "alan@example.com", "phone": "070 1234 0002", "name": "Alan Turing", "city": "Manchester"},
	{"email": "grace@example.com", "phone": "070 1234 0003", "name": "Grace Hopper", "rank": "Rear Admiral"},
	{"email": "edsger@example.com", "phone": "070 1234 0004", "name": "Edsger Dijkstra"},
	{"email": "barbara@example.com", "phone": "070 1234 0005", "name": "Barbara Liskov", "city": "Boston", "field": "abstraction"},
}

// seedClients is idempotent: clients rejected only as duplicates are skipped.
func seedClients(ctx context.Context, svc *clients.Service, log *zap.Logger) (int, error) {
	created := 0
	for _, f := range demoClients {
		fields := make(model.Fields, len(f))
		for k, v := range f {
			fields[k] = v
		}

		c, err := svc.Create(ctx, fields)
		var verr *clients.ValidationError
		switch {
		case errors.As(err, &verr) && onlyDuplicate(verr):
			log.Debug("client already seeded", zap.String("email", fields.Email()))
		case err != nil:
			return created, fmt.Errorf("seed %s: %w", fields.Email(), err)
		default:
			created++
			log.Debug("client seeded", zap.Int64("client_id", c.ID), zap.String("email", c.Email))
		}
	}
	return created, nil
}

func onlyDuplicate(verr *clients.ValidationError) bool {
	return len(verr.Messages) == 1 && verr.Messages[0] == validation.MsgDuplicateEmail
}
