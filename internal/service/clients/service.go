package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/chrismeller/mj/internal/metrics"
	"github.com/chrismeller/mj/internal/model"
	"github.com/chrismeller/mj/internal/repository"
	"github.com/chrismeller/mj/internal/util"
	"github.com/chrismeller/mj/internal/validation"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const CreatedTopic = "clients.created"

// Cipher encrypts phone numbers at rest.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Service validates, stores and reassembles client records.
type Service struct {
	db        *sqlx.DB
	clients   repository.ClientsRepository
	outbox    repository.OutboxRepository
	validator *validation.Validator
	cipher    Cipher
	log       *zap.Logger
}

// New constructs the client service.
func New(
	db *sqlx.DB,
	clientsRepo repository.ClientsRepository,
	outboxRepo repository.OutboxRepository,
	validator *validation.Validator,
	cipher Cipher,
	log *zap.Logger,
) *Service {
	return &Service{
		db:        db,
		clients:   clientsRepo,
		outbox:    outboxRepo,
		validator: validator,
		cipher:    cipher,
		log:       log,
	}
}

// Create validates fields and, when every rule passes, stores the client with its
// attributes and a clients.created outbox event in one transaction. fields is mutated
// by validation (phone is normalized).
//
// The email uniqueness check runs outside the transaction, so two concurrent creates
// with the same email can both succeed.
func (s *Service) Create(ctx context.Context, fields model.Fields) (*model.Client, error) {
	msgs := s.validator.Validate(fields)

	n, err := s.clients.CountByEmail(ctx, fields.Email())
	if err != nil {
		return nil, s.saveFailed("count by email", err)
	}
	if n > 0 {
		msgs = append(msgs, validation.MsgDuplicateEmail)
	}

	if len(msgs) > 0 {
		metrics.ClientsTotal.WithLabelValues("rejected").Inc()
		return nil, &ValidationError{Messages: msgs}
	}

	encrypted, err := s.cipher.Encrypt(fields.Phone())
	if err != nil {
		return nil, s.saveFailed("encrypt phone", err)
	}

	id, err := s.persist(ctx, fields.Email(), encrypted, fields.Attributes())
	if err != nil {
		return nil, s.saveFailed("persist client", err)
	}

	client, err := s.Get(ctx, id)
	if err != nil {
		return nil, s.saveFailed("reload client", err)
	}
	if client == nil {
		return nil, s.saveFailed("reload client", fmt.Errorf("client %d vanished after insert", id))
	}

	metrics.ClientsTotal.WithLabelValues("created").Inc()
	s.log.Info("client created", zap.Int64("client_id", id), zap.Int("attributes", len(client.Attributes)))

	return client, nil
}

func (s *Service) persist(ctx context.Context, email, encryptedPhone string, attrs map[string]string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := s.clients.Insert(ctx, tx, email, encryptedPhone, attrs)
	if err != nil {
		return 0, err
	}

	payload, err := json.Marshal(model.ClientEvent{
		ID:             util.NewULID(),
		ClientID:       id,
		Email:          email,
		AttributeCount: len(attrs),
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("marshal client event: %w", err)
	}

	if err := s.outbox.Insert(ctx, tx, "client", strconv.FormatInt(id, 10), CreatedTopic, payload); err != nil {
		return 0, fmt.Errorf("insert outbox: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// Get returns the client with its phone masked, or nil when no such client exists.
func (s *Service) Get(ctx context.Context, id int64) (*model.Client, error) {
	row, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return nil, s.fetchFailed(id, "get by id", err)
	}
	if row == nil {
		return nil, nil
	}

	client, err := s.assemble(*row)
	if err != nil {
		return nil, s.fetchFailed(id, "decrypt phone", err)
	}

	attrs, err := s.clients.ListAttributes(ctx, id)
	if err != nil {
		return nil, s.fetchFailed(id, "list attributes", err)
	}
	for _, a := range attrs {
		client.Attributes[a.Key] = a.Value
	}

	return &client, nil
}

// Search lists clients, optionally filtered by exact email, in the store's natural order.
// Attributes for the whole result set are fetched with a single query.
func (s *Service) Search(ctx context.Context, email *string) ([]model.Client, error) {
	rows, err := s.clients.Search(ctx, email)
	if err != nil {
		return nil, s.searchFailed("search", err)
	}

	out := make([]model.Client, 0, len(rows))
	byID := make(map[int64]int, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		client, err := s.assemble(row)
		if err != nil {
			return nil, s.searchFailed("decrypt phone", err, zap.Int64("client_id", row.ID))
		}
		byID[row.ID] = len(out)
		ids = append(ids, row.ID)
		out = append(out, client)
	}

	attrs, err := s.clients.ListAttributes(ctx, ids...)
	if err != nil {
		return nil, s.searchFailed("list attributes", err)
	}
	for _, a := range attrs {
		i, ok := byID[a.ClientID]
		if !ok {
			continue
		}
		out[i].Attributes[a.Key] = a.Value
	}

	return out, nil
}

// assemble decrypts and masks the stored phone.
func (s *Service) assemble(row model.ClientRow) (model.Client, error) {
	phone, err := s.cipher.Decrypt(row.Phone)
	if err != nil {
		return model.Client{}, err
	}

	return model.Client{
		ID:         row.ID,
		Email:      row.Email,
		Phone:      util.MaskPhone(phone),
		Attributes: make(map[string]string),
	}, nil
}

func (s *Service) saveFailed(stage string, err error) error {
	metrics.ClientsTotal.WithLabelValues("failed").Inc()
	s.log.Error("unable to save new client", zap.String("stage", stage), zap.Error(err))
	return ErrSaveFailed
}

func (s *Service) fetchFailed(id int64, stage string, err error) error {
	s.log.Error("unable to fetch client", zap.Int64("client_id", id), zap.String("stage", stage), zap.Error(err))
	return ErrFetchFailed
}

func (s *Service) searchFailed(stage string, err error, fields ...zap.Field) error {
	fields = append(fields, zap.String("stage", stage), zap.Error(err))
	s.log.Error("unable to search for clients", fields...)
	return ErrSearchFailed
}
