package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"perfdash-backend/internal/model"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a status transition is not allowed from
	// the record's current status.
	ErrConflict = errors.New("status transition not allowed")
	// ErrValidation wraps every field validation failure.
	ErrValidation = errors.New("validation failed")
)

// MachineStore is the machine registry.
type MachineStore interface {
	ListMachines(ctx context.Context) ([]model.Machine, error)
	GetMachine(ctx context.Context, id string) (model.Machine, error)
	CreateMachine(ctx context.Context, fields MachineFields) (model.Machine, error)
	UpdateMachine(ctx context.Context, id string, fields MachineFields) (model.Machine, error)
	DeleteMachine(ctx context.Context, id string) error
}

// AnalysisStore is the AI analysis history.
type AnalysisStore interface {
	ListAnalyses(ctx context.Context) ([]model.Analysis, error)
	GetAnalysis(ctx context.Context, id string) (model.Analysis, error)
	BeginRegeneration(ctx context.Context, id string) (model.Analysis, error)
	CompleteRegeneration(ctx context.Context, id string, score int) (model.Analysis, error)
	AbortRegeneration(ctx context.Context, id string) (model.Analysis, error)
}

// SubscriptionStore holds web push subscriptions.
type SubscriptionStore interface {
	UpsertSubscription(ctx context.Context, sub model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
}

// Store defines the interface for all database operations.
type Store interface {
	MachineStore
	AnalysisStore
	SubscriptionStore
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// Option configures a gormStore.
type Option func(*gormStore)

// WithClock overrides the time source used for creation dates.
func WithClock(now func() time.Time) Option {
	return func(s *gormStore) { s.now = now }
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, opts ...Option) Store {
	s := &gormStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying connection.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
