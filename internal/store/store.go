package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agri-identity/agrigate/internal/models"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store is the gorm-backed persistence layer. Every method derives a child
// context bounded by the configured store timeout so a stalled database
// surfaces as an error instead of a hung request.
type Store struct {
	db      *gorm.DB
	timeout time.Duration
}

// Option customises a Store.
type Option func(*Store)

// WithTimeout bounds every storage call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// New opens the database, runs migrations and returns a ready Store.
func New(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if isSingleWriter(driver) {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&models.Service{},
		&models.AuthorizationRequest{},
		&models.Consent{},
		&models.AuditLog{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// withTimeout returns a gorm session bound to a child of ctx.
func (s *Store) withTimeout(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if s.timeout <= 0 {
		ctx, cancel := context.WithCancel(ctx)
		return s.db.WithContext(ctx), cancel
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

// Health checks the database connection
func (s *Store) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return sqlDB.PingContext(ctx)
}

// DB returns the underlying GORM database connection
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the underlying connection pool. The context is accepted for
// symmetry with the other shutdown jobs; database/sql closes synchronously.
func (s *Store) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- sqlDB.Close() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// notFound normalises gorm's not-found error.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}
