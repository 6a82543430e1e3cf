package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/calvdc1/Registrar-bot/internal/models"
)

// PostgresStore keeps the same JSON envelope as FileStore, as a single
// jsonb row. The whole-document contract is unchanged; the database only
// buys durability and remote storage.
type PostgresStore struct {
	db  *sql.DB
	log *zap.Logger

	mu sync.Mutex
}

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func OpenPostgres(cfg Config, log *zap.Logger) (*PostgresStore, error) {
	if log == nil {
		log = zap.NewNop()
	}

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connection established successfully")

	return &PostgresStore{db: db, log: log}, nil
}

func (s *PostgresStore) RunMigrations() error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	// Try different possible migration directory paths
	migrationsDir := "migrations"
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		migrationsDir = "./migrations"
	}
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		migrationsDir = "/app/migrations"
	}

	if err := goose.Up(s.db, migrationsDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	s.log.Info("Database migrations completed successfully")
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Load() (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw []byte
	err := s.db.QueryRow(`SELECT doc FROM attendance_store WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	doc := models.NewDocument()
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) Save(doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(100*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO attendance_store (id, doc)
			VALUES (1, $1)
			ON CONFLICT (id) DO UPDATE
			SET doc = EXCLUDED.doc,
			    updated_at = CURRENT_TIMESTAMP
		`, raw)
		if err == nil {
			return nil
		}
		if !isTransientWriteError(err) {
			return err
		}
		s.log.Warn("document write failed, retrying", zap.Error(err))
		return retry.RetryableError(err)
	})
}

// isTransientWriteError separates errors worth retrying from ones that
// will fail identically on every attempt (bad SQL, missing table,
// cancelled context).
func isTransientWriteError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Connection failures, resource exhaustion and operator
		// intervention clear up on retry, as do deadlocks and
		// serialization aborts.
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			return true
		}
		switch pqErr.Code {
		case "40001", "40P01":
			return true
		}
		return false
	}
	// Driver and network errors without a server error code are assumed
	// transient.
	return true
}
