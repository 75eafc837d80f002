package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	config "github.com/xilidan/roboscribe/config/scribe"
	"github.com/xilidan/roboscribe/services/scribe/entity"
)

var ErrNotFound = errors.New("transcript not found")

type Storage interface {
	SaveTranscript(ctx context.Context, req *entity.SaveTranscriptRequest) (int64, error)
	SearchTranscripts(ctx context.Context, term string) ([]entity.TranscriptSummary, error)
	GetTranscript(ctx context.Context, id int64) (*entity.Transcript, error)
	ListParticipants(ctx context.Context, id int64) ([]string, error)
	Close() error
}

type storage struct {
	db  *gorm.DB
	log *slog.Logger
	now func() time.Time
}

// New opens the configured database and applies pending migrations.
func New(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (Storage, error) {
	gormCfg := &gorm.Config{
		Logger: newGormLogger(log, 200*time.Millisecond),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqliteDSN(cfg.Path)), gormCfg)
	case "postgres":
		var conn *sql.DB
		conn, err = sql.Open("postgres", cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres connection: %w", err)
		}
		db, err = gorm.Open(postgres.New(postgres.Config{Conn: conn}), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrateUp(sqlDB, cfg.Driver); err != nil {
		sqlDB.Close()
		return nil, err
	}

	if cfg.Driver == "sqlite" {
		// One connection serializes writers; busy_timeout covers other processes.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	log.Info("database ready", slog.String("driver", cfg.Driver))

	return &storage{
		db:  db,
		log: log,
		now: time.Now,
	}, nil
}

func sqliteDSN(path string) string {
	return fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
}

func (s *storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
