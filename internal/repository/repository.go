// Package repository provides methods to work with DB
package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"time"

	"github.com/UnendingLoop/ImageVariants/internal/model"
	"github.com/UnendingLoop/ImageVariants/internal/repository/imgpostgres"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
)

type OriginalRepo interface {
	CreateOriginal(ctx context.Context, o *model.Original) error
	GetOriginal(ctx context.Context, id string) (*model.Original, error)
}

type VariantRepo interface {
	SaveVariant(ctx context.Context, v *model.VariantRecord) error
	GetVariant(ctx context.Context, id string) (*model.VariantRecord, error)
	FindVariantByFingerprint(ctx context.Context, originalID, fingerprint string) (*model.VariantRecord, error)
	ListVariants(ctx context.Context, originalID string) ([]model.VariantRecord, error)
	DeleteVariant(ctx context.Context, id string) error
}

type ImageRepo interface {
	OriginalRepo
	VariantRepo
}

func NewPostgresImageRepo(dbconn *dbpg.DB) ImageRepo {
	return imgpostgres.PostgresRepo{DB: dbconn}
}

// ConnectWithRetries opens the pool and pings it; the app can't start without the DB.
func ConnectWithRetries(appConfig *config.Config, retryCount int, idleTime time.Duration) *dbpg.DB {
	dbOptions := dbpg.Options{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 10 * time.Minute,
	}
	dsnLink := appConfig.GetString("POSTGRES_DSN")
	var dbConn *dbpg.DB
	var err error

	for i := range retryCount {
		dbConn, err = dbpg.New(dsnLink, nil, &dbOptions)
		if err == nil {
			err = ping(dbConn.Master)
		}
		if err == nil {
			break
		}
		zlog.Logger.Warn().Err(err).Int("try", i+1).Dur("delay", idleTime).Msg("Failed to connect to PGDB")
		time.Sleep(idleTime)
	}

	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to connect to DB. Exiting the app...")
	}

	return dbConn
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// MigrateWithRetries applies migrations from migrationsPath (originals and variants tables).
func MigrateWithRetries(db *sql.DB, migrationsPath string, retries int, idle time.Duration) {
	for i := range retries {
		err := runMigrate(db, migrationsPath)
		if err == nil {
			return
		}
		switch i {
		case retries - 1:
			zlog.Logger.Fatal().Err(err).Msg("Out of migration retries. Exiting...")
		default:
			zlog.Logger.Warn().Err(err).Int("try", i+1).Dur("delay", idle).Msg("Migration was unsuccessful")
			time.Sleep(idle)
		}
	}
}

func runMigrate(db *sql.DB, migrationsPath string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		return err
	}

	sourceURL := "file://" + absPath
	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	version, dirty, _ := m.Version()
	zlog.Logger.Info().Str("source", sourceURL).Uint("version", version).Bool("dirty", dirty).Msg("Database migrations applied")
	return nil
}
