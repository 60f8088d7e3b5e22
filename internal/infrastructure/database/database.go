package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sitegen/internal/config"
	"sitegen/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNotConfigured = errors.New("database is not configured")

// Pools holds the two connection pools. Reader serves user-context reads
// and is the same pool as Writer when no read-only DSN is configured.
type Pools struct {
	Writer *gorm.DB
	Reader *gorm.DB
}

// Open connects the writer pool (and the reader pool when configured) and
// migrates the schema on the writer.
func Open(cfg *config.DatabaseConfig, debug bool, log logrus.FieldLogger) (*Pools, error) {
	dsn := PrimaryDSN(cfg)
	if dsn == "" {
		return nil, ErrNotConfigured
	}

	writer, err := open(cfg, dsn, debug)
	if err != nil {
		return nil, fmt.Errorf("open primary database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := Migrate(writer); err != nil {
			return nil, err
		}
	}

	pools := &Pools{Writer: writer, Reader: writer}
	if cfg.ReadOnlyDSN != "" {
		reader, err := open(cfg, cfg.ReadOnlyDSN, debug)
		if err != nil {
			return nil, fmt.Errorf("open read-only database: %w", err)
		}
		pools.Reader = reader
	}

	log.WithFields(logrus.Fields{
		"driver":   cfg.Driver,
		"readonly": cfg.ReadOnlyDSN != "",
	}).Info("database pools ready")
	return pools, nil
}

// PrimaryDSN returns the configured DSN, or one assembled from host/port
// fields for the configured driver.
func PrimaryDSN(cfg *config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	if cfg.Host == "" {
		return ""
	}
	if cfg.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
}

func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "", "mysql":
		return mysql.Open(dsn), nil
	case "postgres", "postgresql":
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func open(cfg *config.DatabaseConfig, dsn string, debug bool) (*gorm.DB, error) {
	dialector, err := Dialector(cfg.Driver, dsn)
	if err != nil {
		return nil, err
	}

	level := logger.Warn
	if debug {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Account{},
		&model.Website{},
		&model.CreditTransaction{},
		&model.PendingSettlement{},
		&model.OutboxMessage{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate schema: %w", err)
	}
	return nil
}

// Ping checks the writer pool.
func (p *Pools) Ping(ctx context.Context) error {
	sqlDB, err := p.Writer.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases both pools.
func (p *Pools) Close() {
	if p == nil {
		return
	}
	closeDB(p.Writer)
	if p.Reader != p.Writer {
		closeDB(p.Reader)
	}
}

func closeDB(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
