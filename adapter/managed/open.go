package managed

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arloliu/switchyard/adapter"
	"github.com/arloliu/switchyard/types"
)

// Dialector returns the GORM dialector for dsn.
//
// DSNs starting with "sqlite:" or "file:" open a SQLite database (the
// "sqlite:" prefix is removed); everything else is treated as PostgreSQL.
func Dialector(dsn string) gorm.Dialector {
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite:"))
	case strings.HasPrefix(dsn, "file:"):
		return sqlite.Open(dsn)
	default:
		return postgres.Open(dsn)
	}
}

// Open connects to dsn and returns an Adapter.
//
// Parameters:
//   - ctx: Context for the initial ping
//   - dsn: PostgreSQL URL or keyword DSN, or a "sqlite:"/"file:" path
//   - opts: Optional configuration
//
// Returns:
//   - *Adapter: The connected adapter
//   - error: Connection or ping error
func Open(ctx context.Context, dsn string, opts ...Option) (*Adapter, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%w: empty DSN", types.ErrStoreNotConfigured)
	}

	db, err := gorm.Open(Dialector(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	a, err := New(db, opts...)
	if err != nil {
		return nil, err
	}
	if err := a.Ping(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return a, nil
}

// SecondaryDSN combines the secondary store URL and access key into a DSN.
//
// A key is used as the password of URL-form DSNs that carry none; other
// forms are returned unchanged.
func SecondaryDSN(rawURL, key string) string {
	if key == "" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") || u.User == nil {
		return rawURL
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		return rawURL
	}
	u.User = url.UserPassword(u.User.Username(), key)

	return u.String()
}

// OpenSecondary opens the secondary managed store.
//
// Its signature matches the router's secondary opener.
func OpenSecondary(ctx context.Context, rawURL, key string) (adapter.Adapter, error) {
	return Open(ctx, SecondaryDSN(rawURL, key), WithKind(types.KindSecondaryManaged))
}
