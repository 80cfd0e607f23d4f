package proxy

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"

	sqladapter "github.com/arloliu/switchyard/adapter/sql"
)

// MySQLDSN builds a go-sql-driver/mysql DSN for t.
func MySQLDSN(t Target) string {
	t = t.Sanitized()

	cfg := mysql.NewConfig()
	cfg.User = t.User
	cfg.Passwd = t.Password
	cfg.Net = "tcp"
	cfg.Addr = t.Address()
	cfg.DBName = t.Database
	cfg.ParseTime = true
	cfg.Timeout = 10 * time.Second

	return cfg.FormatDSN()
}

// MySQLOpener opens and pings a MySQL database.
//
// It is the default Opener for the proxy's pool.
func MySQLOpener(ctx context.Context, dsn string) (sqladapter.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return sqladapter.WrapDB(db), nil
}
