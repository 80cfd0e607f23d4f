// Package sql provides database/sql handles for the switchyard query proxy.
//
// # Interfaces
//
//   - [DB]: Wraps *sql.DB for database connections
//   - [Opener]: Opens a DB for a DSN
//
// # Usage with the proxy server
//
//	import (
//	    sqladapter "github.com/arloliu/switchyard/adapter/sql"
//	    "github.com/arloliu/switchyard/proxy"
//	)
//
//	pool := sqladapter.NewPool(proxy.MySQLOpener)
//	defer pool.Close()
//
//	db, _ := pool.Get(ctx, dsn)
//	out, err := sqladapter.Run(ctx, db, "SELECT * FROM customers WHERE id = ?", id)
//
// Run dispatches to QueryContext for statements that return rows (SELECT,
// SHOW, WITH, ...) and to ExecContext otherwise.
package sql
