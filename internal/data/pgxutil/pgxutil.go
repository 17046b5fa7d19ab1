// Package pgxutil exposes the pgx v5 connection underneath a database/sql
// pool, so repositories can use pgx query helpers while the rest of the
// service shares one *sql.DB.
package pgxutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// WithPgxConn checks a connection out of the pool, unwraps it to the raw
// *pgx.Conn via the stdlib bridge, and runs fn with it. The connection goes
// back to the pool when fn returns.
func WithPgxConn(ctx context.Context, db *sql.DB, fn func(*pgx.Conn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("checkout conn: %w", err)
	}
	defer func() {
		// Close returns the connection to the pool; a failure here means the
		// pool already discarded it.
		_ = conn.Close()
	}()

	return conn.Raw(func(driverConn any) error {
		bridged, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return errors.New("pool is not backed by the pgx stdlib driver")
		}
		return fn(bridged.Conn())
	})
}
