//go:build cgo_sqlite

package store

// CGO build: github.com/mattn/go-sqlite3 with the cosine function bound
// through a ConnectHook on a dedicated driver name.
//
//   CGO_ENABLED=1 go build -tags cgo_sqlite ./...

import (
	"database/sql"

	sqlite3 "github.com/mattn/go-sqlite3"
)

const (
	driverName = "sqlite3_rustrag"

	// BuildMode describes the SQLite driver compiled in.
	BuildMode = "cgo"
)

func registerCosine() error {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc(cosineFunc, blobCosineDistance, true)
		},
	})
	return nil
}
