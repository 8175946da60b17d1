//go:build !cgo_sqlite

package store

// Default build: pure Go SQLite from modernc.org/sqlite. The cosine
// function is registered globally and is visible on every new connection.
//
//   go build ./...

import (
	"database/sql/driver"
	"fmt"

	"modernc.org/sqlite"
)

const (
	driverName = "sqlite"

	// BuildMode describes the SQLite driver compiled in.
	BuildMode = "modernc"
)

func registerCosine() error {
	return sqlite.RegisterDeterministicScalarFunction(cosineFunc, 2,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			if args[0] == nil || args[1] == nil {
				return nil, nil
			}
			a, ok := args[0].([]byte)
			if !ok {
				return nil, fmt.Errorf("%s: first argument must be a blob", cosineFunc)
			}
			b, ok := args[1].([]byte)
			if !ok {
				return nil, fmt.Errorf("%s: second argument must be a blob", cosineFunc)
			}
			return blobCosineDistance(a, b)
		})
}
