package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"

	"asetmon/internal/core"
)

var ErrUserNotFound = errors.New("user not found")

// MySQL server error numbers that mean the store cannot be used at all.
const (
	mysqlTooManyConnections = 1040
	mysqlAccessDeniedDB     = 1044
	mysqlAccessDenied       = 1045
	mysqlUnknownDatabase    = 1049
)

func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	// database/sql does not export its closed-pool error.
	if strings.Contains(err.Error(), "sql: database is closed") {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlTooManyConnections, mysqlAccessDeniedDB, mysqlAccessDenied, mysqlUnknownDatabase:
			return true
		}
	}
	return false
}

// classify wraps connectivity failures with core.ErrStoreUnavailable.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUnavailable(err) {
		return fmt.Errorf("%s: %w: %v", op, core.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
