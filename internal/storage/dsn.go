package storage

import (
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// SQLiteDSN returns a modernc DSN for path with a busy timeout and
// foreign keys enabled.
func SQLiteDSN(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// MySQLDSN builds a go-sql-driver DSN.
func MySQLDSN(host string, port int, user, password, dbName string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	cfg.DBName = dbName
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}
