package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	_ "github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Open connects using the dialect implied by dsn.
//
// postgres:// and postgresql:// use pgx, mysql:// and user:pass@tcp(...) use MySQL,
// anything else is treated as a SQLite path or file: URI.
func Open(dsn string, opts ...Options) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("db: empty dsn")
	}
	var opt Options
	if len(opts) > 0 {
		opt = opts[0]
	}

	gormCfg := &gorm.Config{
		Logger: logger.New(log.StandardLogger(), logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	}

	var (
		conn    *gorm.DB
		errOpen error
	)
	switch kind := dsnKind(dsn); kind {
	case DialectPostgres:
		sqlDB, errSQL := sql.Open("pgx", dsn)
		if errSQL != nil {
			return nil, fmt.Errorf("db: open pgx: %w", errSQL)
		}
		conn, errOpen = gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormCfg)
	case DialectMySQL:
		conn, errOpen = gorm.Open(mysql.Open(mysqlDSN(dsn)), gormCfg)
	default:
		conn, errOpen = gorm.Open(sqlite.Open(sqliteDSN(dsn)), gormCfg)
	}
	if errOpen != nil {
		return nil, fmt.Errorf("db: open: %w", errOpen)
	}

	sqlDB, errDB := conn.DB()
	if errDB != nil {
		return nil, fmt.Errorf("db: pool: %w", errDB)
	}
	if IsSQLite(conn) {
		// One connection serializes writers; SQLite has a single writer lock anyway.
		sqlDB.SetMaxOpenConns(1)
	} else {
		if opt.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(opt.MaxOpenConns)
		}
		if opt.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(opt.MaxIdleConns)
		}
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return conn, nil
}

func dsnKind(dsn string) string {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgres
	case strings.HasPrefix(lower, "host=") && strings.Contains(lower, "dbname="):
		return DialectPostgres
	case strings.HasPrefix(lower, "mysql://"), strings.Contains(lower, "@tcp("):
		return DialectMySQL
	default:
		return DialectSQLite
	}
}

func mysqlDSN(dsn string) string {
	trimmed := dsn
	if strings.HasPrefix(strings.ToLower(trimmed), "mysql://") {
		trimmed = trimmed[len("mysql://"):]
	}
	if !strings.Contains(trimmed, "parseTime=") {
		sep := "?"
		if strings.Contains(trimmed, "?") {
			sep = "&"
		}
		trimmed += sep + "parseTime=true&loc=UTC&charset=utf8mb4"
	}
	return trimmed
}

func sqliteDSN(dsn string) string {
	trimmed := strings.TrimPrefix(dsn, "sqlite://")
	if strings.Contains(trimmed, "_pragma=") {
		return trimmed
	}
	sep := "?"
	if strings.Contains(trimmed, "?") {
		sep = "&"
	}
	return trimmed + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}
