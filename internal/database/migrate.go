package database

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrations embed.FS

// gooseLogger routes goose output through logrus.
type gooseLogger struct{ log logrus.FieldLogger }

func (l gooseLogger) Fatalf(format string, v ...interface{}) { l.log.Fatalf(format, v...) }
func (l gooseLogger) Printf(format string, v ...interface{}) { l.log.Debugf(format, v...) }

// Migrate applies the embedded migrations.  driver is "mysql" or "sqlite".
func Migrate(db *sql.DB, driver string, log logrus.FieldLogger) error {
	dialect := "mysql"
	if driver == "sqlite" {
		dialect = "sqlite3"
	}
	goose.SetLogger(gooseLogger{log: log})
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
