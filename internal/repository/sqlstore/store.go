// Package sqlstore implements the repository contracts on MySQL and SQLite
// through database/sql.  Both dialects share the same statements: ?
// placeholders, LOWER() for case folding and LIKE ... ESCAPE '!'.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"github.com/iliyamo/task-management-api/internal/repository"
)

// New returns the stores backed by db.
func New(db *sql.DB) *repository.Store {
	return &repository.Store{
		Users:      &UserRepo{DB: db},
		Tokens:     &TokenRepo{DB: db},
		Tasks:      &TaskRepo{DB: db},
		Categories: &CategoryRepo{DB: db},
		Lifecycle:  lifecycle{db: db},
	}
}

type lifecycle struct{ db *sql.DB }

func (l lifecycle) Close(context.Context) error { return l.db.Close() }

func (l lifecycle) Reset(ctx context.Context) error {
	for _, table := range []string{"tasks", "categories", "refresh_tokens", "users"} {
		if _, err := l.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// isDuplicate reports whether err is a unique key violation on either driver.
func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// dbTime normalizes a timestamp to UTC seconds so both drivers store and
// compare the same value.
func dbTime(t time.Time) time.Time { return t.UTC().Truncate(time.Second) }

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: dbTime(*t), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// encodeJSON stores embedded collections as JSON text.  nil slices are
// written as [] so decoding always yields a non-nil slice.
func encodeJSON(v any) (string, error) {
	b, err := sonic.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return "[]", nil
	}
	return string(b), nil
}

func decodeJSON(s string, v any) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return sonic.UnmarshalString(s, v)
}

// where accumulates AND-ed conditions and their arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
