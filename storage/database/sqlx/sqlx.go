// Package sqlxrepos implements the domain repositories on PostgreSQL
// via sqlx.
package sqlxrepos

import (
	"database/sql"
	"database/sql/driver"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/Digitalguyco/convade-backend/core"
)

// stringArray adapts a string slice for `= ANY($n)` clauses.
func stringArray(ss []string) driver.Valuer { return pq.Array(ss) }

// nullString maps empty strings to NULL; used for optional uuid FK columns.
func nullString(s string) null.String { return null.NewString(s, s != "") }

// nullTime maps the zero time to NULL.
func nullTime(t time.Time) null.Time { return null.NewTime(t.UTC(), !t.IsZero()) }

func fromNullTime(t null.Time) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

func isNoRows(err error) bool { return err == sql.ErrNoRows }

// orderBy renders an ORDER BY clause, falling back to the default when no
// ordering was requested.
func orderBy(ordering []core.DBOrdering, fallback string) string {
	if len(ordering) == 0 {
		return " ORDER BY " + fallback
	}
	terms := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		terms = append(terms, ord.String())
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}
