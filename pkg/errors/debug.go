package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	maxChainDepth = 8

	sqlStateCheckViolation = "23514"
)

// PGDetail is the subset of a Postgres error report worth logging. Both the
// pgx driver used by gorm and lib/pq used by goose surface here.
type PGDetail struct {
	SQLState   string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

// Diagnostics is the log-only view of an error: its unwrap chain and any
// Postgres report found along it. Nothing here reaches API clients.
type Diagnostics struct {
	Chain []string
	PG    *PGDetail
}

// Diagnose walks err's unwrap chain. The walk stops after maxChainDepth links.
func Diagnose(err error) Diagnostics {
	var d Diagnostics
	for e, depth := err, 0; e != nil && depth < maxChainDepth; e, depth = stdErrors.Unwrap(e), depth+1 {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.PG = postgresDetail(err)
	return d
}

func postgresDetail(err error) *PGDetail {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if stdErrors.As(err, &pgErr) {
		return &PGDetail{
			SQLState:   pgErr.Code,
			Constraint: pgErr.ConstraintName,
			Table:      pgErr.TableName,
			Column:     pgErr.ColumnName,
			Detail:     pgErr.Detail,
			Message:    pgErr.Message,
		}
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return &PGDetail{
			SQLState:   string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}

// Fields renders the diagnostics as log fields. Empty Postgres values are
// left out.
func (d Diagnostics) Fields() map[string]any {
	fields := map[string]any{}
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	if d.PG == nil {
		return fields
	}
	put := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}
	put("pg_code", d.PG.SQLState)
	put("pg_constraint", d.PG.Constraint)
	put("pg_table", d.PG.Table)
	put("pg_column", d.PG.Column)
	put("pg_detail", d.PG.Detail)
	put("pg_message", d.PG.Message)
	return fields
}

// SQLState returns the Postgres SQLSTATE carried by err, or "".
func SQLState(err error) string {
	if pg := postgresDetail(err); pg != nil {
		return pg.SQLState
	}
	return ""
}

// IsCheckViolation reports whether a Postgres CHECK constraint rejected the
// write, e.g. stock going negative.
func IsCheckViolation(err error) bool {
	return SQLState(err) == sqlStateCheckViolation
}
