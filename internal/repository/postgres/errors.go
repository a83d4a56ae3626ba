package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/prn-tf/notebook-server/internal/repository"
)

// PostgreSQL error codes.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInvalidText         = "22P02"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation checks if an error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == codeUniqueViolation
}

// isForeignKeyViolation checks if an error is a foreign key constraint violation.
func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == codeForeignKeyViolation
}

// isNoRows reports a missing row. A malformed UUID can never match a row,
// so it is treated the same way.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || pgErrorCode(err) == codeInvalidText
}

// validID reports whether id can address a UUID primary key.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}

// listQuery accumulates WHERE conditions and positional arguments for
// owned-resource listings.
type listQuery struct {
	conds []string
	args  []any
}

func (q *listQuery) where(cond string, arg any) {
	q.args = append(q.args, arg)
	q.conds = append(q.conds, fmt.Sprintf(cond, len(q.args)))
}

// scope adds the owner restriction.
func (q *listQuery) scope(s repository.OwnerScope) {
	switch {
	case s.All:
	case s.IncludeUnowned:
		q.where("(owner_id = $%d OR owner_id IS NULL)", s.OwnerID)
	default:
		q.where("owner_id = $%d", s.OwnerID)
	}
}

// build renders the full statement. nameColumn is the column used for
// OrderByName.
func (q *listQuery) build(base, nameColumn string, opts repository.ResourceListOptions) (string, []any) {
	var sb strings.Builder
	sb.WriteString(base)
	if len(q.conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(q.conds, " AND "))
	}

	column := "updated_at"
	switch opts.OrderBy {
	case repository.OrderByCreated:
		column = "created_at"
	case repository.OrderByName:
		column = nameColumn
	}
	dir := " ASC"
	if opts.Descending {
		dir = " DESC"
	}
	sb.WriteString(" ORDER BY " + column + dir + ", id" + dir)

	args := q.args
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		sb.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}
	return sb.String(), args
}
