package sqlite

import (
	"strings"

	"github.com/prn-tf/notebook-server/internal/repository"
)

// listQuery accumulates WHERE conditions and arguments for owned-resource listings.
type listQuery struct {
	conds []string
	args  []any
}

func (q *listQuery) where(cond string, args ...any) {
	q.conds = append(q.conds, cond)
	q.args = append(q.args, args...)
}

// scope adds the owner restriction.
func (q *listQuery) scope(s repository.OwnerScope) {
	switch {
	case s.All:
	case s.IncludeUnowned:
		q.where("(owner_id = ? OR owner_id IS NULL)", s.OwnerID)
	default:
		q.where("owner_id = ?", s.OwnerID)
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
	sb.WriteString(" LIMIT ? OFFSET ?")

	args := append(q.args, limitArg(opts.Limit), opts.Offset)
	return sb.String(), args
}
