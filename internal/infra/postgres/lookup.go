package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"betpool-service/internal/domain"
)

var lookupTables = map[domain.LookupKind]string{
	domain.LookupSeason: "seasons",
	domain.LookupLeague: "leagues",
	domain.LookupUser:   "users",
}

// Lookup resolves season, league, and user display records from their id/name
// tables. Callers usually wrap it in one of the lookup caches.
type Lookup struct {
	db *bun.DB
}

func NewLookup(db *bun.DB) *Lookup {
	return &Lookup{db: db}
}

func (l *Lookup) Resolve(ctx context.Context, kind domain.LookupKind, ids []int64) (map[int64]domain.LookupRecord, error) {
	out := make(map[int64]domain.LookupRecord, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	table, ok := lookupTables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown lookup kind %q", kind)
	}

	var rows []domain.LookupRecord
	err := l.db.NewSelect().
		TableExpr(table).
		Column("id", "name").
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}
