package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"betpool-service/internal/domain"
)

// TallySource aggregates per-user totals for a bet. The division by each
// question's average factor lives here, in SQL, so cross-question sums stay
// comparable when questions carry different raw point totals.
type TallySource struct {
	pool *pgxpool.Pool
}

func NewTallySource(pool *pgxpool.Pool) *TallySource {
	return &TallySource{pool: pool}
}

func (t *TallySource) TotalsByBet(ctx context.Context, betID int64) ([]domain.UserTotal, error) {
	rows, err := t.pool.Query(ctx, `
		SELECT a.user_id,
		       COALESCE(SUM(a.score), 0) AS points,
		       COALESCE(SUM(a.score / CASE WHEN q.average > 0 THEN q.average ELSE 1 END), 0) AS score
		FROM answers a
		JOIN questions q ON q.id = a.question_id
		WHERE q.bet_id = $1 AND a.posted
		GROUP BY a.user_id
		ORDER BY a.user_id`, betID)
	if err != nil {
		return nil, fmt.Errorf("tally bet %d: %w", betID, err)
	}
	defer rows.Close()

	var totals []domain.UserTotal
	for rows.Next() {
		var t domain.UserTotal
		if err := rows.Scan(&t.UserID, &t.Points, &t.Score); err != nil {
			return nil, fmt.Errorf("scan tally row: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tally rows: %w", err)
	}
	return totals, nil
}
