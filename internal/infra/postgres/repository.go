// Package postgres persists bets, answers, and standings with bun, and runs
// the tally aggregation straight through pgx.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"betpool-service/internal/app"
	"betpool-service/internal/domain"
)

// Repository implements the engine's persistence collaborators on Postgres.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// app.BetRepository

func (r *Repository) BetByID(ctx context.Context, betID int64) (domain.Bet, error) {
	var row betRow
	err := r.db.NewSelect().Model(&row).Where("b.id = ?", betID).Scan(ctx)
	if err == sql.ErrNoRows {
		return domain.Bet{}, domain.ErrBetNotFound
	}
	if err != nil {
		return domain.Bet{}, fmt.Errorf("select bet: %w", err)
	}
	return row.toDomain(), nil
}

// app.QuestionRepository

func (r *Repository) QuestionsByBet(ctx context.Context, betID int64) ([]domain.Question, error) {
	var rows []questionRow
	err := r.db.NewSelect().Model(&rows).
		Where("q.bet_id = ?", betID).
		Order("q.lineup ASC", "q.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select questions: %w", err)
	}
	out := make([]domain.Question, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *Repository) MainQuestionIDs(ctx context.Context, betID int64) ([]int64, error) {
	var ids []int64
	err := r.db.NewSelect().Model((*questionRow)(nil)).
		Column("q.id").
		Where("q.bet_id = ? AND q.is_main", betID).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("select main questions: %w", err)
	}
	return ids, nil
}

func (r *Repository) SolutionsByQuestion(ctx context.Context, questionIDs []int64) (map[int64][]domain.Solution, error) {
	out := make(map[int64][]domain.Solution)
	if len(questionIDs) == 0 {
		return out, nil
	}
	var rows []solutionRow
	err := r.db.NewSelect().Model(&rows).
		Where("s.question_id IN (?)", bun.In(questionIDs)).
		Order("s.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select solutions: %w", err)
	}
	for _, row := range rows {
		out[row.QuestionID] = append(out[row.QuestionID], row.toDomain())
	}
	return out, nil
}

func (r *Repository) SaveSolution(ctx context.Context, q domain.Question, sol domain.Solution) error {
	row := solutionRow{
		QuestionID: q.ID,
		ListItemID: sol.ListItemID,
		Label:      sol.Label,
		DrawTag:    sol.DrawTag,
	}
	if _, err := r.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert solution: %w", err)
	}
	return nil
}

// app.AnswerRepository

func (r *Repository) PostedByBet(ctx context.Context, betID int64) ([]domain.Answer, error) {
	var rows []answerRow
	err := r.db.NewSelect().Model(&rows).
		Join("JOIN questions AS q ON q.id = a.question_id").
		Where("q.bet_id = ? AND a.posted", betID).
		Order("a.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select posted answers: %w", err)
	}
	out := make([]domain.Answer, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *Repository) MarginCandidates(ctx context.Context, betID int64, questionIDs []int64) ([]domain.Answer, error) {
	if len(questionIDs) == 0 {
		return nil, nil
	}
	var rows []answerRow
	err := r.db.NewSelect().Model(&rows).
		Join("JOIN questions AS q ON q.id = a.question_id").
		Where("q.bet_id = ? AND a.question_id IN (?)", betID, bun.In(questionIDs)).
		Order("a.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select margin candidates: %w", err)
	}
	out := make([]domain.Answer, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *Repository) ResetScores(ctx context.Context, betID int64, marginQuestionIDs []int64) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		betQuestions := tx.NewSelect().Model((*questionRow)(nil)).
			Column("q.id").
			Where("q.bet_id = ?", betID)

		_, err := tx.NewUpdate().Model((*answerRow)(nil)).
			Set("correct = FALSE").
			Set("score = 0").
			Where("a.posted AND a.question_id IN (?)", betQuestions).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("reset posted answers: %w", err)
		}

		if len(marginQuestionIDs) > 0 {
			_, err = tx.NewUpdate().Model((*answerRow)(nil)).
				Set("correct = FALSE").
				Set("score = 0").
				Where("a.question_id IN (?)", bun.In(marginQuestionIDs)).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("reset margin candidates: %w", err)
			}
		}
		return nil
	})
}

func (r *Repository) ApplyScores(ctx context.Context, updates []domain.ScoreUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, u := range updates {
			_, err := tx.NewUpdate().Model((*answerRow)(nil)).
				Set("correct = ?", u.Correct).
				Set("score = ?", u.Score).
				Where("a.id = ?", u.AnswerID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("update answer %d: %w", u.AnswerID, err)
			}
		}
		return nil
	})
}

// app.StandingRepository

func (r *Repository) MaxSequence(ctx context.Context, betID int64) (int64, error) {
	var max int64
	err := r.db.NewSelect().Model((*standingRow)(nil)).
		ColumnExpr("COALESCE(MAX(st.sequence), 0)").
		Where("st.bet_id = ?", betID).
		Scan(ctx, &max)
	if err != nil {
		return 0, fmt.Errorf("select max sequence: %w", err)
	}
	return max, nil
}

func (r *Repository) RowsByBetSequence(ctx context.Context, betID, sequence int64) ([]domain.Standing, error) {
	var rows []standingRow
	err := r.db.NewSelect().Model(&rows).
		Where("st.bet_id = ? AND st.sequence = ?", betID, sequence).
		Order("st.seed ASC", "st.user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select bet sequence: %w", err)
	}
	return standingsToDomain(rows), nil
}

func (r *Repository) InsertStandings(ctx context.Context, rows []domain.Standing) error {
	if len(rows) == 0 {
		return nil
	}
	models := make([]standingRow, 0, len(rows))
	for _, row := range rows {
		m := standingFromDomain(row)
		m.ID = 0
		models = append(models, m)
	}
	if _, err := r.db.NewInsert().Model(&models).Exec(ctx); err != nil {
		return fmt.Errorf("insert standings: %w", err)
	}
	return nil
}

func (r *Repository) DeleteOlder(ctx context.Context, betID, keep int64) error {
	_, err := r.db.NewDelete().Model((*standingRow)(nil)).
		Where("st.bet_id = ? AND st.sequence < ?", betID, keep).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete old sequences: %w", err)
	}
	return nil
}

// app.StandingsReader

func (r *Repository) LatestSequence(ctx context.Context, scope app.Scope) (int64, error) {
	var max int64
	err := r.db.NewSelect().Model((*standingRow)(nil)).
		ColumnExpr("COALESCE(MAX(st.sequence), 0)").
		Where("st.season_id = ? AND st.league_id = ? AND st.dataset = ?",
			scope.SeasonID, scope.LeagueID, string(scope.Dataset)).
		Scan(ctx, &max)
	if err != nil {
		return 0, fmt.Errorf("select latest sequence: %w", err)
	}
	return max, nil
}

func (r *Repository) RowsAtSequence(ctx context.Context, scope app.Scope, sequence int64) ([]domain.Standing, error) {
	var rows []standingRow
	err := r.db.NewSelect().Model(&rows).
		Where("st.season_id = ? AND st.league_id = ? AND st.dataset = ? AND st.sequence = ?",
			scope.SeasonID, scope.LeagueID, string(scope.Dataset), sequence).
		Order("st.seed ASC", "st.score DESC", "st.points DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select rows at sequence: %w", err)
	}
	return standingsToDomain(rows), nil
}

func (r *Repository) UserRows(ctx context.Context, scope app.Scope, userID int64) ([]domain.Standing, error) {
	var rows []standingRow
	err := r.db.NewSelect().Model(&rows).
		Where("st.season_id = ? AND st.league_id = ? AND st.dataset = ? AND st.user_id = ?",
			scope.SeasonID, scope.LeagueID, string(scope.Dataset), userID).
		Order("st.sequence ASC", "st.bet_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select user rows: %w", err)
	}
	return standingsToDomain(rows), nil
}

func standingsToDomain(rows []standingRow) []domain.Standing {
	out := make([]domain.Standing, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}
