package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"betpool-service/internal/domain"
)

type betRow struct {
	bun.BaseModel `bun:"table:bets,alias:b"`

	ID       int64  `bun:"id,pk"`
	SeasonID int64  `bun:"season_id"`
	LeagueID int64  `bun:"league_id"`
	Dataset  string `bun:"dataset"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID        int64   `bun:"id,pk"`
	BetID     int64   `bun:"bet_id"`
	GroupCode string  `bun:"groupcode"`
	Points    float64 `bun:"points"`
	Lineup    int     `bun:"lineup"`
	Type      string  `bun:"result_type"`
	Margin    float64 `bun:"margin"`
	Step      float64 `bun:"step"`
	Average   float64 `bun:"average"`
	Main      bool    `bun:"is_main"`
}

type solutionRow struct {
	bun.BaseModel `bun:"table:solutions,alias:s"`

	ID         int64  `bun:"id,pk,autoincrement"`
	QuestionID int64  `bun:"question_id"`
	ListItemID int64  `bun:"list_item_id"`
	Label      string `bun:"label"`
	DrawTag    string `bun:"draw_tag"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:answers,alias:a"`

	ID         int64   `bun:"id,pk,autoincrement"`
	UserID     int64   `bun:"user_id"`
	QuestionID int64   `bun:"question_id"`
	ListItemID int64   `bun:"list_item_id"`
	Label      string  `bun:"label"`
	DrawTag    string  `bun:"draw_tag"`
	Posted     bool    `bun:"posted"`
	Generated  bool    `bun:"generated"`
	Points     float64 `bun:"points"`
	Correct    bool    `bun:"correct"`
	Score      float64 `bun:"score"`
}

type standingRow struct {
	bun.BaseModel `bun:"table:standings,alias:st"`

	ID         int64     `bun:"id,pk,autoincrement"`
	SeasonID   int64     `bun:"season_id"`
	LeagueID   int64     `bun:"league_id"`
	UserID     int64     `bun:"user_id"`
	BetID      int64     `bun:"bet_id"`
	Points     float64   `bun:"points"`
	Score      float64   `bun:"score"`
	Sequence   int64     `bun:"sequence"`
	Seed       int       `bun:"seed"`
	Dataset    string    `bun:"dataset"`
	InsertedAt time.Time `bun:"inserted_at"`
	Changed    bool      `bun:"changed"`
}

func (r betRow) toDomain() domain.Bet {
	return domain.Bet{
		ID:       r.ID,
		SeasonID: r.SeasonID,
		LeagueID: r.LeagueID,
		Dataset:  domain.ParseDataset(r.Dataset),
	}
}

func (r questionRow) toDomain() domain.Question {
	return domain.Question{
		ID:        r.ID,
		BetID:     r.BetID,
		GroupCode: r.GroupCode,
		Points:    r.Points,
		Lineup:    r.Lineup,
		Type:      domain.ResultType(r.Type),
		Margin:    r.Margin,
		Step:      r.Step,
		Average:   r.Average,
	}
}

func (r solutionRow) toDomain() domain.Solution {
	return domain.Solution{
		QuestionID: r.QuestionID,
		ListItemID: r.ListItemID,
		Label:      r.Label,
		DrawTag:    r.DrawTag,
	}
}

func (r answerRow) toDomain() domain.Answer {
	return domain.Answer{
		ID:         r.ID,
		UserID:     r.UserID,
		QuestionID: r.QuestionID,
		ListItemID: r.ListItemID,
		Label:      r.Label,
		DrawTag:    r.DrawTag,
		Posted:     r.Posted,
		Generated:  r.Generated,
		Points:     r.Points,
		Correct:    r.Correct,
		Score:      r.Score,
	}
}

func (r standingRow) toDomain() domain.Standing {
	return domain.Standing{
		ID:         r.ID,
		SeasonID:   r.SeasonID,
		LeagueID:   r.LeagueID,
		UserID:     r.UserID,
		BetID:      r.BetID,
		Points:     r.Points,
		Score:      r.Score,
		Sequence:   r.Sequence,
		Seed:       r.Seed,
		Dataset:    domain.ParseDataset(r.Dataset),
		InsertedAt: r.InsertedAt,
		Changed:    r.Changed,
	}
}

func standingFromDomain(s domain.Standing) standingRow {
	return standingRow{
		ID:         s.ID,
		SeasonID:   s.SeasonID,
		LeagueID:   s.LeagueID,
		UserID:     s.UserID,
		BetID:      s.BetID,
		Points:     s.Points,
		Score:      s.Score,
		Sequence:   s.Sequence,
		Seed:       s.Seed,
		Dataset:    string(s.Dataset),
		InsertedAt: s.InsertedAt,
		Changed:    s.Changed,
	}
}
