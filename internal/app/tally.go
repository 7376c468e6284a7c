package app

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"betpool-service/internal/domain"
	"betpool-service/internal/metrics"
)

// displayLocation is the fixed zone every sequence timestamp is recorded in,
// so display output does not depend on server locale.
var displayLocation = time.UTC

func init() {
	if loc, err := time.LoadLocation("Europe/Vienna"); err == nil {
		displayLocation = loc
	}
}

// BetRepository resolves bet metadata (league scope, dataset flag).
type BetRepository interface {
	BetByID(ctx context.Context, betID int64) (domain.Bet, error)
}

// TallySource aggregates per-user totals for a bet. The score/average
// normalization lives in its query, not here.
type TallySource interface {
	TotalsByBet(ctx context.Context, betID int64) ([]domain.UserTotal, error)
}

// StandingRepository owns the versioned standings rows of a bet.
type StandingRepository interface {
	MaxSequence(ctx context.Context, betID int64) (int64, error)
	RowsByBetSequence(ctx context.Context, betID, sequence int64) ([]domain.Standing, error)
	InsertStandings(ctx context.Context, rows []domain.Standing) error
	// DeleteOlder removes every row of the bet with a sequence strictly below
	// keep. It must only run after the new sequence is fully inserted.
	DeleteOlder(ctx context.Context, betID, keep int64) error
}

// TallyService turns per-answer scores into new standings sequences.
type TallyService struct {
	bets      BetRepository
	tally     TallySource
	standings StandingRepository
	locks     *BetLocker
	log       *zap.Logger
	now       func() time.Time
}

func NewTallyService(bets BetRepository, tally TallySource, standings StandingRepository, locks *BetLocker, log *zap.Logger) *TallyService {
	return &TallyService{
		bets:      bets,
		tally:     tally,
		standings: standings,
		locks:     locks,
		log:       log,
		now:       time.Now,
	}
}

// Rebuild aggregates the bet's answer scores into a new standings sequence
// and prunes all older sequences. The new sequence is inserted completely
// before any old row is deleted, so readers observe either the old or the new
// sequence but never a partial mix. asOf pins the per-pass timestamp; the
// zero value means now.
func (s *TallyService) Rebuild(ctx context.Context, betID int64, asOf time.Time) (sequence int64, count int, err error) {
	unlock := s.locks.Lock(betID)
	defer unlock()

	start := s.now()
	defer func() {
		metrics.RebuildDuration.Observe(s.now().Sub(start).Seconds())
	}()

	bet, err := s.bets.BetByID(ctx, betID)
	if err != nil {
		return 0, 0, fmt.Errorf("load bet: %w", err)
	}
	totals, err := s.tally.TotalsByBet(ctx, betID)
	if err != nil {
		return 0, 0, fmt.Errorf("tally bet: %w", err)
	}
	current, err := s.standings.MaxSequence(ctx, betID)
	if err != nil {
		return 0, 0, fmt.Errorf("max sequence: %w", err)
	}
	if len(totals) == 0 {
		s.log.Warn("rebuild with no totals", zap.Int64("bet_id", betID))
		return current, 0, nil
	}

	prevSeeds := make(map[int64]int)
	if current > 0 {
		prev, err := s.standings.RowsByBetSequence(ctx, betID, current)
		if err != nil {
			return 0, 0, fmt.Errorf("previous sequence: %w", err)
		}
		for _, row := range prev {
			prevSeeds[row.UserID] = row.Seed
		}
	}

	if asOf.IsZero() {
		asOf = s.now()
	}
	insertedAt := asOf.In(displayLocation)
	next := current + 1
	rows := buildSequence(bet, totals, next, insertedAt, prevSeeds)

	if err := s.standings.InsertStandings(ctx, rows); err != nil {
		return 0, 0, fmt.Errorf("insert sequence %d: %w", next, err)
	}
	if err := s.standings.DeleteOlder(ctx, betID, next); err != nil {
		// Two valid sequences now coexist; the latest-sequence query still
		// picks the right one and the next rebuild prunes both.
		return next, len(rows), fmt.Errorf("prune sequences below %d: %w", next, err)
	}

	s.log.Info("standings rebuilt",
		zap.Int64("bet_id", betID),
		zap.Int64("sequence", next),
		zap.Int("rows", len(rows)),
	)
	return next, len(rows), nil
}

// buildSequence orders totals (score desc, user id asc) and assigns dense
// competition seeds: ties share a seed, the next distinct total takes its
// 1-based position. Totals 12,12,9 become seeds 1,1,3.
func buildSequence(bet domain.Bet, totals []domain.UserTotal, sequence int64, insertedAt time.Time, prevSeeds map[int64]int) []domain.Standing {
	ordered := make([]domain.UserTotal, len(totals))
	copy(ordered, totals)
	slices.SortFunc(ordered, func(a, b domain.UserTotal) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})

	rows := make([]domain.Standing, 0, len(ordered))
	seed := 1
	for i, t := range ordered {
		if i > 0 && t.Score != ordered[i-1].Score {
			seed = i + 1
		}
		prev, hadPrev := prevSeeds[t.UserID]
		rows = append(rows, domain.Standing{
			SeasonID:   bet.SeasonID,
			LeagueID:   bet.LeagueID,
			UserID:     t.UserID,
			BetID:      bet.ID,
			Points:     t.Points,
			Score:      t.Score,
			Sequence:   sequence,
			Seed:       seed,
			Dataset:    bet.Dataset,
			InsertedAt: insertedAt,
			Changed:    hadPrev && prev != seed,
		})
	}
	return rows
}
