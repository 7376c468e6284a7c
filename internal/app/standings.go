package app

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"betpool-service/internal/domain"
)

// Scope selects one standings universe: a season, a league, and the real or
// virtual dataset.
type Scope struct {
	SeasonID int64
	LeagueID int64
	Dataset  domain.Dataset
}

// StandingsReader is the read-side view over persisted standings.
type StandingsReader interface {
	LatestSequence(ctx context.Context, scope Scope) (int64, error)
	RowsAtSequence(ctx context.Context, scope Scope, sequence int64) ([]domain.Standing, error)
	UserRows(ctx context.Context, scope Scope, userID int64) ([]domain.Standing, error)
}

// Lookup resolves display records for seasons, leagues, and users. An empty
// id list must resolve to an empty map.
type Lookup interface {
	Resolve(ctx context.Context, kind domain.LookupKind, ids []int64) (map[int64]domain.LookupRecord, error)
}

// EnrichKeys selects which display objects to attach to returned rows.
type EnrichKeys struct {
	Season bool
	League bool
	User   bool
}

// TrendPoint is one aggregate of a league's standings per bet sequence.
type TrendPoint struct {
	BetID    int64   `json:"betId"`
	Sequence int64   `json:"sequence"`
	Users    int     `json:"users"`
	TopScore float64 `json:"topScore"`
	AvgScore float64 `json:"avgScore"`
	LeaderID int64   `json:"leaderId"`
}

// StandingsService computes ranked standings views with rank movement against
// the scope's baseline sequence.
type StandingsService struct {
	reader StandingsReader
	lookup Lookup
	log    *zap.Logger
}

func NewStandingsService(reader StandingsReader, lookup Lookup, log *zap.Logger) *StandingsService {
	return &StandingsService{reader: reader, lookup: lookup, log: log}
}

// Current returns the scope's standings at its latest sequence.
func (s *StandingsService) Current(ctx context.Context, scope Scope, keys EnrichKeys) ([]domain.RankedStanding, error) {
	latest, err := s.reader.LatestSequence(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("latest sequence: %w", err)
	}
	if latest == 0 {
		return nil, nil
	}
	return s.StandingsAt(ctx, scope, latest, keys)
}

// StandingsAt returns the scope's standings at the requested sequence, with
// movement against the scope's baseline. For the real dataset the baseline is
// the immediately preceding sequence; for the virtual dataset it is always
// the latest sequence of the real dataset, the authoritative state a what-if
// ranking is measured against.
func (s *StandingsService) StandingsAt(ctx context.Context, scope Scope, sequence int64, keys EnrichKeys) ([]domain.RankedStanding, error) {
	rows, err := s.reader.RowsAtSequence(ctx, scope, sequence)
	if err != nil {
		return nil, fmt.Errorf("rows at sequence %d: %w", sequence, err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrSequenceNotFound
	}

	baseline, err := s.baselineSeeds(ctx, scope, sequence)
	if err != nil {
		return nil, err
	}

	ranked := make([]domain.RankedStanding, 0, len(rows))
	for _, row := range rows {
		r := domain.RankedStanding{Standing: row}
		if prev, ok := baseline[row.UserID]; ok {
			prevSeed := prev
			movement := prev - row.Seed
			r.PrevSeed = &prevSeed
			r.Movement = &movement
		}
		ranked = append(ranked, r)
	}

	slices.SortFunc(ranked, func(a, b domain.RankedStanding) int {
		if c := cmp.Compare(a.Seed, b.Seed); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})

	if err := s.enrich(ctx, ranked, keys); err != nil {
		return nil, err
	}
	return ranked, nil
}

// List is Current with an optional pinned sequence.
func (s *StandingsService) List(ctx context.Context, scope Scope, sequence int64, keys EnrichKeys) ([]domain.RankedStanding, error) {
	if sequence > 0 {
		return s.StandingsAt(ctx, scope, sequence, keys)
	}
	return s.Current(ctx, scope, keys)
}

// UserProgression returns one user's standings rows across the scope's bets,
// oldest sequence first.
func (s *StandingsService) UserProgression(ctx context.Context, scope Scope, userID int64, keys EnrichKeys) ([]domain.RankedStanding, error) {
	rows, err := s.reader.UserRows(ctx, scope, userID)
	if err != nil {
		return nil, fmt.Errorf("user rows: %w", err)
	}
	slices.SortFunc(rows, func(a, b domain.Standing) int {
		if c := cmp.Compare(a.Sequence, b.Sequence); c != 0 {
			return c
		}
		return cmp.Compare(a.BetID, b.BetID)
	})
	ranked := make([]domain.RankedStanding, 0, len(rows))
	for _, row := range rows {
		ranked = append(ranked, domain.RankedStanding{Standing: row})
	}
	if err := s.enrich(ctx, ranked, keys); err != nil {
		return nil, err
	}
	return ranked, nil
}

// LeagueTrend aggregates the scope's latest standings per bet: field size,
// top and average score, and the current leader.
func (s *StandingsService) LeagueTrend(ctx context.Context, scope Scope) ([]TrendPoint, error) {
	latest, err := s.reader.LatestSequence(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("latest sequence: %w", err)
	}
	if latest == 0 {
		return nil, nil
	}
	rows, err := s.reader.RowsAtSequence(ctx, scope, latest)
	if err != nil {
		return nil, fmt.Errorf("rows at sequence %d: %w", latest, err)
	}

	byBet := make(map[int64]*TrendPoint)
	var betIDs []int64
	for _, row := range rows {
		point, ok := byBet[row.BetID]
		if !ok {
			point = &TrendPoint{BetID: row.BetID, Sequence: row.Sequence}
			byBet[row.BetID] = point
			betIDs = append(betIDs, row.BetID)
		}
		point.Users++
		point.AvgScore += row.Score
		if row.Score > point.TopScore || point.LeaderID == 0 {
			point.TopScore = row.Score
			point.LeaderID = row.UserID
		}
	}

	slices.Sort(betIDs)
	trend := make([]TrendPoint, 0, len(betIDs))
	for _, id := range betIDs {
		point := byBet[id]
		if point.Users > 0 {
			point.AvgScore /= float64(point.Users)
		}
		trend = append(trend, *point)
	}
	return trend, nil
}

// baselineSeeds loads the seed of every user in the baseline sequence. A
// missing baseline (first sequence, or no real standings yet for a virtual
// scope) yields an empty map and nil movements.
func (s *StandingsService) baselineSeeds(ctx context.Context, scope Scope, sequence int64) (map[int64]int, error) {
	baselineScope := scope
	var baselineSeq int64
	if scope.Dataset == domain.DatasetVirtual {
		baselineScope.Dataset = domain.DatasetReal
		latest, err := s.reader.LatestSequence(ctx, baselineScope)
		if err != nil {
			return nil, fmt.Errorf("latest real sequence: %w", err)
		}
		baselineSeq = latest
	} else {
		baselineSeq = sequence - 1
	}
	if baselineSeq <= 0 {
		return map[int64]int{}, nil
	}

	rows, err := s.reader.RowsAtSequence(ctx, baselineScope, baselineSeq)
	if err != nil {
		return nil, fmt.Errorf("baseline sequence %d: %w", baselineSeq, err)
	}
	seeds := make(map[int64]int, len(rows))
	for _, row := range rows {
		seeds[row.UserID] = row.Seed
	}
	return seeds, nil
}

// enrich attaches display records for the requested entity kinds. Ids are
// deduplicated across the whole result set before lookup, and the kinds
// resolve concurrently since they touch disjoint data.
func (s *StandingsService) enrich(ctx context.Context, rows []domain.RankedStanding, keys EnrichKeys) error {
	if s.lookup == nil || (!keys.Season && !keys.League && !keys.User) || len(rows) == 0 {
		return nil
	}

	collect := func(pick func(domain.RankedStanding) int64) []int64 {
		seen := make(map[int64]bool)
		var ids []int64
		for _, row := range rows {
			id := pick(row)
			if id != 0 && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		slices.Sort(ids)
		return ids
	}

	var seasons, leagues, users map[int64]domain.LookupRecord
	g, gctx := errgroup.WithContext(ctx)
	if keys.Season {
		ids := collect(func(r domain.RankedStanding) int64 { return r.SeasonID })
		g.Go(func() error {
			var err error
			seasons, err = s.lookup.Resolve(gctx, domain.LookupSeason, ids)
			return err
		})
	}
	if keys.League {
		ids := collect(func(r domain.RankedStanding) int64 { return r.LeagueID })
		g.Go(func() error {
			var err error
			leagues, err = s.lookup.Resolve(gctx, domain.LookupLeague, ids)
			return err
		})
	}
	if keys.User {
		ids := collect(func(r domain.RankedStanding) int64 { return r.UserID })
		g.Go(func() error {
			var err error
			users, err = s.lookup.Resolve(gctx, domain.LookupUser, ids)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("resolve lookups: %w", err)
	}

	for i := range rows {
		if rec, ok := seasons[rows[i].SeasonID]; ok {
			r := rec
			rows[i].Season = &r
		}
		if rec, ok := leagues[rows[i].LeagueID]; ok {
			r := rec
			rows[i].League = &r
		}
		if rec, ok := users[rows[i].UserID]; ok {
			r := rec
			rows[i].User = &r
		}
	}
	return nil
}
