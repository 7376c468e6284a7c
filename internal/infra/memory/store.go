// Package memory provides in-process implementations of the app
// collaborators: a full store used by tests and postgres-less demo runs, and
// a TTL-cached lookup.
package memory

import (
	"context"
	"sync"

	"betpool-service/internal/app"
	"betpool-service/internal/domain"
)

// Store keeps bets, questions, solutions, answers, and standings in memory.
// It implements every repository interface the engines consume.
type Store struct {
	mu         sync.RWMutex
	bets       map[int64]domain.Bet
	questions  map[int64]domain.Question
	mains      map[int64][]int64 // bet id -> main question ids
	solutions  map[int64][]domain.Solution
	answers    map[int64]*domain.Answer
	answerIDs  []int64 // insertion order, the margin candidates' stored order
	standings  []domain.Standing
	nextAnswer int64
	nextRow    int64
}

func NewStore() *Store {
	return &Store{
		bets:      make(map[int64]domain.Bet),
		questions: make(map[int64]domain.Question),
		mains:     make(map[int64][]int64),
		solutions: make(map[int64][]domain.Solution),
		answers:   make(map[int64]*domain.Answer),
	}
}

// Seeding helpers.

func (s *Store) AddBet(b domain.Bet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bets[b.ID] = b
}

func (s *Store) AddQuestion(q domain.Question, main bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[q.ID] = q
	if main {
		s.mains[q.BetID] = append(s.mains[q.BetID], q.ID)
	}
}

func (s *Store) AddSolution(sol domain.Solution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.solutions[sol.QuestionID] = append(s.solutions[sol.QuestionID], sol)
}

// AddAnswer stores the answer and returns its assigned id.
func (s *Store) AddAnswer(a domain.Answer) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		s.nextAnswer++
		a.ID = s.nextAnswer
	} else if a.ID > s.nextAnswer {
		s.nextAnswer = a.ID
	}
	stored := a
	s.answers[a.ID] = &stored
	s.answerIDs = append(s.answerIDs, a.ID)
	return a.ID
}

// Answer returns a copy of the stored answer.
func (s *Store) Answer(id int64) (domain.Answer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.answers[id]
	if !ok {
		return domain.Answer{}, false
	}
	return *a, true
}

// app.BetRepository

func (s *Store) BetByID(_ context.Context, betID int64) (domain.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bets[betID]
	if !ok {
		return domain.Bet{}, domain.ErrBetNotFound
	}
	return b, nil
}

// app.QuestionRepository

func (s *Store) QuestionsByBet(_ context.Context, betID int64) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Question
	for _, q := range s.questions {
		if q.BetID == betID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *Store) MainQuestionIDs(_ context.Context, betID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int64(nil), s.mains[betID]...), nil
}

func (s *Store) SolutionsByQuestion(_ context.Context, questionIDs []int64) (map[int64][]domain.Solution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64][]domain.Solution)
	for _, id := range questionIDs {
		if sols, ok := s.solutions[id]; ok {
			out[id] = append([]domain.Solution(nil), sols...)
		}
	}
	return out, nil
}

func (s *Store) SaveSolution(_ context.Context, q domain.Question, sol domain.Solution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sol.QuestionID = q.ID
	s.solutions[q.ID] = append(s.solutions[q.ID], sol)
	return nil
}

// app.AnswerRepository

func (s *Store) PostedByBet(_ context.Context, betID int64) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Answer
	for _, id := range s.answerIDs {
		a := s.answers[id]
		q, ok := s.questions[a.QuestionID]
		if ok && q.BetID == betID && a.Posted {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *Store) MarginCandidates(_ context.Context, betID int64, questionIDs []int64) ([]domain.Answer, error) {
	wanted := make(map[int64]bool, len(questionIDs))
	for _, id := range questionIDs {
		wanted[id] = true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Answer
	for _, id := range s.answerIDs {
		a := s.answers[id]
		q, ok := s.questions[a.QuestionID]
		if ok && q.BetID == betID && wanted[a.QuestionID] {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *Store) ResetScores(_ context.Context, betID int64, marginQuestionIDs []int64) error {
	margins := make(map[int64]bool, len(marginQuestionIDs))
	for _, id := range marginQuestionIDs {
		margins[id] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.answers {
		q, ok := s.questions[a.QuestionID]
		if !ok || q.BetID != betID {
			continue
		}
		if a.Posted || margins[a.QuestionID] {
			a.Correct = false
			a.Score = 0
		}
	}
	return nil
}

func (s *Store) ApplyScores(_ context.Context, updates []domain.ScoreUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		if a, ok := s.answers[u.AnswerID]; ok {
			a.Correct = u.Correct
			a.Score = u.Score
		}
	}
	return nil
}

// app.TallySource. The score sum is normalized by each question's average
// factor, mirroring the SQL the postgres tally source runs.
func (s *Store) TotalsByBet(_ context.Context, betID int64) ([]domain.UserTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totals := make(map[int64]*domain.UserTotal)
	var order []int64
	for _, id := range s.answerIDs {
		a := s.answers[id]
		q, ok := s.questions[a.QuestionID]
		if !ok || q.BetID != betID || !a.Posted {
			continue
		}
		t, ok := totals[a.UserID]
		if !ok {
			t = &domain.UserTotal{UserID: a.UserID}
			totals[a.UserID] = t
			order = append(order, a.UserID)
		}
		average := q.Average
		if average == 0 {
			average = 1
		}
		t.Points += a.Score
		t.Score += a.Score / average
	}
	out := make([]domain.UserTotal, 0, len(order))
	for _, uid := range order {
		out = append(out, *totals[uid])
	}
	return out, nil
}

// app.StandingRepository

func (s *Store) MaxSequence(_ context.Context, betID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max int64
	for _, row := range s.standings {
		if row.BetID == betID && row.Sequence > max {
			max = row.Sequence
		}
	}
	return max, nil
}

func (s *Store) RowsByBetSequence(_ context.Context, betID, sequence int64) ([]domain.Standing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Standing
	for _, row := range s.standings {
		if row.BetID == betID && row.Sequence == sequence {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *Store) InsertStandings(_ context.Context, rows []domain.Standing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		s.nextRow++
		row.ID = s.nextRow
		s.standings = append(s.standings, row)
	}
	return nil
}

func (s *Store) DeleteOlder(_ context.Context, betID, keep int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.standings[:0]
	for _, row := range s.standings {
		if row.BetID == betID && row.Sequence < keep {
			continue
		}
		kept = append(kept, row)
	}
	s.standings = kept
	return nil
}

// app.StandingsReader

func (s *Store) LatestSequence(_ context.Context, scope app.Scope) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max int64
	for _, row := range s.standings {
		if s.inScope(row, scope) && row.Sequence > max {
			max = row.Sequence
		}
	}
	return max, nil
}

func (s *Store) RowsAtSequence(_ context.Context, scope app.Scope, sequence int64) ([]domain.Standing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Standing
	for _, row := range s.standings {
		if s.inScope(row, scope) && row.Sequence == sequence {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *Store) UserRows(_ context.Context, scope app.Scope, userID int64) ([]domain.Standing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Standing
	for _, row := range s.standings {
		if s.inScope(row, scope) && row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *Store) inScope(row domain.Standing, scope app.Scope) bool {
	return row.SeasonID == scope.SeasonID &&
		row.LeagueID == scope.LeagueID &&
		row.Dataset == scope.Dataset
}

// StaticLookup resolves display records from a fixed map, the demo/test
// counterpart of the real lookup service.
type StaticLookup struct {
	records map[domain.LookupKind]map[int64]domain.LookupRecord
}

func NewStaticLookup(records map[domain.LookupKind]map[int64]domain.LookupRecord) *StaticLookup {
	return &StaticLookup{records: records}
}

func (l *StaticLookup) Resolve(_ context.Context, kind domain.LookupKind, ids []int64) (map[int64]domain.LookupRecord, error) {
	out := make(map[int64]domain.LookupRecord, len(ids))
	for _, id := range ids {
		if rec, ok := l.records[kind][id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}
