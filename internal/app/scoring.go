package app

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"betpool-service/internal/domain"
	"betpool-service/internal/metrics"
	"betpool-service/internal/normalize"
)

// QuestionRepository reads a bet's question structure and official solutions.
type QuestionRepository interface {
	QuestionsByBet(ctx context.Context, betID int64) ([]domain.Question, error)
	MainQuestionIDs(ctx context.Context, betID int64) ([]int64, error)
	SolutionsByQuestion(ctx context.Context, questionIDs []int64) (map[int64][]domain.Solution, error)
	SaveSolution(ctx context.Context, q domain.Question, sol domain.Solution) error
}

// AnswerRepository reads and writes participant answers for scoring.
type AnswerRepository interface {
	PostedByBet(ctx context.Context, betID int64) ([]domain.Answer, error)
	// MarginCandidates returns every candidate row, posted and generated, for
	// the given margin questions, in stored order.
	MarginCandidates(ctx context.Context, betID int64, questionIDs []int64) ([]domain.Answer, error)
	// ResetScores clears correct/score for all posted answers of the bet and
	// for every candidate row of the given margin questions.
	ResetScores(ctx context.Context, betID int64, marginQuestionIDs []int64) error
	// ApplyScores writes a batch of score updates as one atomic set.
	ApplyScores(ctx context.Context, updates []domain.ScoreUpdate) error
}

// BetLocker serializes scoring and rebuild passes per bet id, so one caller's
// reset phase can never interleave with another caller's commit.
type BetLocker struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewBetLocker() *BetLocker {
	return &BetLocker{locks: make(map[int64]*sync.Mutex)}
}

// Lock acquires the per-bet mutex and returns its release func.
func (l *BetLocker) Lock(betID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[betID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[betID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// ScoringService derives (correct, score) for every answer of a bet.
type ScoringService struct {
	questions QuestionRepository
	answers   AnswerRepository
	locks     *BetLocker
	log       *zap.Logger
}

func NewScoringService(q QuestionRepository, a AnswerRepository, locks *BetLocker, log *zap.Logger) *ScoringService {
	return &ScoringService{questions: q, answers: a, locks: locks, log: log}
}

// MarkCorrectAndScore fully re-derives correctness and score for every answer
// of the bet. It resets all affected rows to neutral first, so repeated calls
// with unchanged data produce identical output. A bet with no questions is a
// no-op success.
func (s *ScoringService) MarkCorrectAndScore(ctx context.Context, betID int64) error {
	unlock := s.locks.Lock(betID)
	defer unlock()

	err := s.markLocked(ctx, betID)
	if err != nil {
		metrics.ScoringPasses.WithLabelValues("error").Inc()
		return err
	}
	metrics.ScoringPasses.WithLabelValues("ok").Inc()
	return nil
}

func (s *ScoringService) markLocked(ctx context.Context, betID int64) error {
	questions, err := s.questions.QuestionsByBet(ctx, betID)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		s.log.Debug("scoring pass on empty bet", zap.Int64("bet_id", betID))
		return nil
	}

	mains, err := s.questions.MainQuestionIDs(ctx, betID)
	if err != nil {
		return fmt.Errorf("load main questions: %w", err)
	}
	shape := domain.ClassifyBet(questions, mains)

	questionIDs := make([]int64, 0, len(questions))
	for _, q := range questions {
		questionIDs = append(questionIDs, q.ID)
	}
	solutions, err := s.questions.SolutionsByQuestion(ctx, questionIDs)
	if err != nil {
		return fmt.Errorf("load solutions: %w", err)
	}
	official := make(map[int64][]domain.Key, len(solutions))
	byID := make(map[int64]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	for qid, sols := range solutions {
		q := byID[qid]
		for _, sol := range sols {
			official[qid] = append(official[qid], normalize.Key(q, sol.ListItemID, sol.Label, sol.DrawTag))
		}
	}

	marginIDs := make([]int64, 0, len(shape.Margins))
	for _, q := range shape.Margins {
		marginIDs = append(marginIDs, q.ID)
	}

	if err := s.answers.ResetScores(ctx, betID, marginIDs); err != nil {
		return fmt.Errorf("reset scores: %w", err)
	}

	posted, err := s.answers.PostedByBet(ctx, betID)
	if err != nil {
		return fmt.Errorf("load answers: %w", err)
	}
	byQuestion := make(map[int64][]domain.Answer)
	byUserQuestion := make(map[int64]map[int64]domain.Answer)
	for _, a := range posted {
		byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], a)
		uq, ok := byUserQuestion[a.UserID]
		if !ok {
			uq = make(map[int64]domain.Answer)
			byUserQuestion[a.UserID] = uq
		}
		uq[a.QuestionID] = a
	}

	var updates []domain.ScoreUpdate
	for _, group := range shape.Groups {
		updates = append(updates, s.scoreGroup(group, official, byQuestion, byUserQuestion)...)
	}

	if len(marginIDs) > 0 {
		candidates, err := s.answers.MarginCandidates(ctx, betID, marginIDs)
		if err != nil {
			return fmt.Errorf("load margin candidates: %w", err)
		}
		updates = append(updates, scoreMargins(shape.Margins, official, candidates)...)
	}

	slices.SortFunc(updates, func(a, b domain.ScoreUpdate) int {
		return cmp.Compare(a.AnswerID, b.AnswerID)
	})
	if err := s.answers.ApplyScores(ctx, updates); err != nil {
		return fmt.Errorf("apply scores: %w", err)
	}
	metrics.AnswersMarked.Add(float64(len(updates)))
	s.log.Info("scoring pass complete",
		zap.Int64("bet_id", betID),
		zap.Int("groups", len(shape.Groups)),
		zap.Int("margin_questions", len(shape.Margins)),
		zap.Int("updates", len(updates)),
	)
	return nil
}

// scoreGroup resolves one scoring unit: the root pot split across winners,
// bundle gating through sub answers, and the bonus pot on top. Sub answers
// and losing answers keep the neutral 0/0 state written by the reset step.
func (s *ScoringService) scoreGroup(
	group domain.Group,
	official map[int64][]domain.Key,
	byQuestion map[int64][]domain.Answer,
	byUserQuestion map[int64]map[int64]domain.Answer,
) []domain.ScoreUpdate {
	rootKeys := official[group.Root.ID]
	if len(rootKeys) == 0 {
		return nil
	}

	var winners []domain.Answer
	for _, a := range byQuestion[group.Root.ID] {
		key := normalize.Key(group.Root, a.ListItemID, a.Label, a.DrawTag)
		if !key.MatchesAny(rootKeys) {
			continue
		}
		if group.IsBundle() && !s.subsMatch(group, a.UserID, official, byUserQuestion) {
			continue
		}
		winners = append(winners, a)
	}
	if len(winners) == 0 {
		return nil
	}

	updates := make([]domain.ScoreUpdate, 0, len(winners))
	perWinner := group.Root.Points / float64(len(winners))
	for _, w := range winners {
		updates = append(updates, domain.ScoreUpdate{AnswerID: w.ID, Correct: true, Score: perWinner})
	}

	if len(group.Bonuses) > 0 {
		updates = append(updates, s.scoreBonuses(group, winners, official, byUserQuestion)...)
	}
	return updates
}

// subsMatch reports whether every sub-question answer of the user matches its
// official key. A missing sub answer or sub solution fails the bundle.
func (s *ScoringService) subsMatch(
	group domain.Group,
	userID int64,
	official map[int64][]domain.Key,
	byUserQuestion map[int64]map[int64]domain.Answer,
) bool {
	for _, sub := range group.Subs {
		a, ok := byUserQuestion[userID][sub.ID]
		if !ok {
			return false
		}
		key := normalize.Key(sub, a.ListItemID, a.Label, a.DrawTag)
		if !key.MatchesAny(official[sub.ID]) {
			return false
		}
	}
	return true
}

// scoreBonuses splits the summed bonus pot across root winners that answered
// every bonus question of the group correctly. The whole pot lands on each
// winner's first bonus answer in lineup order; other bonus answers stay 0/0.
func (s *ScoringService) scoreBonuses(
	group domain.Group,
	rootWinners []domain.Answer,
	official map[int64][]domain.Key,
	byUserQuestion map[int64]map[int64]domain.Answer,
) []domain.ScoreUpdate {
	pot := 0.0
	for _, b := range group.Bonuses {
		pot += b.Points
	}

	var firstBonusAnswers []int64
	for _, w := range rootWinners {
		all := true
		for _, b := range group.Bonuses {
			a, ok := byUserQuestion[w.UserID][b.ID]
			if !ok {
				all = false
				break
			}
			key := normalize.Key(b, a.ListItemID, a.Label, a.DrawTag)
			if !key.MatchesAny(official[b.ID]) {
				all = false
				break
			}
		}
		if !all {
			continue
		}
		first, ok := byUserQuestion[w.UserID][group.Bonuses[0].ID]
		if !ok {
			continue
		}
		firstBonusAnswers = append(firstBonusAnswers, first.ID)
	}
	if len(firstBonusAnswers) == 0 {
		return nil
	}

	perWinner := pot / float64(len(firstBonusAnswers))
	updates := make([]domain.ScoreUpdate, 0, len(firstBonusAnswers))
	for _, id := range firstBonusAnswers {
		updates = append(updates, domain.ScoreUpdate{AnswerID: id, Correct: true, Score: perWinner})
	}
	return updates
}

// scoreMargins picks at most one winning row per (user, question): the posted
// submission when it matches, otherwise the first matching generated variant
// in stored order. The winner keeps its own pre-assigned stake; there is no
// pot split across users for margin questions.
func scoreMargins(margins []domain.Question, official map[int64][]domain.Key, candidates []domain.Answer) []domain.ScoreUpdate {
	byID := make(map[int64]domain.Question, len(margins))
	for _, q := range margins {
		byID[q.ID] = q
	}

	type userQuestion struct {
		userID     int64
		questionID int64
	}
	winners := make(map[userQuestion]domain.Answer)
	for _, c := range candidates {
		q, ok := byID[c.QuestionID]
		if !ok {
			continue
		}
		keys := official[c.QuestionID]
		if len(keys) == 0 {
			continue
		}
		key := normalize.Key(q, c.ListItemID, c.Label, c.DrawTag)
		if !key.MatchesAny(keys) {
			continue
		}
		uq := userQuestion{c.UserID, c.QuestionID}
		current, taken := winners[uq]
		if !taken || (c.Posted && !current.Posted) {
			winners[uq] = c
		}
	}

	updates := make([]domain.ScoreUpdate, 0, len(winners))
	for _, w := range winners {
		updates = append(updates, domain.ScoreUpdate{AnswerID: w.ID, Correct: true, Score: w.Points})
	}
	return updates
}

// RecordSolution validates and persists one official solution. List questions
// must reference a list item; the result type label must be known. These are
// caller-input errors and nothing is written when they fire.
func (s *ScoringService) RecordSolution(ctx context.Context, q domain.Question, sol domain.Solution) error {
	switch q.Type {
	case domain.ResultList:
		if sol.ListItemID == 0 {
			return domain.ErrMissingListItem
		}
	case domain.ResultTime, domain.ResultDecimal, domain.ResultMCM,
		domain.ResultOpen, domain.ResultFootball, domain.ResultHockey:
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownResultType, q.Type)
	}
	if err := s.questions.SaveSolution(ctx, q, sol); err != nil {
		return fmt.Errorf("save solution: %w", err)
	}
	return nil
}
