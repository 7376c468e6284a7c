// Package replay re-runs the scoring and tally engines against an isolated
// copy of the backing store and diffs the persisted results against a
// captured baseline. It is a consumer of the engines' public operations, not
// part of their contract.
package replay

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"betpool-service/internal/app"
	"betpool-service/internal/domain"
)

// Outcome is the persisted scoring result of one answer.
type Outcome struct {
	Correct bool
	Score   float64
}

// Snapshot is the captured baseline for one bet.
type Snapshot struct {
	Answers   map[int64]Outcome
	Standings []domain.Standing
}

// Mismatch is one divergence between replay output and the baseline.
type Mismatch struct {
	AnswerID int64
	Field    string
	Want     string
	Got      string
}

// Report summarizes one verification run.
type Report struct {
	RunID    string
	BetID    int64
	Checked  int
	Sequence int64
	Diffs    []Mismatch
}

// Clean reports whether the replay reproduced the baseline exactly.
func (r Report) Clean() bool { return len(r.Diffs) == 0 }

// Harness drives verification runs against one store.
type Harness struct {
	scoring   *app.ScoringService
	tally     *app.TallyService
	questions app.QuestionRepository
	answers   app.AnswerRepository
	log       *zap.Logger
}

func NewHarness(scoring *app.ScoringService, tally *app.TallyService, questions app.QuestionRepository, answers app.AnswerRepository, log *zap.Logger) *Harness {
	return &Harness{scoring: scoring, tally: tally, questions: questions, answers: answers, log: log}
}

// Capture records the bet's current persisted scoring state as a baseline.
func (h *Harness) Capture(ctx context.Context, betID int64) (Snapshot, error) {
	answers, err := h.allAnswers(ctx, betID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Answers: make(map[int64]Outcome, len(answers))}
	for _, a := range answers {
		snap.Answers[a.ID] = Outcome{Correct: a.Correct, Score: a.Score}
	}
	return snap, nil
}

// VerifyBet replays the full scoring pass and rebuild for the bet and diffs
// every persisted (correct, score) pair against the baseline. A baseline row
// that no longer exists in the replayed store is a hard failure: the replay
// dataset is incomplete and the diff would be meaningless.
func (h *Harness) VerifyBet(ctx context.Context, betID int64, baseline Snapshot, asOf time.Time) (Report, error) {
	report := Report{RunID: uuid.NewString(), BetID: betID}

	if err := h.scoring.MarkCorrectAndScore(ctx, betID); err != nil {
		return report, fmt.Errorf("replay scoring: %w", err)
	}
	sequence, _, err := h.tally.Rebuild(ctx, betID, asOf)
	if err != nil {
		return report, fmt.Errorf("replay rebuild: %w", err)
	}
	report.Sequence = sequence

	answers, err := h.allAnswers(ctx, betID)
	if err != nil {
		return report, err
	}
	replayed := make(map[int64]Outcome, len(answers))
	for _, a := range answers {
		replayed[a.ID] = Outcome{Correct: a.Correct, Score: a.Score}
	}

	for id, want := range baseline.Answers {
		got, ok := replayed[id]
		if !ok {
			return report, fmt.Errorf("answer %d present in baseline but missing from replay store", id)
		}
		report.Checked++
		if want.Correct != got.Correct {
			report.Diffs = append(report.Diffs, Mismatch{
				AnswerID: id, Field: "correct",
				Want: fmt.Sprintf("%t", want.Correct),
				Got:  fmt.Sprintf("%t", got.Correct),
			})
		}
		if math.Abs(want.Score-got.Score) > 1e-9 {
			report.Diffs = append(report.Diffs, Mismatch{
				AnswerID: id, Field: "score",
				Want: fmt.Sprintf("%g", want.Score),
				Got:  fmt.Sprintf("%g", got.Score),
			})
		}
	}

	h.log.Info("verification run complete",
		zap.String("run_id", report.RunID),
		zap.Int64("bet_id", betID),
		zap.Int("checked", report.Checked),
		zap.Int("diffs", len(report.Diffs)),
	)
	return report, nil
}

// allAnswers returns the bet's posted answers plus every margin candidate
// row, since generated variants carry scoring state too.
func (h *Harness) allAnswers(ctx context.Context, betID int64) ([]domain.Answer, error) {
	questions, err := h.questions.QuestionsByBet(ctx, betID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	var marginIDs []int64
	for _, q := range questions {
		if q.IsMargin() {
			marginIDs = append(marginIDs, q.ID)
		}
	}

	posted, err := h.answers.PostedByBet(ctx, betID)
	if err != nil {
		return nil, fmt.Errorf("load posted answers: %w", err)
	}
	seen := make(map[int64]bool, len(posted))
	out := make([]domain.Answer, 0, len(posted))
	for _, a := range posted {
		seen[a.ID] = true
		out = append(out, a)
	}

	if len(marginIDs) > 0 {
		candidates, err := h.answers.MarginCandidates(ctx, betID, marginIDs)
		if err != nil {
			return nil, fmt.Errorf("load margin candidates: %w", err)
		}
		for _, c := range candidates {
			if !seen[c.ID] {
				out = append(out, c)
			}
		}
	}
	return out, nil
}
