package app_test

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"betpool-service/internal/app"
	"betpool-service/internal/domain"
	"betpool-service/internal/infra/memory"
)

func newScoring(store *memory.Store) *app.ScoringService {
	return app.NewScoringService(store, store, app.NewBetLocker(), zap.NewNop())
}

func assertOutcome(t *testing.T, store *memory.Store, answerID int64, correct bool, score float64) {
	t.Helper()
	a, ok := store.Answer(answerID)
	if !ok {
		t.Fatalf("answer %d not found", answerID)
	}
	if a.Correct != correct || a.Score != score {
		t.Fatalf("answer %d = (%t, %g), want (%t, %g)", answerID, a.Correct, a.Score, correct, score)
	}
}

func TestSinglesSplitPot(t *testing.T) {
	store := memory.NewStore()
	store.AddBet(domain.Bet{ID: 1, SeasonID: 1, LeagueID: 1})
	store.AddQuestion(domain.Question{ID: 10, BetID: 1, GroupCode: "g10", Points: 10, Lineup: 1, Type: domain.ResultList, Average: 1}, true)
	store.AddSolution(domain.Solution{QuestionID: 10, ListItemID: 100})

	hit1 := store.AddAnswer(domain.Answer{UserID: 1, QuestionID: 10, ListItemID: 100, Posted: true})
	hit2 := store.AddAnswer(domain.Answer{UserID: 2, QuestionID: 10, ListItemID: 100, Posted: true})
	miss := store.AddAnswer(domain.Answer{UserID: 3, QuestionID: 10, ListItemID: 999, Posted: true})

	if err := newScoring(store).MarkCorrectAndScore(context.Background(), 1); err != nil {
		t.Fatalf("scoring failed: %v", err)
	}

	assertOutcome(t, store, hit1, true, 5)
	assertOutcome(t, store, hit2, true, 5)
	assertOutcome(t, store, miss, false, 0)
}

func TestUnpostedAnswersIgnored(t *testing.T) {
	store := memory.NewStore()
	store.AddBet(domain.Bet{ID: 1})
	store.AddQuestion(domain.Question{ID: 10, BetID: 1, GroupCode: "g10", Points: 10, Lineup: 1, Type: domain.ResultList}, true)
	store.AddSolution(domain.Solution{QuestionID: 10, ListItemID: 100})

	draft := store.AddAnswer(domain.Answer{UserID: 1, QuestionID: 10, ListItemID: 100, Posted: false})
	posted := store.AddAnswer(domain.Answer{UserID: 2, QuestionID: 10, ListItemID: 100, Posted: true})

	if err := newScoring(store).MarkCorrectAndScore(context.Background(), 1); err != nil {
		t.Fatalf("scoring failed: %v", err)
	}

	// The unposted draft takes no share of the pot.
	assertOutcome(t, store, draft, false, 0)
	assertOutcome(t, store, posted, true, 10)
}

func TestBundleGating(t *testing.T) {
	store := memory.NewStore()
	store.AddBet(domain.Bet{ID: 1})
	store.AddQuestion(domain.Question{ID: 10, BetID: 1, GroupCode: "g", Points: 10, Lineup: 1, Type: domain.ResultList}, true)
	store.AddQuestion(domain.Question{ID: 11, BetID: 1, GroupCode: "g", Points: 0, Lineup: 2, Type: domain.ResultList}, false)
	store.AddQuestion(domain.Question{ID: 12, BetID: 1, GroupCode: "g", Points: 0, Lineup: 3, Type: domain.ResultList}, false)
	store.AddSolution(domain.Solution{QuestionID: 10, ListItemID: 100})
	store.AddSolution(domain.Solution{QuestionID: 11, ListItemID: 110})
	store.AddSolution(domain.Solution{QuestionID: 12, ListItemID: 120})

	// User 1 hits root and both subs; user 2 hits root but fails one sub.
	aRoot := store.AddAnswer(domain.Answer{UserID: 1, QuestionID: 10, ListItemID: 100, Posted: true})
	aSub1 := store.AddAnswer(domain.Answer{UserID: 1, QuestionID: 11, ListItemID: 110, Posted: true})
	aSub2 := store.AddAnswer(domain.Answer{UserID: 1, QuestionID: 12, ListItemID: 120, Posted: true})
	bRoot := store.AddAnswer(domain.Answer{UserID: 2, QuestionID: 10, ListItemID: 100, Posted: true})
	bSub1 := store.AddAnswer(domain.Answer{UserID: 2, QuestionID: 11, ListItemID: 110, Posted: true})
	bSub2 := store.AddAnswer(domain.Answer{UserID: 2, QuestionID: 12, ListItemID: 999, Posted: true})

	if err := newScoring(store).MarkCorrectAndScore(context.Background(), 1); err != nil {
		t.Fatalf("scoring failed: %v", err)
	}

	assertOutcome(t, store, aRoot, true, 10)
	assertOutcome(t, store, bRoot, false, 0)
	// Subs are structural gates and never score, win or lose.
	for _, id := range []int64{aSub1, aSub2, bSub1, bSub2} {
		assertOutcome(t, store, id, false, 0)
	}
}

func TestBonusPotOnFirstBonus(t *testing.T) {
	store := memory.NewStore()
	store.AddBet(domain.Bet{ID: 1})
	store.AddQuestion(domain.Question{ID: 10, BetID: 1, GroupCode: "g", Points: 10, Lineup: 1, Type: domain.ResultList}, true)
	store.AddQuestion(domain.Question{ID: 11, BetID: 1, GroupCode: "g", Points: 5, Lineup: 2, Type: domain.ResultList}, false)
	store.AddQuestion(domain.Question{ID: 12, BetID: 1, GroupCode: "g", Points: 7, Lineup: 3, Type: domain.ResultList}, false)
	store.AddSolution(domain.Solution{QuestionID: 10, ListItemID: 100})
	store.AddSolution(domain.Solution{QuestionID: 11, ListItemID: 110})
	store.AddSolution(domain.Solution{QuestionID: 12, ListItemID: 120})

	// Both users win the root; only user 1 answers both bonuses correctly.
	aRoot := store.AddAnswer(domain.Answer{UserID: 1, QuestionID: 10, ListItemID: 100, Posted: true})
	aBonus1 := store.AddAnswer(domain.Answer{UserID: 1, QuestionID: 11, ListItemID: 110, Posted: true})
	aBonus2 := store.AddAnswer(domain.Answer{UserID: 1, QuestionID: 12, ListItemID: 120, Posted: true})
	bRoot := store.AddAnswer(domain.Answer{UserID: 2, QuestionID: 10, ListItemID: 100, Posted: true})
	bBonus1 := store.AddAnswer(domain.Answer{UserID: 2, QuestionID: 11, ListItemID: 110, Posted: true})
	bBonus2 := store.AddAnswer(domain.Answer{UserID: 2, QuestionID: 12, ListItemID: 999, Posted: true})

	if err := newScoring(store).MarkCorrectAndScore(context.Background(), 1); err != nil {
		t.Fatalf("scoring failed: %v", err)
	}

	// Root pot splits across both winners; the 5+7 bonus pot lands entirely
	// on user 1's first bonus answer in lineup order.
	assertOutcome(t, store, aRoot, true, 5)
	assertOutcome(t, store, bRoot, true, 5)
	assertOutcome(t, store, aBonus1, true, 12)
	assertOutcome(t, store, aBonus2, false, 0)
	assertOutcome(t, store, bBonus1, false, 0)
	assertOutcome(t, store, bBonus2, false, 0)
}

func TestBonusRequiresWinningRoot(t *testing.T) {
	store := memory.NewStore()
	store.AddBet(domain.Bet{ID: 1})
	store.AddQuestion(domain.Question{ID: 10, BetID: 1, GroupCode: "g", Points: 10, Lineup: 1, Type: domain.ResultList}, true)
	store.AddQuestion(domain.Question{ID: 11, BetID: 1, GroupCode: "g", Points: 5, Lineup: 2, Type: domain.ResultList}, false)
	store.AddSolution(domain.Solution{QuestionID: 10, ListItemID: 100})
	store.AddSolution(domain.Solution{QuestionID: 11, ListItemID: 110})

	root := store.AddAnswer(domain.Answer{UserID: 1, QuestionID: 10, ListItemID: 999, Posted: true})
	bonus := store.AddAnswer(domain.Answer{UserID: 1, QuestionID: 11, ListItemID: 110, Posted: true})

	if err := newScoring(store).MarkCorrectAndScore(context.Background(), 1); err != nil {
		t.Fatalf("scoring failed: %v", err)
	}

	assertOutcome(t, store, root, false, 0)
	assertOutcome(t, store, bonus, false, 0)
}

func TestMarginPrefersPostedRow(t *testing.T) {
	store := memory.NewStore()
	store.AddBet(domain.Bet{ID: 1})
	store.AddQuestion(domain.Question{ID: 30, BetID: 1, GroupCode: "g30", Points: 5, Lineup: 1, Type: domain.ResultDecimal, Margin: 1, Step: 0.5}, true)
	store.AddSolution(domain.Solution{QuestionID: 30, Label: "3.5"})

	// A generated duplicate of the center is stored before the posted row. The
	// posted row still wins with its own stake, even though the variant
	// numerically matches too.
	dup := store.AddAnswer(domain.Answer{UserID: 1, QuestionID: 30, Label: "3.50", Generated: true, Points: 2.5})
	exact := store.AddAnswer(domain.Answer{UserID: 1, QuestionID: 30, Label: "3,5", Posted: true, Points: 5})
	high := store.AddAnswer(domain.Answer{UserID: 1, QuestionID: 30, Label: "4.0", Generated: true, Points: 2.5})

	if err := newScoring(store).MarkCorrectAndScore(context.Background(), 1); err != nil {
		t.Fatalf("scoring failed: %v", err)
	}

	assertOutcome(t, store, exact, true, 5)
	assertOutcome(t, store, dup, false, 0)
	assertOutcome(t, store, high, false, 0)
}

func TestMarginFallsBackToFirstVariant(t *testing.T) {
	store := memory.NewStore()
	store.AddBet(domain.Bet{ID: 1})
	store.AddQuestion(domain.Question{ID: 30, BetID: 1, GroupCode: "g30", Points: 5, Lineup: 1, Type: domain.ResultDecimal, Margin: 1, Step: 0.5}, true)
	store.AddSolution(domain.Solution{QuestionID: 30, Label: "4"})

	posted := store.AddAnswer(domain.Answer{UserID: 1, QuestionID: 30, Label: "3.5", Posted: true, Points: 5})
	variant := store.AddAnswer(domain.Answer{UserID: 1, QuestionID: 30, Label: "4.0", Generated: true, Points: 2.5})
	other := store.AddAnswer(domain.Answer{UserID: 1, QuestionID: 30, Label: "3.0", Generated: true, Points: 2.5})

	if err := newScoring(store).MarkCorrectAndScore(context.Background(), 1); err != nil {
		t.Fatalf("scoring failed: %v", err)
	}

	// The posted row misses, so the matching variant wins its own stake.
	assertOutcome(t, store, posted, false, 0)
	assertOutcome(t, store, variant, true, 2.5)
	assertOutcome(t, store, other, false, 0)
}

func TestMarkIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	store.AddBet(domain.Bet{ID: 1})
	store.AddQuestion(domain.Question{ID: 10, BetID: 1, GroupCode: "g10", Points: 9, Lineup: 1, Type: domain.ResultDecimal}, true)
	store.AddSolution(domain.Solution{QuestionID: 10, Label: "2,5"})

	hit := store.AddAnswer(domain.Answer{UserID: 1, QuestionID: 10, Label: "2.5", Posted: true})
	miss := store.AddAnswer(domain.Answer{UserID: 2, QuestionID: 10, Label: "2.6", Posted: true})

	svc := newScoring(store)
	for i := 0; i < 2; i++ {
		if err := svc.MarkCorrectAndScore(context.Background(), 1); err != nil {
			t.Fatalf("pass %d failed: %v", i+1, err)
		}
		assertOutcome(t, store, hit, true, 9)
		assertOutcome(t, store, miss, false, 0)
	}
}

func TestEmptyBetIsNoop(t *testing.T) {
	store := memory.NewStore()
	if err := newScoring(store).MarkCorrectAndScore(context.Background(), 99); err != nil {
		t.Fatalf("expected no-op success, got %v", err)
	}
}

func TestRecordSolutionValidation(t *testing.T) {
	store := memory.NewStore()
	svc := newScoring(store)
	ctx := context.Background()

	listQ := domain.Question{ID: 1, Type: domain.ResultList}
	if err := svc.RecordSolution(ctx, listQ, domain.Solution{}); err != domain.ErrMissingListItem {
		t.Fatalf("expected missing list item error, got %v", err)
	}

	oddQ := domain.Question{ID: 2, Type: "esoteric"}
	if err := svc.RecordSolution(ctx, oddQ, domain.Solution{Label: "x"}); err == nil {
		t.Fatalf("expected unknown result type error")
	}

	timeQ := domain.Question{ID: 3, Type: domain.ResultTime}
	if err := svc.RecordSolution(ctx, timeQ, domain.Solution{Label: "1:02:03"}); err != nil {
		t.Fatalf("record solution failed: %v", err)
	}
}
