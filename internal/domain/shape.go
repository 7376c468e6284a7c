package domain

import (
	"cmp"
	"slices"
)

// Group is one scoring unit of a bet: a root question plus the subs and
// bonuses attached to it through a shared groupcode. A group with no subs and
// no bonuses scores as a plain single question.
type Group struct {
	Root    Question
	Subs    []Question // zero-point gates on the root
	Bonuses []Question // positive-point questions, lineup order
}

// IsBundle reports whether the root is gated by sub-questions.
func (g Group) IsBundle() bool { return len(g.Subs) > 0 }

// BetShape is the topology of a bet, computed once per scoring pass so the
// engine dispatches on a closed set of cases instead of re-deriving shape
// from points and groupcodes at every step.
type BetShape struct {
	Groups  []Group
	Margins []Question
}

// ClassifyBet partitions a bet's questions into groups and margin questions.
// mainQuestionIDs holds the bet's recorded main question per group; when a
// group has no recorded main, the first member by lineup order is the root.
// Margin questions always score standalone and never join a group.
func ClassifyBet(questions []Question, mainQuestionIDs []int64) BetShape {
	mains := make(map[int64]bool, len(mainQuestionIDs))
	for _, id := range mainQuestionIDs {
		mains[id] = true
	}

	ordered := make([]Question, len(questions))
	copy(ordered, questions)
	slices.SortFunc(ordered, func(a, b Question) int {
		if c := cmp.Compare(a.Lineup, b.Lineup); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	var shape BetShape
	byCode := make(map[string][]Question)
	var codes []string
	for _, q := range ordered {
		if q.IsMargin() {
			shape.Margins = append(shape.Margins, q)
			continue
		}
		if _, seen := byCode[q.GroupCode]; !seen {
			codes = append(codes, q.GroupCode)
		}
		byCode[q.GroupCode] = append(byCode[q.GroupCode], q)
	}

	for _, code := range codes {
		members := byCode[code]
		rootIdx := 0
		for i, q := range members {
			if mains[q.ID] {
				rootIdx = i
				break
			}
		}
		group := Group{Root: members[rootIdx]}
		for i, q := range members {
			if i == rootIdx {
				continue
			}
			if q.Points == 0 {
				group.Subs = append(group.Subs, q)
			} else {
				group.Bonuses = append(group.Bonuses, q)
			}
		}
		shape.Groups = append(shape.Groups, group)
	}
	return shape
}
