package domain

import "time"

// ResultType tells the normalizer how to canonicalize a question's values.
type ResultType string

const (
	ResultList     ResultType = "list"
	ResultTime     ResultType = "time"
	ResultDecimal  ResultType = "decimal"
	ResultMCM      ResultType = "mcm"
	ResultOpen     ResultType = "open"
	ResultFootball ResultType = "football"
	ResultHockey   ResultType = "hockey"
)

// Dataset separates the real standings universe from the what-if one.
type Dataset string

const (
	DatasetReal    Dataset = "0"
	DatasetVirtual Dataset = "1"
)

// ParseDataset maps the stored tri-state flag ("", "0", "1") onto a dataset.
func ParseDataset(flag string) Dataset {
	if flag == string(DatasetVirtual) {
		return DatasetVirtual
	}
	return DatasetReal
}

// Bet is one prediction event: its questions, its league scope, and which
// standings universe its results feed.
type Bet struct {
	ID       int64
	SeasonID int64
	LeagueID int64
	Dataset  Dataset
}

// Question is one scorable item inside a bet. Questions sharing a GroupCode
// form one scoring unit; Points == 0 marks a structural sub-question.
type Question struct {
	ID        int64
	BetID     int64
	GroupCode string
	Points    float64
	Lineup    int
	Type      ResultType
	Margin    float64 // margin-tolerant types only
	Step      float64
	Average   float64 // tally normalization factor, owned by the tally query
}

// IsMargin reports whether the question accepts a tolerance band of values.
func (q Question) IsMargin() bool {
	return q.Margin > 0 && q.Step > 0
}

// Solution is one accepted official value for a question. A question may carry
// several; matching any of them wins.
type Solution struct {
	QuestionID int64
	ListItemID int64  // list type; 0 means absent
	Label      string // raw value, canonicalized per result type
	DrawTag    string // football/hockey draws only
}

// Answer is a participant submission, or a generated margin variant bracketing
// one. Correct and Score are owned by the scoring engine.
type Answer struct {
	ID         int64
	UserID     int64
	QuestionID int64
	ListItemID int64
	Label      string
	DrawTag    string
	Posted     bool
	Generated  bool    // machine-generated margin variant
	Points     float64 // pre-assigned stake, used by margin scoring
	Correct    bool
	Score      float64
}

// ScoreUpdate is one computed (answer, correct, score) triple, committed in a
// batch at the end of a scoring pass.
type ScoreUpdate struct {
	AnswerID int64
	Correct  bool
	Score    float64
}

// Standing is one row of a versioned standings sequence. Rows are written once
// per (bet, sequence) pass and only ever removed by pruning older sequences.
type Standing struct {
	ID         int64
	SeasonID   int64
	LeagueID   int64
	UserID     int64
	BetID      int64
	Points     float64
	Score      float64
	Sequence   int64
	Seed       int
	Dataset    Dataset
	InsertedAt time.Time
	Changed    bool
}

// UserTotal is a per-user point total produced by the tally source.
type UserTotal struct {
	UserID int64
	Points float64
	Score  float64
}

// RankedStanding is a standing joined with its movement against the baseline
// sequence. PrevSeed and Movement are nil when no baseline row exists.
type RankedStanding struct {
	Standing
	PrevSeed *int
	Movement *int

	Season *LookupRecord
	League *LookupRecord
	User   *LookupRecord
}

// LookupRecord is a denormalized display object resolved by the lookup
// collaborator (season, league, or user).
type LookupRecord struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// LookupKind selects which entity a lookup call resolves.
type LookupKind string

const (
	LookupSeason LookupKind = "season"
	LookupLeague LookupKind = "league"
	LookupUser   LookupKind = "user"
)
