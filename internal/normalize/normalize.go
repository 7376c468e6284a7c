// Package normalize maps raw submitted and official values onto canonical
// comparable forms, per result type, and generates the accepted variants for
// margin-tolerant numeric questions.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"betpool-service/internal/domain"
)

// Draw tags for football/hockey score questions that ended level in regular
// time. The tag disambiguates who went on to win.
const (
	DrawHomeExtraTime = "1et"
	DrawAwayExtraTime = "2et"
	DrawHomeShootout  = "1so"
	DrawAwayShootout  = "2so"
)

// IsDrawTag reports whether s is one of the four accepted draw tags.
func IsDrawTag(s string) bool {
	switch s {
	case DrawHomeExtraTime, DrawAwayExtraTime, DrawHomeShootout, DrawAwayShootout:
		return true
	}
	return false
}

// Time parses an H:MM:SS label (1 to 3 hour digits) into total seconds and a
// zero-padded HH:MM:SS display label. Malformed input normalizes to zero;
// upstream validation is expected to have rejected it already, and a scoring
// pass must not abort over one bad historical row.
func Time(label string) (seconds int, display string) {
	parts := strings.Split(strings.TrimSpace(label), ":")
	if len(parts) == 3 {
		h, errH := strconv.Atoi(parts[0])
		m, errM := strconv.Atoi(parts[1])
		s, errS := strconv.Atoi(parts[2])
		if errH == nil && errM == nil && errS == nil && len(parts[0]) <= 3 {
			seconds = h*3600 + m*60 + s
		}
	}
	h := seconds / 3600
	m := seconds % 3600 / 60
	s := seconds % 60
	return seconds, fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Decimal canonicalizes a numeric label that may use either '.' or ',' as the
// decimal separator and either as a thousands separator. When both appear,
// the rightmost one is the decimal separator. The canonical form is a plain
// dot-decimal string with no enforced trailing zeros. ok is false when the
// label cannot be read as a number; such values must never equality-match a
// real solution.
func Decimal(label string) (canonical string, ok bool) {
	s := strings.TrimSpace(label)
	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")

	switch {
	case dot >= 0 && comma >= 0:
		if dot > comma {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatFloat(v, 'f', -1, 64), true
}

// MCM canonicalizes a "meters,centimeters" label (either separator accepted)
// into total centimeters as an integer string. Missing or malformed parts
// read as zero.
func MCM(label string) string {
	s := strings.TrimSpace(label)
	s = strings.Replace(s, ".", ",", 1)
	meters, centimeters := s, ""
	if i := strings.Index(s, ","); i >= 0 {
		meters, centimeters = s[:i], s[i+1:]
	}
	m, _ := strconv.Atoi(strings.TrimSpace(meters))
	cm, _ := strconv.Atoi(strings.TrimSpace(centimeters))
	return strconv.Itoa(m*100 + cm)
}

// Open trims surrounding whitespace and nothing else.
func Open(label string) string {
	return strings.TrimSpace(label)
}

// Score canonicalizes an "H-A" score label. Draws carry the supplied draw tag
// in the canonical form so "2-2 home wins after extra time" and "2-2 away
// wins on penalties" never match. A draw without a tag canonicalizes to the
// plain score; enforcing tag presence is the submitter's job.
func Score(label, tag string) string {
	parts := strings.SplitN(strings.TrimSpace(label), "-", 2)
	if len(parts) != 2 {
		return strings.TrimSpace(label)
	}
	home, errH := strconv.Atoi(strings.TrimSpace(parts[0]))
	away, errA := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errH != nil || errA != nil {
		return strings.TrimSpace(label)
	}
	base := fmt.Sprintf("%d-%d", home, away)
	if home == away && IsDrawTag(tag) {
		return base + "+" + tag
	}
	return base
}

// MarginVariants generates the ordered, de-duplicated set of values a
// margin-tolerant question accepts around center: the center itself, then
// center±step, center±2·step and so on while inside the margin. Each value is
// rounded to the decimal precision implied by the step's own fractional
// digits, so a step of 0.5 yields one decimal place.
func MarginVariants(center, margin, step float64) []string {
	if step <= 0 || margin < 0 {
		return []string{formatStep(center, step)}
	}
	var out []string
	seen := make(map[string]bool)
	add := func(v float64) {
		s := formatStep(v, step)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	add(center)
	const eps = 1e-9
	for offset := step; offset <= margin+eps; offset += step {
		add(center + offset)
		add(center - offset)
	}
	return out
}

// StepPrecision returns the number of fractional digits carried by step.
func StepPrecision(step float64) int {
	s := strconv.FormatFloat(step, 'f', -1, 64)
	if i := strings.Index(s, "."); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

func formatStep(v float64, step float64) string {
	prec := StepPrecision(step)
	rounded := v
	if prec >= 0 {
		shift := math.Pow10(prec)
		rounded = math.Round(v*shift) / shift
	}
	return strconv.FormatFloat(rounded, 'f', prec, 64)
}

// Key derives the canonical equality key for one value of a question.
// Precedence: a present list-item id alone determines equality; otherwise the
// canonical value per result type; otherwise the raw label. Unknown result
// type labels canonicalize like open questions. A list value without an item
// id, or an unparseable decimal, yields an invalid key that matches nothing.
func Key(q domain.Question, listItemID int64, label, tag string) domain.Key {
	if listItemID > 0 {
		return domain.Key{Kind: domain.KeyListItem, Value: strconv.FormatInt(listItemID, 10)}
	}
	switch q.Type {
	case domain.ResultList:
		return domain.Key{Kind: domain.KeyInvalid}
	case domain.ResultTime:
		seconds, _ := Time(label)
		return domain.Key{Kind: domain.KeyValue, Value: strconv.Itoa(seconds)}
	case domain.ResultDecimal:
		canonical, ok := Decimal(label)
		if !ok {
			return domain.Key{Kind: domain.KeyInvalid}
		}
		return domain.Key{Kind: domain.KeyValue, Value: canonical}
	case domain.ResultMCM:
		return domain.Key{Kind: domain.KeyValue, Value: MCM(label)}
	case domain.ResultFootball, domain.ResultHockey:
		return domain.Key{Kind: domain.KeyValue, Value: Score(label, tag)}
	default:
		return domain.Key{Kind: domain.KeyLabel, Value: Open(label)}
	}
}
