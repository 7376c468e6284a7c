package normalize

import (
	"reflect"
	"testing"

	"betpool-service/internal/domain"
)

func TestTime(t *testing.T) {
	seconds, display := Time("1:02:03")
	if seconds != 3723 {
		t.Fatalf("expected 3723 seconds, got %d", seconds)
	}
	if display != "01:02:03" {
		t.Fatalf("expected zero-padded display, got %q", display)
	}

	seconds, display = Time("123:00:01")
	if seconds != 123*3600+1 {
		t.Fatalf("expected three-digit hours to parse, got %d", seconds)
	}
	if display != "123:00:01" {
		t.Fatalf("unexpected display %q", display)
	}

	// Malformed labels normalize to zero instead of failing the pass.
	if seconds, _ = Time("not a time"); seconds != 0 {
		t.Fatalf("expected malformed time to read as 0, got %d", seconds)
	}
	if _, display = Time(""); display != "00:00:00" {
		t.Fatalf("expected zero display, got %q", display)
	}
}

func TestDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"3.5", "3.5"},
		{"3,5", "3.5"},
		{"1.234,5", "1234.5"},
		{"1,234.5", "1234.5"},
		{"12,50", "12.5"},
		{"7", "7"},
		{"7.00", "7"},
	}
	for _, c := range cases {
		got, ok := Decimal(c.in)
		if !ok {
			t.Fatalf("Decimal(%q) unexpectedly failed", c.in)
		}
		if got != c.want {
			t.Fatalf("Decimal(%q) = %q, want %q", c.in, got, c.want)
		}
	}

	if _, ok := Decimal("NaN-ish"); ok {
		t.Fatalf("expected unparseable decimal to fail")
	}
}

func TestDecimalFailureNeverMatches(t *testing.T) {
	q := domain.Question{Type: domain.ResultDecimal}
	bad := Key(q, 0, "garbage", "")
	if bad.Kind != domain.KeyInvalid {
		t.Fatalf("expected invalid key, got %+v", bad)
	}
	if bad.Matches(bad) {
		t.Fatalf("invalid keys must not match, even themselves")
	}
}

func TestMCM(t *testing.T) {
	if got := MCM("2,15"); got != "215" {
		t.Fatalf("MCM(2,15) = %q", got)
	}
	if got := MCM("2.15"); got != "215" {
		t.Fatalf("MCM(2.15) = %q", got)
	}
	if got := MCM("3"); got != "300" {
		t.Fatalf("MCM(3) = %q", got)
	}
}

func TestScoreDrawTags(t *testing.T) {
	if got := Score("2-1", ""); got != "2-1" {
		t.Fatalf("non-draw canonical = %q", got)
	}
	// Non-draw scores ignore a supplied tag.
	if got := Score("2-1", DrawHomeExtraTime); got != "2-1" {
		t.Fatalf("non-draw with tag = %q", got)
	}
	home := Score("2-2", DrawHomeShootout)
	away := Score("2-2", DrawAwayShootout)
	if home == away {
		t.Fatalf("draw tags must distinguish outcomes: %q vs %q", home, away)
	}
	// A draw without a tag canonicalizes to the plain score.
	if got := Score("2-2", ""); got != "2-2" {
		t.Fatalf("untagged draw = %q", got)
	}
}

func TestMarginVariants(t *testing.T) {
	got := MarginVariants(10, 1, 0.5)
	want := []string{"10.0", "10.5", "9.5", "11.0", "9.0"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("variants = %v, want %v", got, want)
	}

	// Integer steps keep integer formatting.
	got = MarginVariants(5, 2, 1)
	want = []string{"5", "6", "4", "7", "3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("variants = %v, want %v", got, want)
	}
}

func TestKeyPrecedence(t *testing.T) {
	q := domain.Question{Type: domain.ResultDecimal}

	// A list item id wins over everything else.
	withItem := Key(q, 42, "3.5", "")
	if withItem.Kind != domain.KeyListItem || withItem.Value != "42" {
		t.Fatalf("expected list-item key, got %+v", withItem)
	}

	// The same raw number through value canonicalization never matches a
	// list-item key of the same digits.
	asValue := Key(q, 0, "42", "")
	if asValue.Matches(withItem) {
		t.Fatalf("keys of different kinds must never match")
	}

	// Different spellings of the same decimal match through the canonical value.
	if !Key(q, 0, "3,5", "").Matches(Key(q, 0, "3.5", "")) {
		t.Fatalf("expected 3,5 to match 3.5")
	}

	// List questions without an item id match nothing.
	listQ := domain.Question{Type: domain.ResultList}
	if Key(listQ, 0, "anything", "").Kind != domain.KeyInvalid {
		t.Fatalf("expected invalid key for list answer without item id")
	}

	// Unknown result types canonicalize like open questions.
	odd := domain.Question{Type: "weird"}
	if got := Key(odd, 0, "  label  ", ""); got.Kind != domain.KeyLabel || got.Value != "label" {
		t.Fatalf("unknown type key = %+v", got)
	}
}
