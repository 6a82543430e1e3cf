package nickname

import (
	"strings"
	"testing"
	"unicode/utf8"
)

const suffix = " [REG]"

func TestApplyAppendsSuffix(t *testing.T) {
	t.Parallel()

	got := Apply("Alice", suffix)
	if got != "Alice [REG]" {
		t.Errorf("Apply = %q", got)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	t.Parallel()

	once := Apply("Alice", suffix)
	if twice := Apply(once, suffix); twice != once {
		t.Errorf("second Apply changed the name: %q -> %q", once, twice)
	}
}

func TestApplyTruncatesLongNames(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 40)
	got := Apply(long, suffix)
	if utf8.RuneCountInString(got) != MaxLength {
		t.Errorf("expected %d chars, got %d (%q)", MaxLength, utf8.RuneCountInString(got), got)
	}
	if !strings.HasSuffix(got, suffix) {
		t.Errorf("suffix lost after truncation: %q", got)
	}
}

func TestApplyCountsRunesNotBytes(t *testing.T) {
	t.Parallel()

	// 30 two-byte runes; byte-based truncation would cut mid-character.
	name := strings.Repeat("é", 30)
	got := Apply(name, suffix)
	if utf8.RuneCountInString(got) != MaxLength {
		t.Errorf("expected %d runes, got %d", MaxLength, utf8.RuneCountInString(got))
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncation produced invalid UTF-8: %q", got)
	}
}

func TestApplyEmptySuffixNoop(t *testing.T) {
	t.Parallel()

	if got := Apply("Alice", ""); got != "Alice" {
		t.Errorf("empty suffix must not change the name, got %q", got)
	}
}

func TestStripRemovesSuffix(t *testing.T) {
	t.Parallel()

	if got := Strip("Alice [REG]", suffix, "alice"); got != "Alice" {
		t.Errorf("Strip = %q", got)
	}
}

func TestStripWithoutSuffixNoop(t *testing.T) {
	t.Parallel()

	if got := Strip("Alice", suffix, "alice"); got != "Alice" {
		t.Errorf("Strip on unsuffixed name = %q", got)
	}
}

func TestStripEmptyResultFallsBack(t *testing.T) {
	t.Parallel()

	if got := Strip(strings.TrimPrefix(suffix, " "), suffix, "alice"); got != strings.TrimPrefix(suffix, " ") {
		// Name is "[REG]" which does not carry the leading-space suffix.
		t.Errorf("unexpected strip: %q", got)
	}
	if got := Strip(" "+strings.TrimPrefix(suffix, " "), suffix, "alice"); got != "alice" {
		t.Errorf("expected fallback username, got %q", got)
	}
}
