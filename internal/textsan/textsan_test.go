package textsan_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockanalysis/job-engine/internal/textsan"
)

func TestSanitizeNotesStripsControlCharsAndTrims(t *testing.T) {
	got := textsan.SanitizeNotes("  hello\x00world\n ", 500)
	require.Equal(t, "helloworld", got)
}

func TestSanitizeNotesCapsLength(t *testing.T) {
	long := strings.Repeat("a", 600)
	got := textsan.SanitizeNotes(long, 500)
	require.Len(t, got, 500)
}

func TestSanitizeNotesKeepsTabsAndNewlines(t *testing.T) {
	got := textsan.SanitizeNotes("line1\nline2\ttabbed", 500)
	require.Equal(t, "line1\nline2\ttabbed", got)
}
