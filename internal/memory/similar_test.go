package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilarFixes(t *testing.T) {
	entries := []Entry{
		{Category: CategoryFix, Error: "undefined: NewServer in server_test.go", Fix: "export constructor"},
		{Category: CategoryDiscovery, Text: "undefined NewServer server_test"},
		{Category: CategoryFix, Error: "cannot find package github.com/foo/bar", Fix: "go mod tidy"},
		{Category: CategoryFix, Error: "undefined: NewServer", Fix: "newer fix"},
		{Category: CategoryFix, Text: "npm ERR! missing script: lint"},
	}

	got := SimilarFixes(entries, "server_test.go:12: undefined: NewServer", 3)
	require.Len(t, got, 2)
	assert.Equal(t, "export constructor", got[0].Fix)
	assert.Equal(t, "newer fix", got[1].Fix)

	got = SimilarFixes(entries, "npm ERR! missing script: lint", 3)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Text, "missing script")

	assert.Empty(t, SimilarFixes(entries, "completely different problem here", 3))
	assert.Empty(t, SimilarFixes(entries, "", 3))
}

func TestSimilarFixes_SkipsHarmful(t *testing.T) {
	entries := []Entry{
		{Category: CategoryFix, Error: "login_test.go expected 200 got 500", Fix: "skip the failing tests"},
		{Category: CategoryFix, Error: "login_test.go expected 200 got 500", Fix: "hash the password before compare"},
	}

	got := SimilarFixes(entries, "login_test.go:42: expected 200, got 500", 3)
	require.Len(t, got, 1)
	assert.Equal(t, "hash the password before compare", got[0].Fix)
}

func TestSimilarFixes_Limit(t *testing.T) {
	var entries []Entry
	for i := 0; i < 5; i++ {
		entries = append(entries, Entry{Category: CategoryFix, Error: "panic nil pointer dereference", Fix: "x"})
	}
	assert.Len(t, SimilarFixes(entries, "panic: nil pointer dereference", 3), 3)
}

func TestStore_FindSimilarFixes(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Append(Entry{Category: CategoryFix, Text: "vet: printf wrong type → use %d", Error: "vet: printf wrong type", Fix: "use %d"})
	require.NoError(t, err)

	got, err := s.FindSimilarFixes("go vet: printf format has wrong type", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "use %d", got[0].Fix)
}
