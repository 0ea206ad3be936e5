package scrub

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildReport(t *testing.T) {
	ids := NewIDSet("X1", "Y1")
	l := NewLedger(ids)
	l.Record("X1", "dbA")

	r := BuildReport(l, ids, []string{"dbA", "dbB"})

	assert.Equal(t, []string{"X1", "Y1"}, r.Identifiers())
	assert.Equal(t, []string{"dbA", "dbB"}, r.Databases())
	assert.True(t, r.Found("X1", "dbA"))
	assert.False(t, r.Found("X1", "dbB"))
	assert.False(t, r.Found("Y1", "dbA"))
}

func TestWriteTable(t *testing.T) {
	ids := NewIDSet("X1", "LONG-IDENTIFIER-1")
	l := NewLedger(ids)
	l.Record("X1", "dbA")

	r := BuildReport(l, ids, []string{"dbA", "dbB"})

	t.Run("plain output", func(t *testing.T) {
		var buf strings.Builder
		require.NoError(t, r.WriteTable(&buf, false))

		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		require.Len(t, lines, 3)

		assert.True(t, strings.HasPrefix(lines[0], "ID"))
		assert.Contains(t, lines[0], "dbA")
		assert.Contains(t, lines[0], "dbB")

		// Rows come out in identifier order.
		assert.True(t, strings.HasPrefix(lines[1], "LONG-IDENTIFIER-1"))
		assert.Equal(t, 2, strings.Count(lines[1], markMissing))
		assert.NotContains(t, lines[1], markFound)

		assert.True(t, strings.HasPrefix(lines[2], "X1"))
		assert.Contains(t, lines[2], markFound)
		assert.Contains(t, lines[2], markMissing)
		assert.NotContains(t, buf.String(), "\033[")
	})

	t.Run("colored output wraps the marks", func(t *testing.T) {
		var buf strings.Builder
		require.NoError(t, r.WriteTable(&buf, true))

		assert.Contains(t, buf.String(), ansiBlue+markFound+ansiReset)
		assert.Contains(t, buf.String(), ansiRed+markMissing+ansiReset)
	})

	t.Run("missing rows stay missing across a second render", func(t *testing.T) {
		var first, second strings.Builder
		require.NoError(t, r.WriteTable(&first, false))
		require.NoError(t, r.WriteTable(&second, false))

		assert.Equal(t, first.String(), second.String())
	})
}
