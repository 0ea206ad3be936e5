package scrub

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterRecords(t *testing.T) {
	ids := NewIDSet("X1", "Y1")

	tests := []struct {
		name        string
		input       string
		wantOutput  string
		wantRemoved int
		wantMatches []string
	}{
		{
			name:        "drops rows with a matching field",
			input:       "id,desc\nX1,alpha\nZ9,beta\n",
			wantOutput:  "id,desc\nZ9,beta\n",
			wantRemoved: 1,
			wantMatches: []string{"X1"},
		},
		{
			name:        "matches in any column",
			input:       "id,owner\nA1,X1\nA2,ok\n",
			wantOutput:  "id,owner\nA2,ok\n",
			wantRemoved: 1,
			wantMatches: []string{"X1"},
		},
		{
			name:        "substring field does not match",
			input:       "id,desc\nX1extra,alpha\nprefixX1,beta\n",
			wantOutput:  "id,desc\nX1extra,alpha\nprefixX1,beta\n",
			wantRemoved: 0,
		},
		{
			name:        "one matching row with two hits counts once removed twice matched",
			input:       "id,owner\nX1,Y1\n",
			wantOutput:  "id,owner\n",
			wantRemoved: 1,
			wantMatches: []string{"X1", "Y1"},
		},
		{
			name:        "header row is never matched",
			input:       "X1,desc\nA1,alpha\n",
			wantOutput:  "X1,desc\nA1,alpha\n",
			wantRemoved: 0,
		},
		{
			name:        "header-only input passes through",
			input:       "id,desc\n",
			wantOutput:  "id,desc\n",
			wantRemoved: 0,
		},
		{
			name:        "empty input yields empty output",
			input:       "",
			wantOutput:  "",
			wantRemoved: 0,
		},
		{
			name:        "ragged rows survive",
			input:       "id,desc\nA1,alpha,extra\nB2\n",
			wantOutput:  "id,desc\nA1,alpha,extra\nB2\n",
			wantRemoved: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			var matches []string

			removed, err := FilterRecords(
				strings.NewReader(tt.input), &out, ids,
				func(id string) { matches = append(matches, id) })

			require.NoError(t, err)
			assert.Equal(t, tt.wantRemoved, removed)
			assert.Equal(t, tt.wantOutput, out.String())
			assert.Equal(t, tt.wantMatches, matches)
		})
	}
}

func TestFilterRecordsIdempotent(t *testing.T) {
	ids := NewIDSet("X1")
	input := "id,desc\nX1,alpha\nZ9,beta\n"

	var first strings.Builder
	removed, err := FilterRecords(strings.NewReader(input), &first, ids, nil)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	var second strings.Builder
	removed, err = FilterRecords(strings.NewReader(first.String()), &second, ids, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.Equal(t, first.String(), second.String())
}
