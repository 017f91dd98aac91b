package formula

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		input string
		want  Pos
	}{
		{"A1", Pos{X: 0, Y: 0}},
		{"B3", Pos{X: 1, Y: 2}},
		{"z10", Pos{X: 25, Y: 9}},
		{"AA1", Pos{X: 26, Y: 0}},
		{"AZ2", Pos{X: 51, Y: 1}},
		{"BA2", Pos{X: 52, Y: 1}},
		{"ZZ1", Pos{X: 701, Y: 0}},
		{"AAA1", Pos{X: 702, Y: 0}},
		{"A4294967296", Pos{X: 0, Y: math.MaxUint32}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAddress(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "A", "1", "A0", "1A", "A1B", "A-1", "A4294967297", "ZZZZZZZZ1"} {
		t.Run("Invalid/"+bad, func(t *testing.T) {
			_, err := ParseAddress(bad)
			assert.Error(t, err)
		})
	}
}

func TestPosStringRoundTrip(t *testing.T) {
	for _, pos := range []Pos{{0, 0}, {25, 0}, {26, 7}, {701, 99}, {702, 0}, {math.MaxUint32, math.MaxUint32}} {
		s := pos.String()
		got, err := ParseAddress(s)
		require.NoError(t, err, s)
		assert.Equal(t, pos, got, s)
	}
	assert.Equal(t, "B3", Pos{X: 1, Y: 2}.String())
	assert.Equal(t, "AA1", Pos{X: 26}.String())
}

func TestParseRange(t *testing.T) {
	got, err := ParseRange("B2:A1")
	require.NoError(t, err)
	want := []Pos{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseRange mismatch (-want +got):\n%s", diff)
	}

	single, err := ParseRange(" C4 ")
	require.NoError(t, err)
	assert.Equal(t, []Pos{{2, 3}}, single)

	_, err = ParseRange("A1:")
	assert.Error(t, err)

	_, err = ParseRange("A1:ZZ9999")
	assert.ErrorContains(t, err, "covers more than")

	corner := Pos{X: math.MaxUint32, Y: math.MaxUint32}.String()
	_, err = ParseRange("A1:" + corner)
	assert.ErrorContains(t, err, "covers more than", "a 2^32 by 2^32 range must not wrap to zero cells")

	edge, err := ParseRange("A1:A1048576")
	require.NoError(t, err)
	assert.Len(t, edge, MaxRangeCells)
}

func TestComparePos(t *testing.T) {
	assert.Equal(t, -1, ComparePos(Pos{X: 5, Y: 0}, Pos{X: 0, Y: 1}))
	assert.Equal(t, 1, ComparePos(Pos{X: 1, Y: 1}, Pos{X: 0, Y: 1}))
	assert.Equal(t, 0, ComparePos(Pos{X: 1, Y: 1}, Pos{X: 1, Y: 1}))
}
