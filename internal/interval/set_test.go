package interval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/structuredgen/gbnf/internal/interval"
)

func ranges[K int32 | int](s *interval.Set[K]) []interval.Range[K] {
	var out []interval.Range[K]
	for r := range s.Ranges() {
		out = append(out, r)
	}
	return out
}

func TestInsertDisjoint(t *testing.T) {
	t.Parallel()

	var s interval.Set[int32]
	s.Insert('a', 'z')
	s.Insert('0', '9')
	s.Insert('A', 'Z')

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []interval.Range[int32]{
		{Start: '0', End: '9'},
		{Start: 'A', End: 'Z'},
		{Start: 'a', End: 'z'},
	}, ranges(&s))
}

func TestInsertCoalesce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ins  [][2]int
		want []interval.Range[int]
	}{
		{
			name: "overlapping",
			ins:  [][2]int{{1, 5}, {3, 8}},
			want: []interval.Range[int]{{Start: 1, End: 8}},
		},
		{
			name: "adjacent left",
			ins:  [][2]int{{5, 8}, {1, 4}},
			want: []interval.Range[int]{{Start: 1, End: 8}},
		},
		{
			name: "adjacent right",
			ins:  [][2]int{{1, 4}, {5, 8}},
			want: []interval.Range[int]{{Start: 1, End: 8}},
		},
		{
			name: "bridge",
			ins:  [][2]int{{1, 2}, {6, 7}, {3, 5}},
			want: []interval.Range[int]{{Start: 1, End: 7}},
		},
		{
			name: "subset",
			ins:  [][2]int{{1, 10}, {3, 5}},
			want: []interval.Range[int]{{Start: 1, End: 10}},
		},
		{
			name: "superset",
			ins:  [][2]int{{3, 5}, {1, 10}},
			want: []interval.Range[int]{{Start: 1, End: 10}},
		},
		{
			name: "swallow many",
			ins:  [][2]int{{1, 2}, {4, 5}, {7, 8}, {10, 11}, {0, 20}},
			want: []interval.Range[int]{{Start: 0, End: 20}},
		},
		{
			name: "gap preserved",
			ins:  [][2]int{{1, 2}, {4, 5}},
			want: []interval.Range[int]{{Start: 1, End: 2}, {Start: 4, End: 5}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var s interval.Set[int]
			for _, in := range tc.ins {
				s.Insert(in[0], in[1])
			}
			assert.Equal(t, tc.want, ranges(&s))
		})
	}
}

func TestQueries(t *testing.T) {
	t.Parallel()

	var s interval.Set[int32]
	s.Insert('a', 'f')
	s.Insert('0', '9')

	assert.True(t, s.Contains('a'))
	assert.True(t, s.Contains('c'))
	assert.True(t, s.Contains('f'))
	assert.False(t, s.Contains('g'))
	assert.False(t, s.Contains(' '))

	assert.True(t, s.Overlaps('f', 'z'))
	assert.True(t, s.Overlaps(' ', '0'))
	assert.False(t, s.Overlaps('g', 'z'))
	assert.False(t, s.Overlaps(':', '@'))

	assert.True(t, s.Covers('b', 'e'))
	assert.True(t, s.Covers('a', 'f'))
	assert.False(t, s.Covers('a', 'g'))
	assert.False(t, s.Covers('0', 'a'))

	assert.False(t, (&interval.Set[int32]{}).Overlaps(0, 100))
}

func TestInsertPanics(t *testing.T) {
	t.Parallel()

	var s interval.Set[int]
	assert.Panics(t, func() { s.Insert(2, 1) })
}
