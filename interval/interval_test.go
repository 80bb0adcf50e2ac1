package interval

import (
	"strings"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestContigOrder(t *testing.T) {
	order := NewContigOrder([]string{"chr1", "chr2", "chr10"})
	expect.True(t, order.LessChrom("chr2", "chr10"))
	expect.False(t, order.LessChrom("chr10", "chr2"))
	// Ranked contigs sort before unranked ones.
	expect.True(t, order.LessChrom("chr10", "chrUn_gl000220"))
	// Unranked contigs fall back to lexical order.
	expect.True(t, order.LessChrom("chrUn_gl000220", "chrUn_gl000221"))

	var lexical *ContigOrder
	expect.True(t, lexical.LessChrom("chr1", "chr10"))
	expect.True(t, lexical.LessChrom("chr10", "chr2"))
}

func TestSortAndLess(t *testing.T) {
	order := NewContigOrder([]string{"chr1", "chr2"})
	entries := []Entry{
		{"chr2", 5, 10},
		{"chr1", 100, 300},
		{"chr1", 100, 200},
		{"chr1", 50, 60},
	}
	order.Sort(entries)
	expect.EQ(t, entries, []Entry{
		{"chr1", 50, 60},
		{"chr1", 100, 200},
		{"chr1", 100, 300},
		{"chr2", 5, 10},
	})
	expect.True(t, order.IsSorted(entries))
}

func TestMergeWithin(t *testing.T) {
	order := NewContigOrder([]string{"chr1", "chr2"})
	tests := []struct {
		entries []Entry
		dist    PosType
		want    []Entry
	}{
		// Adjacent candidates within merge distance collapse to one interval.
		{
			entries: []Entry{{"chr1", 100, 150}, {"chr1", 160, 200}},
			dist:    500,
			want:    []Entry{{"chr1", 100, 200}},
		},
		// dist=0 merges only touching/overlapping intervals.
		{
			entries: []Entry{{"chr1", 100, 150}, {"chr1", 150, 200}, {"chr1", 202, 210}},
			dist:    0,
			want:    []Entry{{"chr1", 100, 200}, {"chr1", 202, 210}},
		},
		// Merging never crosses a chromosome boundary.
		{
			entries: []Entry{{"chr1", 100, 150}, {"chr2", 150, 200}},
			dist:    1000,
			want:    []Entry{{"chr1", 100, 150}, {"chr2", 150, 200}},
		},
		// Contained interval does not extend the union.
		{
			entries: []Entry{{"chr1", 100, 500}, {"chr1", 200, 300}},
			dist:    0,
			want:    []Entry{{"chr1", 100, 500}},
		},
		{entries: nil, dist: 1, want: nil},
	}
	for _, test := range tests {
		got, err := MergeWithin(order, test.entries, test.dist, nil)
		assert.NoError(t, err)
		expect.EQ(t, got, test.want)
		for _, e := range got {
			expect.True(t, e.Start < e.End && e.Start >= 0)
		}
	}
}

func TestMergeWithinGroups(t *testing.T) {
	order := NewContigOrder([]string{"chr1"})
	entries := []Entry{{"chr1", 10, 20}, {"chr1", 21, 30}, {"chr1", 600, 700}}
	type span struct{ first, last int }
	var groups []span
	merged, err := MergeWithin(order, entries, 1, func(first, last int) {
		groups = append(groups, span{first, last})
	})
	assert.NoError(t, err)
	expect.EQ(t, merged, []Entry{{"chr1", 10, 30}, {"chr1", 600, 700}})
	expect.EQ(t, groups, []span{{0, 1}, {2, 2}})
}

func TestMergeWithinRejectsUnsorted(t *testing.T) {
	order := NewContigOrder([]string{"chr1"})
	_, err := MergeWithin(order, []Entry{{"chr1", 200, 300}, {"chr1", 100, 150}}, 0, nil)
	expect.True(t, err != nil)
	expect.True(t, strings.Contains(err.Error(), "unsorted"))
}

func TestSlop(t *testing.T) {
	lengths := map[string]PosType{"chr1": 10000}
	sloped, err := Slop([]Entry{{"chr1", 500, 600}, {"chr1", 9000, 9950}}, 1000, lengths)
	assert.NoError(t, err)
	// Clipped to [0, chromosome length).
	expect.EQ(t, sloped, []Entry{{"chr1", 0, 1600}, {"chr1", 8000, 10000}})

	_, err = Slop([]Entry{{"chrMissing", 0, 10}}, 1000, lengths)
	expect.True(t, err != nil)
}

func TestTile(t *testing.T) {
	order := NewContigOrder([]string{"chr1", "chr2"})
	lengths := map[string]PosType{"chr1": 250, "chr2": 80}
	windows := Tile(order, lengths, 100, 50)
	expect.EQ(t, windows, []Entry{
		{"chr1", 0, 100},
		{"chr1", 50, 150},
		{"chr1", 100, 200},
		{"chr1", 150, 250},
		{"chr2", 0, 80},
	})
}

func TestKMerge(t *testing.T) {
	order := NewContigOrder([]string{"chr1", "chr2"})
	streams := [][]Entry{
		{{"chr1", 10, 20}, {"chr1", 500, 600}, {"chr2", 5, 6}},
		{{"chr1", 10, 20}, {"chr1", 30, 40}},
		{},
		{{"chr2", 1, 2}},
	}
	var got []Entry
	var sources []int
	KMerge(order, len(streams),
		func(i int) int { return len(streams[i]) },
		func(i, j int) Entry { return streams[i][j] },
		func(i, j int) {
			got = append(got, streams[i][j])
			sources = append(sources, i)
		})
	expect.EQ(t, got, []Entry{
		{"chr1", 10, 20},
		{"chr1", 10, 20},
		{"chr1", 30, 40},
		{"chr1", 500, 600},
		{"chr2", 1, 2},
		{"chr2", 5, 6},
	})
	// Stable: ties emit the record from the lower-numbered stream first.
	expect.EQ(t, sources, []int{0, 1, 1, 0, 3, 0})
}

func TestTreeSetAndSubtract(t *testing.T) {
	exclude, err := NewTreeSet([]Entry{{"chr1", 100, 200}, {"chr1", 500, 600}, {"chr2", 0, 50}})
	assert.NoError(t, err)

	expect.True(t, exclude.AnyOverlap(Entry{"chr1", 150, 160}))
	expect.True(t, exclude.AnyOverlap(Entry{"chr1", 199, 300}))
	expect.False(t, exclude.AnyOverlap(Entry{"chr1", 200, 500}))
	expect.False(t, exclude.AnyOverlap(Entry{"chr3", 0, 1000}))

	kept := Subtract([]Entry{{"chr1", 0, 100}, {"chr1", 150, 250}, {"chr2", 40, 60}}, exclude)
	expect.EQ(t, kept, []Entry{{"chr1", 0, 100}})
}

func TestTreeSetOverlapsOrder(t *testing.T) {
	entries := []Entry{{"chr1", 0, 10}, {"chr1", 5, 25}, {"chr1", 20, 30}}
	set, err := NewTreeSet(entries)
	assert.NoError(t, err)
	var ids []int
	set.Overlaps(Entry{"chr1", 0, 30}, func(idx int, overlap Entry) {
		ids = append(ids, idx)
		expect.EQ(t, overlap, entries[idx])
	})
	expect.EQ(t, ids, []int{0, 1, 2})
}

func TestReadBED(t *testing.T) {
	in := "chr1\t100\t200\tfoo\n\nchr2\t0\t50\n"
	entries, err := ReadBED(strings.NewReader(in))
	assert.NoError(t, err)
	expect.EQ(t, entries, []Entry{{"chr1", 100, 200}, {"chr2", 0, 50}})

	_, err = ReadBED(strings.NewReader("chr1\t200\t100\n"))
	expect.True(t, err != nil)
	_, err = ReadBED(strings.NewReader("chr1\t100\n"))
	expect.True(t, err != nil)
}
