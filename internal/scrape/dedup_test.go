package scrape

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
)

func TestIndexAddIfNew(t *testing.T) {
	t.Parallel()

	idx := NewIndex[Recruit]()
	a := Recruit{Name: "A", NationalRank: 1}
	b := Recruit{Name: "B", NationalRank: 2}

	assert.True(t, idx.AddIfNew(a))
	assert.False(t, idx.AddIfNew(a))
	assert.True(t, idx.AddIfNew(b))
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, []Recruit{a, b}, idx.Records())
}

func TestIndexMergeIsIdempotent(t *testing.T) {
	t.Parallel()

	idx := NewIndex[PortalEntry]()
	day := civil.Date{Year: 2026, Month: 1, Day: 5}
	page := []PortalEntry{
		{Name: "A", FromSchool: "X", Rating: 0.9, UpdateDate: day},
		{Name: "A", FromSchool: "X", Rating: 0.9, UpdateDate: day},
		{Name: "A", FromSchool: "Y", Rating: 0.9, UpdateDate: day},
	}

	assert.Equal(t, 2, idx.Merge(page))
	assert.Equal(t, 0, idx.Merge(page))
	assert.Equal(t, 2, idx.Len())
}

func TestIndexRecordsReturnsCopy(t *testing.T) {
	t.Parallel()

	idx := NewIndex[Recruit]()
	idx.AddIfNew(Recruit{Name: "A"})
	out := idx.Records()
	out[0].Name = "changed"
	assert.Equal(t, "A", idx.Records()[0].Name)
}
