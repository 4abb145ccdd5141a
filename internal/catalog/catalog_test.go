package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"shelfkeeper/internal/catalog"
	"shelfkeeper/internal/errors"
)

func TestCatalog_AddAssignsIncreasingIDs(t *testing.T) {
	c := catalog.New()

	first := c.Add("1984", "George Orwell", "Dystopian")
	second := c.Add("The Hobbit", "J.R.R. Tolkien", "Fantasy")

	assert.Equal(t, 1, first.ID)
	assert.Equal(t, 2, second.ID)
	assert.False(t, first.Borrowed)
	assert.Equal(t, 2, c.Len())
}

func TestCatalog_IDsNotReusedAfterRemoval(t *testing.T) {
	c := catalog.New()
	c.Add("A", "a", "g")
	b := c.Add("B", "b", "g")

	_, err := c.Remove(b.ID)
	require.NoError(t, err)

	next := c.Add("C", "c", "g")
	assert.Equal(t, 3, next.ID)
}

func TestCatalog_RemoveTwiceReturnsNotFound(t *testing.T) {
	c := catalog.New()
	b := c.Add("A", "a", "g")

	_, err := c.Remove(b.ID)
	require.NoError(t, err)

	_, err = c.Remove(b.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCatalog_ListingKeepsInsertionOrder(t *testing.T) {
	c := catalog.New()
	a := c.Add("A", "a", "g")
	b := c.Add("B", "b", "g")
	d := c.Add("D", "d", "g")
	_, err := c.Remove(b.ID)
	require.NoError(t, err)
	require.NoError(t, c.MarkBorrowed(a.ID))

	all := c.All()
	require.Len(t, all, 2)
	assert.Equal(t, []int{a.ID, d.ID}, []int{all[0].ID, all[1].ID})

	available := c.Available()
	require.Len(t, available, 1)
	assert.Equal(t, d.ID, available[0].ID)
}

func TestCatalog_MarkBorrowedAndReturned(t *testing.T) {
	c := catalog.New()
	b := c.Add("A", "a", "g")

	require.NoError(t, c.MarkBorrowed(b.ID))
	assert.ErrorIs(t, c.MarkBorrowed(b.ID), errors.ErrUnavailable)

	got, err := c.Get(b.ID)
	require.NoError(t, err)
	assert.True(t, got.Borrowed)

	require.NoError(t, c.MarkReturned(b.ID))
	assert.ErrorIs(t, c.MarkReturned(b.ID), errors.ErrNotFound)

	got, err = c.Get(b.ID)
	require.NoError(t, err)
	assert.False(t, got.Borrowed)
}

func TestCatalog_MarkOnMissingBook(t *testing.T) {
	c := catalog.New()

	assert.ErrorIs(t, c.MarkBorrowed(42), errors.ErrUnavailable)
	assert.ErrorIs(t, c.MarkReturned(42), errors.ErrNotFound)
	_, err := c.Get(42)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCatalog_AccessorsReturnCopies(t *testing.T) {
	c := catalog.New()
	b := c.Add("A", "a", "g")

	all := c.All()
	all[0].Borrowed = true
	all[0].Title = "changed"

	got, err := c.Get(b.ID)
	require.NoError(t, err)
	assert.False(t, got.Borrowed)
	assert.Equal(t, "A", got.Title)
}

func TestCatalog_IDsStrictlyIncrease(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := catalog.New()
		last := 0
		seen := map[int]bool{}

		n := rapid.IntRange(1, 50).Draw(t, "n")
		for i := 0; i < n; i++ {
			if c.Len() > 0 && rapid.Bool().Draw(t, "remove") {
				all := c.All()
				victim := rapid.SampledFrom(all).Draw(t, "victim")
				if _, err := c.Remove(victim.ID); err != nil {
					t.Fatalf("remove %d: %v", victim.ID, err)
				}
				continue
			}
			b := c.Add(rapid.String().Draw(t, "title"), "author", "genre")
			if b.ID <= last {
				t.Fatalf("id %d not greater than previous %d", b.ID, last)
			}
			if seen[b.ID] {
				t.Fatalf("id %d assigned twice", b.ID)
			}
			seen[b.ID] = true
			last = b.ID
		}
	})
}
