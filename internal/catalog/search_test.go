package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfkeeper/internal/catalog"
)

func titles(books []catalog.Book) []string {
	out := make([]string, 0, len(books))
	for _, b := range books {
		out = append(out, b.Title)
	}
	return out
}

func TestCatalog_SearchByAuthorAndGenre(t *testing.T) {
	c := catalog.New()
	t.Cleanup(func() { _ = c.Close() })

	c.Add("War and Peace", "Leo Tolstoy", "Historical Fiction")
	c.Add("The Hobbit", "J.R.R. Tolkien", "Fantasy")
	c.Add("Anna Karenina", "Leo Tolstoy", "Fiction")

	res, err := c.Search("tolstoy")
	require.NoError(t, err)
	assert.Equal(t, []string{"War and Peace", "Anna Karenina"}, titles(res))

	res, err = c.Search("Fantasy")
	require.NoError(t, err)
	assert.Equal(t, []string{"The Hobbit"}, titles(res))
}

func TestCatalog_SearchTracksAddAndRemove(t *testing.T) {
	c := catalog.New()
	t.Cleanup(func() { _ = c.Close() })

	odyssey := c.Add("The Odyssey", "Homer", "Epic")

	res, err := c.Search("homer")
	require.NoError(t, err)
	require.Len(t, res, 1)

	c.Add("The Iliad", "Homer", "Epic")
	res, err = c.Search("homer")
	require.NoError(t, err)
	assert.Equal(t, []string{"The Odyssey", "The Iliad"}, titles(res))

	_, err = c.Remove(odyssey.ID)
	require.NoError(t, err)
	res, err = c.Search("homer")
	require.NoError(t, err)
	assert.Equal(t, []string{"The Iliad"}, titles(res))
}

func TestCatalog_SearchReflectsLoanStatus(t *testing.T) {
	c := catalog.New()
	t.Cleanup(func() { _ = c.Close() })

	b := c.Add("Moby Dick", "Herman Melville", "Adventure")
	require.NoError(t, c.MarkBorrowed(b.ID))

	res, err := c.Search("melville")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.True(t, res[0].Borrowed)
}

func TestCatalog_SearchEmptyQuery(t *testing.T) {
	c := catalog.New()
	c.Add("Ulysses", "James Joyce", "Modernist")

	res, err := c.Search("   ")
	require.NoError(t, err)
	assert.Empty(t, res)
}
