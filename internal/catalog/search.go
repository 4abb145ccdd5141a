// internal/catalog/search.go
package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
)

// searchDocument is what gets indexed for each book.
type searchDocument struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Genre  string `json:"genre"`
}

// searchIndex keeps an in-memory bleve index in step with the catalog.
// Any failed incremental update marks it stale and the next query rebuilds it
// from the catalog, so Add and Remove never fail because of the index.
type searchIndex struct {
	idx   bleve.Index
	stale bool
}

func (s *searchIndex) put(b Book) {
	if s.idx == nil || s.stale {
		s.stale = true
		return
	}
	if err := s.idx.Index(docID(b.ID), toDocument(b)); err != nil {
		s.stale = true
	}
}

func (s *searchIndex) drop(id int) {
	if s.idx == nil || s.stale {
		s.stale = true
		return
	}
	if err := s.idx.Delete(docID(id)); err != nil {
		s.stale = true
	}
}

func (s *searchIndex) rebuild(books []Book) error {
	if s.idx != nil {
		_ = s.idx.Close()
		s.idx = nil
	}

	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return fmt.Errorf("create search index: %w", err)
	}

	batch := idx.NewBatch()
	for _, b := range books {
		if err := batch.Index(docID(b.ID), toDocument(b)); err != nil {
			_ = idx.Close()
			return fmt.Errorf("index book %d: %w", b.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return fmt.Errorf("apply index batch: %w", err)
	}

	s.idx = idx
	s.stale = false
	return nil
}

func (s *searchIndex) close() error {
	if s.idx == nil {
		return nil
	}
	err := s.idx.Close()
	s.idx = nil
	s.stale = true
	return err
}

// Search matches query against title, author and genre. Results keep
// catalog order. An empty query matches nothing.
func (c *Catalog) Search(query string) ([]Book, error) {
	query = strings.TrimSpace(query)
	if query == "" || len(c.books) == 0 {
		return []Book{}, nil
	}

	if c.index.idx == nil || c.index.stale {
		if err := c.index.rebuild(c.books); err != nil {
			return nil, err
		}
	}

	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = len(c.books)
	res, err := c.index.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}

	hits := make(map[string]struct{}, len(res.Hits))
	for _, h := range res.Hits {
		hits[h.ID] = struct{}{}
	}

	out := make([]Book, 0, len(hits))
	for _, b := range c.books {
		if _, ok := hits[docID(b.ID)]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// Close releases the search index.
func (c *Catalog) Close() error {
	return c.index.close()
}

func docID(id int) string {
	return strconv.Itoa(id)
}

func toDocument(b Book) searchDocument {
	return searchDocument{Title: b.Title, Author: b.Author, Genre: b.Genre}
}
