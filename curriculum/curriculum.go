/*
Package curriculum defines the fixed, ordered sequence of chapters a reader
works through.

PURPOSE:
  Every "next chapter" computation in the engine is driven by curriculum
  order. This package flattens the (book, chapter-count) table into a single
  indexed sequence and answers position lookups in O(1).

KEY CONCEPTS:
  - Book: a named unit with chapters 1..Chapters (no gaps)
  - ChapterRef: identity key (book + chapter) used everywhere
  - Curriculum: immutable ordered list of books plus its flattened index

USAGE:
  c := curriculum.Standard()          // 66 books, 1189 chapters
  i, ok := c.IndexOf(curriculum.ChapterRef{Book: "Ruth", Chapter: 2})
  next, ok := c.At(i + 1)

SEE ALSO:
  - standard.go: the canonical 66-book table
  - progress/ledger.go: ledger keyed by ChapterRef
*/
package curriculum

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// TYPES
// =============================================================================

// Book is a single curriculum entry.
type Book struct {
	Name     string `yaml:"name" json:"name"`
	Chapters int    `yaml:"chapters" json:"chapters"`
}

// ChapterRef identifies one chapter. Two refs are equal iff both fields match.
type ChapterRef struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
}

func (r ChapterRef) String() string { return fmt.Sprintf("%s %d", r.Book, r.Chapter) }

// Curriculum is immutable after construction and safe for concurrent reads.
type Curriculum struct {
	books    []Book
	flat     []ChapterRef
	index    map[ChapterRef]int
	bookByID map[string]int
}

var (
	ErrEmptyBookName   = errors.New("book name is empty")
	ErrDuplicateBook   = errors.New("duplicate book")
	ErrInvalidChapters = errors.New("chapter count must be positive")
)

// New builds a curriculum from an ordered book list.
func New(books []Book) (*Curriculum, error) {
	c := &Curriculum{
		books:    make([]Book, 0, len(books)),
		index:    make(map[ChapterRef]int),
		bookByID: make(map[string]int, len(books)),
	}

	for _, b := range books {
		if b.Name == "" {
			return nil, ErrEmptyBookName
		}
		if b.Chapters <= 0 {
			return nil, fmt.Errorf("%w: %s has %d", ErrInvalidChapters, b.Name, b.Chapters)
		}
		if _, dup := c.bookByID[b.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBook, b.Name)
		}
		c.bookByID[b.Name] = len(c.books)
		c.books = append(c.books, b)

		for ch := 1; ch <= b.Chapters; ch++ {
			ref := ChapterRef{Book: b.Name, Chapter: ch}
			c.index[ref] = len(c.flat)
			c.flat = append(c.flat, ref)
		}
	}
	return c, nil
}

// MustNew is New for static tables; it panics on an invalid table.
func MustNew(books []Book) *Curriculum {
	c, err := New(books)
	if err != nil {
		panic(err)
	}
	return c
}

// yamlFile is the on-disk layout for custom curricula.
type yamlFile struct {
	Books []Book `yaml:"books"`
}

// LoadYAML reads a curriculum from YAML:
//
//	books:
//	  - name: Genesis
//	    chapters: 50
func LoadYAML(r io.Reader) (*Curriculum, error) {
	var f yamlFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode curriculum: %w", err)
	}
	return New(f.Books)
}

// =============================================================================
// LOOKUPS
// =============================================================================

// Len is the total number of chapters.
func (c *Curriculum) Len() int { return len(c.flat) }

// Books returns a copy of the ordered book list.
func (c *Curriculum) Books() []Book {
	out := make([]Book, len(c.books))
	copy(out, c.books)
	return out
}

// At returns the chapter at a curriculum index.
func (c *Curriculum) At(i int) (ChapterRef, bool) {
	if i < 0 || i >= len(c.flat) {
		return ChapterRef{}, false
	}
	return c.flat[i], true
}

// IndexOf returns the curriculum index of ref.
func (c *Curriculum) IndexOf(ref ChapterRef) (int, bool) {
	i, ok := c.index[ref]
	return i, ok
}

// Contains reports whether ref is a valid chapter.
func (c *Curriculum) Contains(ref ChapterRef) bool {
	_, ok := c.index[ref]
	return ok
}

// ChapterCount returns the number of chapters in a book.
func (c *Curriculum) ChapterCount(book string) (int, bool) {
	i, ok := c.bookByID[book]
	if !ok {
		return 0, false
	}
	return c.books[i].Chapters, true
}

// Slice returns chapters in [from, to), clipped to the curriculum bounds.
// An empty or inverted range yields nil.
func (c *Curriculum) Slice(from, to int) []ChapterRef {
	if from < 0 {
		from = 0
	}
	if to > len(c.flat) {
		to = len(c.flat)
	}
	if from >= to {
		return nil
	}
	out := make([]ChapterRef, to-from)
	copy(out, c.flat[from:to])
	return out
}

// Flatten returns every chapter in curriculum order.
func (c *Curriculum) Flatten() []ChapterRef {
	return c.Slice(0, len(c.flat))
}

// BookChapters returns the chapters of a single book in order.
func (c *Curriculum) BookChapters(book string) []ChapterRef {
	n, ok := c.ChapterCount(book)
	if !ok {
		return nil
	}
	start := c.index[ChapterRef{Book: book, Chapter: 1}]
	return c.Slice(start, start+n)
}
