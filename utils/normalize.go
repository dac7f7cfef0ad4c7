package utils

import (
	"sort"
	"strings"
	"time"

	"github.com/katalogbuku/backend/models"
)

// NormalizeKey lowercases s and collapses runs of whitespace so that
// "Melville,  Herman " and "melville, herman" compare equal. Matching is
// plain string equality on these keys; no pattern matching is ever built
// from user input.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// SetMatchKeys recomputes the normalized match keys from the record's
// current fields. Call before any insert or full update.
func SetMatchKeys(b *models.Book) {
	b.TitleKey = NormalizeKey(b.Title)
	b.AuthorKey = NormalizeKey(b.Author)
	b.ISBNKey = NormalizeKey(strings.ReplaceAll(b.ISBN, "-", ""))
}

// ApplyDefaults fills the optional fields the cataloging rules default:
// edition "1", source "donation", exemplar count 1, and today's input date.
func ApplyDefaults(b *models.Book) {
	if strings.TrimSpace(b.Edition) == "" {
		b.Edition = "1"
	}
	if strings.TrimSpace(b.Source) == "" {
		b.Source = "donation"
	}
	if b.ExemplarCount < 1 {
		b.ExemplarCount = 1
	}
	if strings.TrimSpace(b.InputDate) == "" {
		b.InputDate = time.Now().Format("2006-01-02")
	}
}

// BooksMatch reports whether a candidate and an existing record refer to the
// same work: normalized title AND author equal, or non-empty ISBN equal.
func BooksMatch(candidate, existing *models.Book) bool {
	if candidate.TitleKey != "" && candidate.AuthorKey != "" &&
		candidate.TitleKey == existing.TitleKey && candidate.AuthorKey == existing.AuthorKey {
		return true
	}
	return candidate.ISBNKey != "" && candidate.ISBNKey == existing.ISBNKey
}

// FilterBooks returns the records whose title, author, or subject contains
// the query as a case-insensitive substring. An empty query returns books
// unchanged.
func FilterBooks(books []models.Book, query string) []models.Book {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return books
	}
	out := make([]models.Book, 0, len(books))
	for _, b := range books {
		if strings.Contains(strings.ToLower(b.Title), q) ||
			strings.Contains(strings.ToLower(b.Author), q) ||
			strings.Contains(strings.ToLower(b.Subject), q) {
			out = append(out, b)
		}
	}
	return out
}

// Sortable catalog columns. Anything else leaves storage order untouched.
var sortFields = map[string]func(b *models.Book) string{
	"title":           func(b *models.Book) string { return b.TitleKey },
	"author":          func(b *models.Book) string { return b.AuthorKey },
	"publisher":       func(b *models.Book) string { return strings.ToLower(b.Publisher) },
	"publicationYear": func(b *models.Book) string { return b.PublicationYear },
	"inputDate":       func(b *models.Book) string { return b.InputDate },
	"createdAt":       func(b *models.Book) string { return b.CreatedAt.Format(time.RFC3339Nano) },
}

// SortBooks sorts in place by the named column. order is "asc" or "desc";
// unknown fields are a no-op so the tri-state toggle's "unsorted" position
// maps to simply omitting the parameter.
func SortBooks(books []models.Book, field, order string) {
	keyOf, ok := sortFields[field]
	if !ok {
		return
	}
	desc := order == "desc"
	sort.SliceStable(books, func(i, j int) bool {
		a, b := keyOf(&books[i]), keyOf(&books[j])
		if desc {
			return a > b
		}
		return a < b
	})
}

// GroupByWork folds records whose normalized (title, author, isbn) triple is
// identical into one row, summing exemplar counts. The persisted counter is
// authoritative; grouping only collapses rows that became duplicates through
// later edits. Order of first appearance is preserved.
func GroupByWork(books []models.Book) []models.Book {
	type slot struct{ idx int }
	seen := make(map[[3]string]slot, len(books))
	out := make([]models.Book, 0, len(books))
	for _, b := range books {
		key := [3]string{b.TitleKey, b.AuthorKey, b.ISBNKey}
		if s, ok := seen[key]; ok {
			out[s.idx].ExemplarCount += b.ExemplarCount
			continue
		}
		seen[key] = slot{idx: len(out)}
		out = append(out, b)
	}
	return out
}
