package utils

import (
	"testing"
	"time"

	"github.com/katalogbuku/backend/models"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Melville,  Herman ", "melville, herman"},
		{"  MOBY DICK  ", "moby dick"},
		{"", ""},
		{"\tTom\n Sawyer", "tom sawyer"},
	}
	for _, tt := range tests {
		if got := NormalizeKey(tt.in); got != tt.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSetMatchKeys_StripsISBNHyphens(t *testing.T) {
	b := &models.Book{Title: "Moby Dick", Author: "Melville", ISBN: "978-1-234"}
	SetMatchKeys(b)
	if b.ISBNKey != "9781234" {
		t.Errorf("isbnKey = %q, want 9781234", b.ISBNKey)
	}
}

func TestApplyDefaults(t *testing.T) {
	b := &models.Book{Title: "Moby Dick", Author: "Melville, Herman"}
	ApplyDefaults(b)
	if b.Edition != "1" {
		t.Errorf("edition = %q, want 1", b.Edition)
	}
	if b.Source != "donation" {
		t.Errorf("source = %q, want donation", b.Source)
	}
	if b.ExemplarCount != 1 {
		t.Errorf("exemplarCount = %d, want 1", b.ExemplarCount)
	}
	if b.Level != "" {
		t.Errorf("level = %q, want empty", b.Level)
	}
	if b.InputDate != time.Now().Format("2006-01-02") {
		t.Errorf("inputDate = %q, want today", b.InputDate)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	b := &models.Book{
		Title: "Moby Dick", Author: "Melville, Herman",
		Edition: "3", Source: "purchase", InputDate: "2026-01-15", ExemplarCount: 4,
	}
	ApplyDefaults(b)
	if b.Edition != "3" || b.Source != "purchase" || b.InputDate != "2026-01-15" || b.ExemplarCount != 4 {
		t.Errorf("ApplyDefaults overwrote explicit values: %+v", b)
	}
}

func keyed(title, author, isbn string) models.Book {
	b := models.Book{Title: title, Author: author, ISBN: isbn, ExemplarCount: 1}
	SetMatchKeys(&b)
	return b
}

func TestBooksMatch(t *testing.T) {
	existing := keyed("Moby Dick", "Melville, Herman", "999")

	titleAuthor := keyed("MOBY DICK", "melville,  herman", "123")
	if !BooksMatch(&titleAuthor, &existing) {
		t.Error("title+author match should suffice despite differing ISBN")
	}

	isbnOnly := keyed("Different Title", "Someone Else", "999")
	if !BooksMatch(&isbnOnly, &existing) {
		t.Error("ISBN match should suffice despite differing title/author")
	}

	noMatch := keyed("Tom Sawyer", "Twain, Mark", "123")
	if BooksMatch(&noMatch, &existing) {
		t.Error("unrelated records should not match")
	}

	emptyISBN := keyed("Tom Sawyer", "Twain, Mark", "")
	other := keyed("Another", "Author", "")
	if BooksMatch(&emptyISBN, &other) {
		t.Error("two empty ISBNs should not match")
	}
}

func TestFilterBooks(t *testing.T) {
	books := []models.Book{
		{Title: "Moby Dick", Author: "Melville, Herman", Subject: "Whaling"},
		{Title: "Tom Sawyer", Author: "Twain, Mark", Subject: "Adventure"},
		{Title: "Whale Biology", Author: "Doe, Jane", Subject: "Marine life"},
	}
	got := FilterBooks(books, "whal")
	if len(got) != 2 {
		t.Fatalf("filtered = %d, want 2", len(got))
	}
	if got[0].Title != "Moby Dick" || got[1].Title != "Whale Biology" {
		t.Errorf("unexpected filter result: %q, %q", got[0].Title, got[1].Title)
	}
	if n := len(FilterBooks(books, "")); n != 3 {
		t.Errorf("empty query filtered = %d, want 3", n)
	}
	if n := len(FilterBooks(books, "TWAIN")); n != 1 {
		t.Errorf("author search filtered = %d, want 1", n)
	}
}

func TestSortBooks(t *testing.T) {
	books := []models.Book{keyed("b", "x", ""), keyed("c", "y", ""), keyed("a", "z", "")}

	SortBooks(books, "title", "asc")
	if books[0].Title != "a" || books[2].Title != "c" {
		t.Errorf("asc sort order = %q %q %q", books[0].Title, books[1].Title, books[2].Title)
	}

	SortBooks(books, "title", "desc")
	if books[0].Title != "c" || books[2].Title != "a" {
		t.Errorf("desc sort order = %q %q %q", books[0].Title, books[1].Title, books[2].Title)
	}

	// Unknown field leaves order untouched (the "unsorted" toggle state).
	before := []string{books[0].Title, books[1].Title, books[2].Title}
	SortBooks(books, "nonsense", "asc")
	for i, b := range books {
		if b.Title != before[i] {
			t.Errorf("unknown sort field reordered books: %v", books)
		}
	}
}

func TestGroupByWork(t *testing.T) {
	a1 := keyed("Moby Dick", "Melville, Herman", "999")
	a2 := keyed("moby dick", "MELVILLE, HERMAN", "999")
	a2.ExemplarCount = 2
	b := keyed("Tom Sawyer", "Twain, Mark", "")

	grouped := GroupByWork([]models.Book{a1, a2, b})
	if len(grouped) != 2 {
		t.Fatalf("groups = %d, want 2", len(grouped))
	}
	if grouped[0].ExemplarCount != 3 {
		t.Errorf("grouped exemplar count = %d, want 3", grouped[0].ExemplarCount)
	}
	if grouped[1].Title != "Tom Sawyer" {
		t.Errorf("second group = %q, want Tom Sawyer", grouped[1].Title)
	}
}
