package handlers

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/katalogbuku/backend/models"
	"github.com/katalogbuku/backend/service"
)

func exportFixture(t *testing.T) (*fakeStore, *chi.Mux) {
	t.Helper()
	fs := newFakeStore()
	for _, b := range []models.Book{
		{Title: "Tom Sawyer", Author: "Twain, Mark", Subject: "Adventure", ExemplarCount: 1, Level: "B"},
		{Title: "Moby Dick", Author: "Melville, Herman", Subject: "Whaling", ExemplarCount: 2, Level: "A"},
		{Title: "Whale Biology", Author: "Doe, Jane", Subject: "Marine life", ExemplarCount: 1, Level: "C"},
	} {
		book := b
		if _, err := fs.InsertBook(context.Background(), &book); err != nil {
			t.Fatal(err)
		}
	}
	h := &ExportHandler{Store: fs}
	r := chi.NewRouter()
	r.Get("/api/books/export", h.Export)
	return fs, r
}

func TestExport_CSVRowCountAndOrder(t *testing.T) {
	_, r := exportFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/books/export?format=csv", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q, want text/csv", ct)
	}
	rows, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4 (header + 3 records)", len(rows))
	}
	for i, col := range service.ExportColumns {
		if rows[0][i] != col {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], col)
		}
	}
	// Export orders by title.
	titles := []string{rows[1][3], rows[2][3], rows[3][3]}
	want := []string{"Moby Dick", "Tom Sawyer", "Whale Biology"}
	for i := range want {
		if titles[i] != want[i] {
			t.Errorf("row %d title = %q, want %q", i+1, titles[i], want[i])
		}
	}
}

func TestExport_FilterAndSelection(t *testing.T) {
	fs, r := exportFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/books/export?format=csv&q=whal", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	rows, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("filtered rows = %d, want 3 (header + 2 records)", len(rows))
	}

	books, _ := fs.AllBooks(context.Background())
	var selected string
	for _, b := range books {
		if b.Title == "Moby Dick" {
			selected = b.ID.Hex()
		}
	}
	req = httptest.NewRequest(http.MethodGet, "/api/books/export?format=csv&ids="+selected, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	rows, err = csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("selected rows = %d, want 2 (header + 1 record)", len(rows))
	}
	if rows[1][3] != "Moby Dick" {
		t.Errorf("selected title = %q, want Moby Dick", rows[1][3])
	}
}

func TestExport_XLSXIsDefault(t *testing.T) {
	_, r := exportFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/books/export", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	ct := w.Header().Get("Content-Type")
	if !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("content type = %q, want xlsx", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, ".xlsx") {
		t.Errorf("content disposition = %q, want .xlsx filename", cd)
	}
}

func TestExport_UnsupportedFormat(t *testing.T) {
	_, r := exportFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/books/export?format=pdf", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
