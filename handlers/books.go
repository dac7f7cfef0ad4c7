package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/katalogbuku/backend/models"
	"github.com/katalogbuku/backend/store"
	"github.com/katalogbuku/backend/utils"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BooksHandler struct {
	Store BookStore
	Scans ScanArchive // nil when no archive is configured
}

type listResponse struct {
	Success bool          `json:"success"`
	Books   []models.Book `json:"books"`
}

// List returns the catalog, optionally filtered (q), sorted (sortBy, order)
// and grouped by work (grouped=true).
func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.Store.AllBooks(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list books")
		http.Error(w, `{"success":false,"error":"failed to fetch books"}`, http.StatusInternalServerError)
		return
	}
	q := r.URL.Query()
	books = utils.FilterBooks(books, q.Get("q"))
	if q.Get("grouped") == "true" {
		books = utils.GroupByWork(books)
	}
	utils.SortBooks(books, q.Get("sortBy"), q.Get("order"))
	if books == nil {
		books = []models.Book{}
	}
	writeJSON(w, http.StatusOK, listResponse{Success: true, Books: books})
}

func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	book, err := h.Store.BookByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, `{"error":"book not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"failed to fetch book"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

type saveResponse struct {
	Success bool         `json:"success"`
	Merged  bool         `json:"merged"`
	Book    *models.Book `json:"book"`
}

// Create persists a reviewed record: merge into a duplicate (200) or insert
// with defaults (201).
func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var book models.Book
	if err := json.NewDecoder(r.Body).Decode(&book); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if field, ok := missingRequiredField(&book); ok {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "missing required field: " + field,
			"field":   field,
		})
		return
	}
	book.ID = primitive.NilObjectID
	book.Status = ""
	utils.ApplyDefaults(&book)

	saved, merged, err := h.Store.MergeOrInsert(r.Context(), &book)
	if err != nil {
		log.Error().Err(err).Str("title", book.Title).Msg("save book")
		http.Error(w, `{"success":false,"error":"failed to save book"}`, http.StatusInternalServerError)
		return
	}
	status := http.StatusCreated
	if merged {
		status = http.StatusOK
	}
	writeJSON(w, status, saveResponse{Success: true, Merged: merged, Book: saved})
}

// Update is a full-record overwrite of an existing entry.
func (h *BooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	var book models.Book
	if err := json.NewDecoder(r.Body).Decode(&book); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if field, ok := missingRequiredField(&book); ok {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "missing required field: " + field,
			"field":   field,
		})
		return
	}
	utils.ApplyDefaults(&book)
	updated, err := h.Store.UpdateBook(r.Context(), id, &book)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, `{"error":"book not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("id", id.Hex()).Msg("update book")
		http.Error(w, `{"success":false,"error":"failed to update book"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, saveResponse{Success: true, Book: updated})
}

// Delete removes a record. Deletion is idempotent: an absent id still
// reports success.
func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	scanKey, err := h.Store.DeleteBook(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("id", id.Hex()).Msg("delete book")
		http.Error(w, `{"success":false,"error":"failed to delete book"}`, http.StatusInternalServerError)
		return
	}
	if scanKey != "" && h.Scans != nil {
		if err := h.Scans.Delete(r.Context(), scanKey); err != nil {
			log.Warn().Err(err).Str("key", scanKey).Msg("delete archived scan")
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Scan streams the archived page scan the record was cataloged from.
func (h *BooksHandler) Scan(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	book, err := h.Store.BookByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, `{"error":"book not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"failed to fetch book"}`, http.StatusInternalServerError)
		return
	}
	if book.ScanKey == "" || h.Scans == nil {
		http.Error(w, `{"error":"no scan archived for this book"}`, http.StatusNotFound)
		return
	}
	body, contentType, err := h.Scans.GetObject(r.Context(), book.ScanKey)
	if err != nil {
		log.Error().Err(err).Str("key", book.ScanKey).Msg("fetch archived scan")
		http.Error(w, `{"error":"failed to fetch scan"}`, http.StatusInternalServerError)
		return
	}
	defer body.Close()
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := io.Copy(w, body); err != nil {
		log.Warn().Err(err).Str("key", book.ScanKey).Msg("stream archived scan")
	}
}

type checkDuplicateRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}

type checkDuplicateResponse struct {
	Exists bool         `json:"exists"`
	Book   *models.Book `json:"book,omitempty"`
}

// CheckDuplicate reports whether a candidate already has a matching record,
// returning the match when it does.
func (h *BooksHandler) CheckDuplicate(w http.ResponseWriter, r *http.Request) {
	var req checkDuplicateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	candidate := models.Book{Title: req.Title, Author: req.Author, ISBN: req.ISBN}
	match, err := h.Store.FindMatch(r.Context(), &candidate)
	if err != nil {
		log.Error().Err(err).Msg("check duplicate")
		http.Error(w, `{"success":false,"error":"failed to check for duplicates"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, checkDuplicateResponse{Exists: match != nil, Book: match})
}

func recordID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error":"invalid book id"}`, http.StatusBadRequest)
		return primitive.NilObjectID, false
	}
	return id, true
}

// Required on direct creation: the fields the catalog cannot match or file
// a record without.
func missingRequiredField(b *models.Book) (string, bool) {
	switch {
	case strings.TrimSpace(b.Title) == "":
		return "title", true
	case strings.TrimSpace(b.Author) == "":
		return "author", true
	case strings.TrimSpace(b.Level) == "":
		return "level", true
	}
	return "", false
}
