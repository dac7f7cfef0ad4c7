package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/katalogbuku/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BookStore is the record storage the handlers depend on. *store.DB is the
// production implementation; tests inject an in-memory fake.
type BookStore interface {
	AllBooks(ctx context.Context) ([]models.Book, error)
	BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error)
	InsertBook(ctx context.Context, book *models.Book) (primitive.ObjectID, error)
	UpdateBook(ctx context.Context, id primitive.ObjectID, book *models.Book) (*models.Book, error)
	DeleteBook(ctx context.Context, id primitive.ObjectID) (scanKey string, err error)
	FindMatch(ctx context.Context, book *models.Book) (*models.Book, error)
	MergeOrInsert(ctx context.Context, book *models.Book) (*models.Book, bool, error)
}

// Recognizer extracts text from image bytes (the OCR adapter).
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Extractor maps OCR text to a bibliographic record (the AI adapter).
type Extractor interface {
	Extract(ctx context.Context, text string) (*models.Book, error)
}

// ScanArchive stores uploaded page scans. Optional; nil disables archiving.
type ScanArchive interface {
	UploadScan(ctx context.Context, body io.Reader, contentType string) (string, error)
	GetObject(ctx context.Context, key string) (body io.ReadCloser, contentType string, err error)
	Delete(ctx context.Context, key string) error
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
