package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/katalogbuku/backend/models"
	"github.com/katalogbuku/backend/service"
	"github.com/katalogbuku/backend/utils"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Enqueuer hands extraction work to the background pool.
type Enqueuer interface {
	EnqueueExtraction(id primitive.ObjectID, image []byte) error
}

type UploadHandler struct {
	Store      BookStore
	Recognizer Recognizer
	Extractor  Extractor
	Scans      ScanArchive // nil when no archive is configured
	Queue      Enqueuer    // nil disables the async path
	MaxBytes   int64
}

type uploadResponse struct {
	Success bool         `json:"success"`
	Book    *models.Book `json:"book"`
}

// Upload runs OCR and extraction over a page scan and returns the candidate
// record for review. Nothing is persisted; saving is a separate, explicit
// POST /api/books once the user confirms.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	image, contentType, ok := h.readImage(w, r)
	if !ok {
		return
	}

	text, err := h.Recognizer.Recognize(r.Context(), image)
	if err != nil {
		log.Error().Err(err).Msg("upload: ocr")
		http.Error(w, `{"success":false,"error":"`+ocrErrorMessage(err)+`"}`, http.StatusInternalServerError)
		return
	}

	book, err := h.Extractor.Extract(r.Context(), text)
	if errors.Is(err, service.ErrNoExtraction) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"success": false,
			"error":   "extraction did not produce usable data",
		})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("upload: extraction")
		http.Error(w, `{"success":false,"error":"analysis failed"}`, http.StatusInternalServerError)
		return
	}

	book.InputDate = time.Now().Format("2006-01-02")
	utils.ApplyDefaults(book)
	if h.Scans != nil {
		if key, err := h.Scans.UploadScan(r.Context(), bytes.NewReader(image), contentType); err == nil {
			book.ScanKey = key
		} else {
			log.Warn().Err(err).Msg("upload: scan archive")
		}
	}
	writeJSON(w, http.StatusOK, uploadResponse{Success: true, Book: book})
}

type asyncUploadResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Status  string `json:"status"`
}

// UploadAsync detaches extraction from the request: a placeholder record is
// created with status "processing" and a background job later fills it in
// (status "completed") or marks it "failed". Poll GET /api/books/{id}.
func (h *UploadHandler) UploadAsync(w http.ResponseWriter, r *http.Request) {
	if h.Queue == nil {
		http.Error(w, `{"error":"background extraction not configured"}`, http.StatusServiceUnavailable)
		return
	}
	image, contentType, ok := h.readImage(w, r)
	if !ok {
		return
	}

	placeholder := &models.Book{
		InputDate:     time.Now().Format("2006-01-02"),
		Status:        models.StatusProcessing,
		ExemplarCount: 1,
	}
	if h.Scans != nil {
		if key, err := h.Scans.UploadScan(r.Context(), bytes.NewReader(image), contentType); err == nil {
			placeholder.ScanKey = key
		} else {
			log.Warn().Err(err).Msg("upload: scan archive")
		}
	}
	id, err := h.Store.InsertBook(r.Context(), placeholder)
	if err != nil {
		log.Error().Err(err).Msg("upload: create placeholder")
		http.Error(w, `{"success":false,"error":"failed to create record"}`, http.StatusInternalServerError)
		return
	}

	if err := h.Queue.EnqueueExtraction(id, image); err != nil {
		if _, delErr := h.Store.DeleteBook(r.Context(), id); delErr != nil {
			log.Error().Err(delErr).Str("id", id.Hex()).Msg("upload: remove orphaned placeholder")
		}
		http.Error(w, `{"success":false,"error":"extraction queue is full, try again later"}`, http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, asyncUploadResponse{
		Success: true,
		ID:      id.Hex(),
		Status:  models.StatusProcessing,
	})
}

// readImage parses the multipart form and returns the image bytes, rejecting
// anything that is not a JPEG or PNG.
func (h *UploadHandler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	if h.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)
	}
	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		http.Error(w, `{"error":"failed to parse multipart form"}`, http.StatusBadRequest)
		return nil, "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, `{"error":"missing file"}`, http.StatusBadRequest)
		return nil, "", false
	}
	defer file.Close()

	ext := strings.ToLower(strings.TrimSpace(filepath.Ext(header.Filename)))
	partContentType := header.Header.Get("Content-Type")
	allowedByExt := ext == ".jpg" || ext == ".jpeg" || ext == ".png"
	allowedByMime := strings.HasPrefix(partContentType, "image/jpeg") || strings.HasPrefix(partContentType, "image/png")
	if !allowedByExt && !allowedByMime {
		http.Error(w, `{"error":"only jpeg and png images are allowed"}`, http.StatusBadRequest)
		return nil, "", false
	}

	image, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, `{"error":"failed to read file"}`, http.StatusInternalServerError)
		return nil, "", false
	}
	contentType := "image/jpeg"
	if ext == ".png" || strings.HasPrefix(partContentType, "image/png") {
		contentType = "image/png"
	}
	return image, contentType, true
}

func ocrErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrOCRFailed):
		return "OCR processing failed"
	case errors.Is(err, service.ErrOCRTimeout):
		return "OCR timed out"
	default:
		return "text recognition failed"
	}
}
