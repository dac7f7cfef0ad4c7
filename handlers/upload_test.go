package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/katalogbuku/backend/models"
	"github.com/katalogbuku/backend/service"
	"github.com/katalogbuku/backend/worker"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeRecognizer struct {
	text  string
	err   error
	calls int
}

func (f *fakeRecognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeExtractor struct {
	book *models.Book
	err  error
}

func (f *fakeExtractor) Extract(ctx context.Context, text string) (*models.Book, error) {
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.book
	return &copied, nil
}

type fakeQueue struct {
	jobs []worker.Job
	err  error
}

func (f *fakeQueue) EnqueueExtraction(id primitive.ObjectID, image []byte) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, worker.Job{RecordID: id, Image: image})
	return nil
}

func multipartImage(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func newUploadRouter(h *UploadHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/api/upload", h.Upload)
	r.Post("/api/upload/async", h.UploadAsync)
	return r
}

func postImage(t *testing.T, r http.Handler, path, filename string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartImage(t, filename, []byte("fake-image-bytes"))
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUpload_ReturnsCandidateWithoutPersisting(t *testing.T) {
	fs := newFakeStore()
	h := &UploadHandler{
		Store:      fs,
		Recognizer: &fakeRecognizer{text: "MOBY DICK\nMelville, Herman"},
		Extractor:  &fakeExtractor{book: &models.Book{Title: "Moby Dick", Author: "Melville, Herman"}},
	}
	w := postImage(t, newUploadRouter(h), "/api/upload", "page.jpg")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp uploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Error("success = false")
	}
	if resp.Book.Title != "Moby Dick" {
		t.Errorf("title = %q, want Moby Dick", resp.Book.Title)
	}
	if resp.Book.Edition != "1" || resp.Book.Source != "donation" {
		t.Errorf("defaults not applied: edition=%q source=%q", resp.Book.Edition, resp.Book.Source)
	}
	if resp.Book.InputDate == "" {
		t.Error("inputDate is empty, want today")
	}
	if fs.count() != 0 {
		t.Errorf("stored records = %d, want 0 (upload must not persist)", fs.count())
	}
}

func TestUpload_RejectsNonImage(t *testing.T) {
	h := &UploadHandler{Store: newFakeStore(), Recognizer: &fakeRecognizer{}, Extractor: &fakeExtractor{book: &models.Book{}}}
	w := postImage(t, newUploadRouter(h), "/api/upload", "book.pdf")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUpload_OCRFailure(t *testing.T) {
	h := &UploadHandler{
		Store:      newFakeStore(),
		Recognizer: &fakeRecognizer{err: service.ErrOCRFailed},
		Extractor:  &fakeExtractor{book: &models.Book{}},
	}
	w := postImage(t, newUploadRouter(h), "/api/upload", "page.jpg")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("OCR processing failed")) {
		t.Errorf("body = %s, want OCR processing failed message", w.Body.String())
	}
}

func TestUpload_OCRTimeout(t *testing.T) {
	h := &UploadHandler{
		Store:      newFakeStore(),
		Recognizer: &fakeRecognizer{err: service.ErrOCRTimeout},
		Extractor:  &fakeExtractor{book: &models.Book{}},
	}
	w := postImage(t, newUploadRouter(h), "/api/upload", "page.jpg")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("OCR timed out")) {
		t.Errorf("body = %s, want timeout message", w.Body.String())
	}
}

func TestUpload_NoExtraction(t *testing.T) {
	h := &UploadHandler{
		Store:      newFakeStore(),
		Recognizer: &fakeRecognizer{text: "illegible scribbles"},
		Extractor:  &fakeExtractor{err: service.ErrNoExtraction},
	}
	w := postImage(t, newUploadRouter(h), "/api/upload", "page.jpg")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["success"] != false {
		t.Error("success != false")
	}
}

func TestUploadAsync_CreatesPlaceholderAndEnqueues(t *testing.T) {
	fs := newFakeStore()
	q := &fakeQueue{}
	h := &UploadHandler{Store: fs, Queue: q}

	w := postImage(t, newUploadRouter(h), "/api/upload/async", "page.png")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}
	var resp asyncUploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != models.StatusProcessing {
		t.Errorf("status = %q, want processing", resp.Status)
	}
	if len(q.jobs) != 1 {
		t.Fatalf("enqueued jobs = %d, want 1", len(q.jobs))
	}
	if q.jobs[0].RecordID.Hex() != resp.ID {
		t.Errorf("job record id = %s, want %s", q.jobs[0].RecordID.Hex(), resp.ID)
	}

	id, err := primitive.ObjectIDFromHex(resp.ID)
	if err != nil {
		t.Fatal(err)
	}
	placeholder, err := fs.BookByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if placeholder.Status != models.StatusProcessing {
		t.Errorf("placeholder status = %q, want processing", placeholder.Status)
	}
}

func TestUploadAsync_QueueFullRemovesPlaceholder(t *testing.T) {
	fs := newFakeStore()
	h := &UploadHandler{Store: fs, Queue: &fakeQueue{err: errors.New("queue full")}}

	w := postImage(t, newUploadRouter(h), "/api/upload/async", "page.jpg")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if fs.count() != 0 {
		t.Errorf("stored records = %d, want 0 (orphaned placeholder)", fs.count())
	}
}

func TestUploadAsync_NotConfigured(t *testing.T) {
	h := &UploadHandler{Store: newFakeStore()}
	w := postImage(t, newUploadRouter(h), "/api/upload/async", "page.jpg")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
