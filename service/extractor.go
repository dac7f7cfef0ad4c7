package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/katalogbuku/backend/models"
	"google.golang.org/api/option"
)

// ErrNoExtraction is returned when the model's response contains nothing
// that parses as a bibliographic record. Callers treat this as "no usable
// data", not as a hard failure.
var ErrNoExtraction = errors.New("no bibliographic record could be extracted")

// Extractor maps raw OCR text onto the fixed bibliographic schema using a
// generative model. The model's output quality is an external dependency;
// this component only guarantees syntactic validity of what it returns.
type Extractor struct {
	client *genai.Client
	model  string
}

func NewExtractor(ctx context.Context, apiKey, model string) (*Extractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Extractor{client: client, model: model}, nil
}

func (e *Extractor) Close() error {
	return e.client.Close()
}

const extractionPrompt = `You are a library assistant extracting bibliographic data from the OCR text of a book's publication-data page.
Convert the text below into a JSON object with exactly this structure:

{
  "author": "",               // Keep "last, first" name ordering as printed
  "title": "",
  "edition": "",              // The printing number, or "1" for a first printing
  "publicationCity": "",
  "publisher": "",
  "publicationYear": "",
  "physicalDescription": "",  // e.g. "20 p.; 22.9 cm"; drop any leading roman-numeral page count
  "source": "",               // Write "donation" if no acquisition source is stated
  "subject": "",              // Only the first entry of the subject section
  "callNumber": "",           // Join all call number lines into one line, e.g. "398.209 598 GRI"
  "isbn": "",
  "level": ""
}

Respond with the JSON object only.

OCR text:
"""
%s
"""`

// Extract runs the model over the OCR text and parses the first JSON object
// in its response. A response with no parsable record yields ErrNoExtraction.
func (e *Extractor) Extract(ctx context.Context, ocrText string) (*models.Book, error) {
	model := e.client.GenerativeModel(e.model)
	model.SetTemperature(0.1)

	resp, err := model.GenerateContent(ctx, genai.Text(fmt.Sprintf(extractionPrompt, ocrText)))
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, ErrNoExtraction
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, ErrNoExtraction
	}
	text, ok := candidate.Content.Parts[0].(genai.Text)
	if !ok {
		return nil, ErrNoExtraction
	}
	return ParseRecordJSON(string(text))
}

// extractedRecord mirrors the JSON shape requested from the model.
type extractedRecord struct {
	Author              string `json:"author"`
	Title               string `json:"title"`
	Edition             string `json:"edition"`
	PublicationCity     string `json:"publicationCity"`
	Publisher           string `json:"publisher"`
	PublicationYear     string `json:"publicationYear"`
	PhysicalDescription string `json:"physicalDescription"`
	Source              string `json:"source"`
	Subject             string `json:"subject"`
	CallNumber          string `json:"callNumber"`
	ISBN                string `json:"isbn"`
	Level               string `json:"level"`
}

// ParseRecordJSON locates the JSON object in a free-form model response
// (the substring from the first "{" to the last "}") and unmarshals it.
// Anything unparsable yields ErrNoExtraction.
func ParseRecordJSON(response string) (*models.Book, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return nil, ErrNoExtraction
	}
	var rec extractedRecord
	if err := json.Unmarshal([]byte(response[start:end+1]), &rec); err != nil {
		return nil, ErrNoExtraction
	}
	return &models.Book{
		Author:              strings.TrimSpace(rec.Author),
		Title:               strings.TrimSpace(rec.Title),
		Edition:             strings.TrimSpace(rec.Edition),
		PublicationCity:     strings.TrimSpace(rec.PublicationCity),
		Publisher:           strings.TrimSpace(rec.Publisher),
		PublicationYear:     strings.TrimSpace(rec.PublicationYear),
		PhysicalDescription: strings.TrimSpace(rec.PhysicalDescription),
		Source:              strings.TrimSpace(rec.Source),
		Subject:             strings.TrimSpace(rec.Subject),
		CallNumber:          strings.TrimSpace(rec.CallNumber),
		ISBN:                strings.TrimSpace(rec.ISBN),
		Level:               strings.TrimSpace(rec.Level),
	}, nil
}
