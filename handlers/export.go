package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/katalogbuku/backend/models"
	"github.com/katalogbuku/backend/service"
	"github.com/katalogbuku/backend/utils"
	"github.com/rs/zerolog/log"
)

type ExportHandler struct {
	Store BookStore
}

// Export streams the catalog as a spreadsheet. Query parameters: format
// (xlsx, default, or csv), q (same filter as the list view), ids
// (comma-separated selection; empty exports the whole filtered set). Rows
// are ordered by title, matching the catalog's export convention.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	books, err := h.Store.AllBooks(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("export: fetch books")
		http.Error(w, `{"success":false,"error":"failed to fetch books"}`, http.StatusInternalServerError)
		return
	}
	q := r.URL.Query()
	books = utils.FilterBooks(books, q.Get("q"))
	books = selectByIDs(books, q.Get("ids"))
	utils.SortBooks(books, "title", "asc")

	filename := "catalog-export-" + time.Now().Format("2006-01-02")
	switch q.Get("format") {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.csv"`)
		err = service.WriteCSV(w, books)
	case "", "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.xlsx"`)
		err = service.WriteXLSX(w, books)
	default:
		http.Error(w, `{"error":"unsupported format"}`, http.StatusBadRequest)
		return
	}
	if err != nil {
		// Headers are already written; all we can do is log.
		log.Error().Err(err).Msg("export: write spreadsheet")
	}
}

func selectByIDs(books []models.Book, ids string) []models.Book {
	if strings.TrimSpace(ids) == "" {
		return books
	}
	wanted := make(map[string]bool)
	for _, id := range strings.Split(ids, ",") {
		if id = strings.TrimSpace(id); id != "" {
			wanted[id] = true
		}
	}
	out := make([]models.Book, 0, len(wanted))
	for _, b := range books {
		if wanted[b.ID.Hex()] {
			out = append(out, b)
		}
	}
	return out
}
