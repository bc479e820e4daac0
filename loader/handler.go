package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"kitstock/database"
	"kitstock/model"
)

const maxUploadBytes = 32 << 20

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// ImportEntitiesHandler accepts a multipart upload ("file") for the {entity}
// path parameter. Form fields: company_id, encoding (utf-8 or shift_jis).
func ImportEntitiesHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entity, err := model.ParseEntityType(chi.URLParam(r, "entity"))
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeJSONError(w, "failed to parse upload: "+err.Error(), http.StatusBadRequest)
			return
		}

		companyID, err := strconv.ParseInt(r.FormValue("company_id"), 10, 64)
		if err != nil || companyID <= 0 {
			writeJSONError(w, "company_id is required", http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSONError(w, "file is required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		zap.S().Infof("HTTP request received: importing %s (%s) for company %d", header.Filename, entity, companyID)

		n, err := ImportEntitiesCSV(r.Context(), db, entity, companyID, file, r.FormValue("encoding"))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, database.ErrNotFound) {
				status = http.StatusNotFound
			}
			zap.S().Errorf("Import of %s failed: %v", header.Filename, err)
			writeJSONError(w, err.Error(), status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message":  fmt.Sprintf("%d %s rows imported.", n, entity),
			"imported": n,
		})
	}
}
