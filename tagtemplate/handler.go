package tagtemplate

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"kitstock/database"
	"kitstock/model"
	"kitstock/render"
)

const maxTemplateBytes = 1 << 20

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Errorf("Error encoding JSON response: %v", err)
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidTemplate):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		zap.S().Errorf("Template request failed: %v", err)
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
	}
}

func ListHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, err := strconv.ParseInt(r.URL.Query().Get("company_id"), 10, 64)
		if err != nil {
			writeJSONError(w, "company_id is required", http.StatusBadRequest)
			return
		}
		templates, err := database.ListTemplates(r.Context(), db, companyID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, templates)
	}
}

func GetHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tpl, err := database.GetTemplate(r.Context(), db, chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tpl)
	}
}

// create validates tpl, gives it a fresh id and stores it.
func create(r *http.Request, db *sqlx.DB, tpl model.TagTemplate) (model.TagTemplate, error) {
	if err := Validate(tpl); err != nil {
		return tpl, err
	}
	if _, err := database.GetCompany(r.Context(), db, tpl.CompanyID); err != nil {
		return tpl, err
	}
	tpl.ID = uuid.NewString()

	tx, err := db.BeginTxx(r.Context(), nil)
	if err != nil {
		return tpl, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := database.CreateTemplateInTx(r.Context(), tx, tpl); err != nil {
		return tpl, err
	}
	if err := tx.Commit(); err != nil {
		return tpl, fmt.Errorf("failed to commit template: %w", err)
	}
	zap.S().Infof("Template %s (%s) created for company %d", tpl.ID, tpl.Name, tpl.CompanyID)
	return tpl, nil
}

func CreateHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var tpl model.TagTemplate
		if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
			writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		created, err := create(r, db, tpl)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func UpdateHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var tpl model.TagTemplate
		if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
			writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		tpl.ID = chi.URLParam(r, "id")
		if err := Validate(tpl); err != nil {
			writeStoreError(w, err)
			return
		}

		tx, err := db.BeginTxx(r.Context(), nil)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		defer tx.Rollback()

		existing, err := database.GetTemplate(r.Context(), tx, tpl.ID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		// templates do not move between companies
		tpl.CompanyID = existing.CompanyID

		if err := database.UpdateTemplateInTx(r.Context(), tx, tpl); err != nil {
			writeStoreError(w, err)
			return
		}
		if err := tx.Commit(); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tpl)
	}
}

func DeleteHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := database.DeleteTemplate(r.Context(), db, chi.URLParam(r, "id")); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type previewRequest struct {
	Template model.TagTemplate `json:"template"`
	Data     map[string]string `json:"data"`
}

// PreviewHandler renders a posted, unsaved template with sample data.
func PreviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req previewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.Template.Name == "" {
			req.Template.Name = "preview"
		}
		if err := Validate(req.Template); err != nil {
			writeStoreError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Write([]byte(render.GenerateSVG(req.Template, req.Data)))
	}
}

// ImportHandler creates a template from a YAML body. ?company_id= overrides
// the company named in the file.
func ImportHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tpl, err := LoadYAML(http.MaxBytesReader(w, r.Body, maxTemplateBytes))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if s := r.URL.Query().Get("company_id"); s != "" {
			if tpl.CompanyID, err = strconv.ParseInt(s, 10, 64); err != nil {
				writeJSONError(w, "invalid company_id", http.StatusBadRequest)
				return
			}
		}
		created, err := create(r, db, tpl)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func ExportHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tpl, err := database.GetTemplate(r.Context(), db, chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.yaml"`, tpl.ID))
		if err := DumpYAML(w, *tpl); err != nil {
			zap.S().Errorf("Template export failed: %v", err)
		}
	}
}

// Routes mounts the template API on r.
func Routes(r chi.Router, db *sqlx.DB) {
	r.Get("/", ListHandler(db))
	r.Post("/", CreateHandler(db))
	r.Post("/preview", PreviewHandler())
	r.Post("/import", ImportHandler(db))
	r.Get("/{id}", GetHandler(db))
	r.Put("/{id}", UpdateHandler(db))
	r.Delete("/{id}", DeleteHandler(db))
	r.Get("/{id}/export", ExportHandler(db))
}
