package assettag

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"kitstock/barcode"
	"kitstock/database"
	"kitstock/model"
	"kitstock/render"
)

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

// writeServiceError maps service and database errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, database.ErrNotFound), errors.Is(err, ErrNoTemplate):
		status = http.StatusNotFound
	case errors.Is(err, database.ErrDuplicateCode):
		status = http.StatusConflict
	case errors.Is(err, ErrBadFormat), errors.Is(err, ErrMixedCompany), errors.Is(err, barcode.ErrEmptyScan),
		errors.Is(err, barcode.ErrInvalidScan):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNoRasterizer):
		status = http.StatusNotImplemented
	}
	if status == http.StatusInternalServerError {
		zap.S().Errorf("Asset tag request failed: %v", err)
	}
	writeJSONError(w, err.Error(), status)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func queryInt(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
}

type createRequest struct {
	CompanyID  int64  `json:"companyId"`
	EntityType string `json:"entityType"`
	EntityID   int64  `json:"entityId"`
	TemplateID string `json:"templateId"`
}

func CreateHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		entity, err := model.ParseEntityType(req.EntityType)
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.CompanyID <= 0 || req.EntityID <= 0 {
			writeJSONError(w, "companyId and entityId are required", http.StatusBadRequest)
			return
		}

		tag, err := svc.CreateForEntity(r.Context(), req.CompanyID, entity, req.EntityID, req.TemplateID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, tag)
	}
}

func ListHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, err := queryInt(r, "company_id")
		if err != nil {
			writeJSONError(w, "company_id is required", http.StatusBadRequest)
			return
		}
		var entity model.EntityType
		if s := r.URL.Query().Get("entity_type"); s != "" {
			if entity, err = model.ParseEntityType(s); err != nil {
				writeJSONError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		var tags []model.AssetTag
		if s := r.URL.Query().Get("entity_id"); s != "" {
			entityID, perr := strconv.ParseInt(s, 10, 64)
			if perr != nil || entity == "" {
				writeJSONError(w, "entity_id needs a numeric value and entity_type", http.StatusBadRequest)
				return
			}
			tags, err = database.ListAssetTagsForEntity(r.Context(), db, companyID, entity, entityID)
		} else {
			tags, err = database.ListAssetTags(r.Context(), db, companyID, entity)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tags)
	}
}

func GetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeJSONError(w, "invalid asset tag id", http.StatusBadRequest)
			return
		}
		view, err := svc.View(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func DeleteHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeJSONError(w, "invalid asset tag id", http.StatusBadRequest)
			return
		}
		if err := database.DeleteAssetTag(r.Context(), db, id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func SVGHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeJSONError(w, "invalid asset tag id", http.StatusBadRequest)
			return
		}
		svg, err := svc.RenderSVG(r.Context(), id, r.URL.Query().Get("template_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Write([]byte(svg))
	}
}

func PNGHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeJSONError(w, "invalid asset tag id", http.StatusBadRequest)
			return
		}
		var scale float64
		if s := r.URL.Query().Get("scale"); s != "" {
			if scale, err = strconv.ParseFloat(s, 64); err != nil || scale <= 0 || scale > 8 {
				writeJSONError(w, "scale must be a number in (0, 8]", http.StatusBadRequest)
				return
			}
		}
		png, err := svc.RenderPNG(r.Context(), id, r.URL.Query().Get("template_id"), scale)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}
}

type exportRequest struct {
	IDs    []int64 `json:"ids"`
	Format string  `json:"format"`
	Scale  float64 `json:"scale"`
}

// ExportHandler streams a zip of rendered labels. The archive is built in
// memory first so a failed render still yields a JSON error.
func ExportHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req exportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.IDs) == 0 {
			writeJSONError(w, "ids is required", http.StatusBadRequest)
			return
		}

		var buf bytes.Buffer
		if err := svc.ExportZIP(r.Context(), &buf, req.IDs, req.Format, req.Scale); err != nil {
			writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="asset-tags.zip"`)
		w.Write(buf.Bytes())
	}
}

type sheetRequest struct {
	IDs          []int64 `json:"ids"`
	TemplateID   string  `json:"templateId"`
	PageWidthMM  float64 `json:"pageWidthMm"`
	PageHeightMM float64 `json:"pageHeightMm"`
	MarginMM     float64 `json:"marginMm"`
	GapMM        float64 `json:"gapMm"`
}

func SheetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sheetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.IDs) == 0 {
			writeJSONError(w, "ids is required", http.StatusBadRequest)
			return
		}

		opts := render.A4()
		if req.PageWidthMM > 0 && req.PageHeightMM > 0 {
			opts = render.SheetOptions{PageWidthMM: req.PageWidthMM, PageHeightMM: req.PageHeightMM,
				MarginMM: req.MarginMM, GapMM: req.GapMM}
		}
		pages, err := svc.Sheet(r.Context(), req.IDs, req.TemplateID, opts)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"pages": pages})
	}
}

func LookupHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, err := queryInt(r, "company_id")
		if err != nil {
			writeJSONError(w, "company_id is required", http.StatusBadRequest)
			return
		}
		tag, err := svc.Lookup(r.Context(), companyID, r.URL.Query().Get("scan"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tag)
	}
}

func CodePreviewHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		companyID, err := queryInt(r, "company_id")
		if err != nil {
			writeJSONError(w, "company_id is required", http.StatusBadRequest)
			return
		}
		entity, err := model.ParseEntityType(q.Get("entity_type"))
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		var id int64
		if s := q.Get("id"); s != "" {
			if id, err = strconv.ParseInt(s, 10, 64); err != nil {
				writeJSONError(w, "invalid id", http.StatusBadRequest)
				return
			}
		}

		code, err := svc.PreviewCode(r.Context(), companyID, entity, id, q.Get("template_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"code": code})
	}
}

// Routes mounts the asset tag API on r.
func Routes(r chi.Router, db *sqlx.DB, svc *Service) {
	r.Post("/", CreateHandler(svc))
	r.Get("/", ListHandler(db))
	r.Post("/export", ExportHandler(svc))
	r.Post("/sheet", SheetHandler(svc))
	r.Get("/lookup", LookupHandler(svc))
	r.Get("/code-preview", CodePreviewHandler(svc))
	r.Get("/{id}", GetHandler(svc))
	r.Delete("/{id}", DeleteHandler(db))
	r.Get("/{id}/svg", SVGHandler(svc))
	r.Get("/{id}/png", PNGHandler(svc))
}
