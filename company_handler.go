package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"kitstock/database"
	"kitstock/model"
)

const maxCodeDigits = 18

func companyID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func writeDBError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	zap.S().Errorf("Error %s: %v", what, err)
	writeJSONError(w, "failed "+what, http.StatusInternalServerError)
}

func validateMeta(meta model.AssetTagMeta) error {
	if meta.CodeDigits < 0 || meta.CodeDigits > maxCodeDigits {
		return errors.New("codeDigits must be between 0 and 18")
	}
	for _, p := range []string{meta.CompanyPrefix, meta.EquipmentPrefix, meta.ArticlePrefix, meta.LocationPrefix} {
		if strings.ContainsAny(p, "{}") {
			return errors.New("prefixes must not contain braces")
		}
	}
	return nil
}

func ListCompaniesHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companies, err := database.ListCompanies(r.Context(), db)
		if err != nil {
			writeDBError(w, err, "listing companies")
			return
		}
		if companies == nil {
			companies = []model.Company{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(companies)
	}
}

func GetCompanyHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := companyID(r)
		if !ok {
			writeJSONError(w, "invalid company id", http.StatusBadRequest)
			return
		}
		c, err := database.GetCompany(r.Context(), db, id)
		if err != nil {
			writeDBError(w, err, "loading company")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(c)
	}
}

// UpsertCompanyHandler creates the company or replaces its name and settings.
func UpsertCompanyHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := companyID(r)
		if !ok {
			writeJSONError(w, "invalid company id", http.StatusBadRequest)
			return
		}
		var c model.Company
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			writeJSONError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		c.ID = id
		if strings.TrimSpace(c.Name) == "" {
			writeJSONError(w, "name is required", http.StatusBadRequest)
			return
		}
		if err := validateMeta(c.AssetTagMeta); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := database.UpsertCompany(r.Context(), db, c); err != nil {
			writeDBError(w, err, "saving company")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(c)
	}
}

func UpdateAssetTagMetaHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := companyID(r)
		if !ok {
			writeJSONError(w, "invalid company id", http.StatusBadRequest)
			return
		}
		var meta model.AssetTagMeta
		if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
			writeJSONError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := validateMeta(meta); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := database.UpdateAssetTagMeta(r.Context(), db, id, meta); err != nil {
			writeDBError(w, err, "saving asset tag settings")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Asset tag settings saved."})
	}
}
