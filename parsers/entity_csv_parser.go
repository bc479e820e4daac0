package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"kitstock/model"
)

// EntityRecord is one CSV row. Fields holds every optional column the entity
// type understands, keyed by header name.
type EntityRecord struct {
	Line   int
	ID     int64
	Name   string
	Fields map[string]string
}

var entityColumns = map[model.EntityType][]string{
	model.EntityEquipment: {"serial_number", "manufacturer", "model"},
	model.EntityArticle:   {"manufacturer", "category"},
	model.EntityLocation:  {"address"},
}

// ParseEntityCSV reads a header row followed by data rows. "name" is required;
// "id" is optional and, when present, must be a positive integer. Rows that
// cannot be used are logged and skipped. The reader must already yield UTF-8.
func ParseEntityCSV(r io.Reader, entity model.EntityType) ([]EntityRecord, error) {
	optional, ok := entityColumns[entity]
	if !ok {
		return nil, fmt.Errorf("unsupported entity type %q", entity)
	}

	reader := csv.NewReader(SkipBOM(r))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colIndex, err := getColIndex(header, []string{"name"})
	if err != nil {
		return nil, err
	}

	var records []EntityRecord
	line := 1

	for {
		line++
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			zap.S().Warnf("%s CSV line %d unreadable (skipped): %v", entity, line, err)
			continue
		}

		get := func(key string) string {
			if idx, ok := colIndex[key]; ok && idx < len(rec) {
				return strings.TrimSpace(rec[idx])
			}
			return ""
		}

		name := get("name")
		if name == "" {
			zap.S().Warnf("%s CSV line %d has no name (skipped)", entity, line)
			continue
		}

		var id int64
		if raw := get("id"); raw != "" {
			id, err = strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				zap.S().Warnf("%s CSV line %d has invalid id %q (skipped)", entity, line, raw)
				continue
			}
		}

		fields := make(map[string]string, len(optional))
		for _, col := range optional {
			fields[col] = get(col)
		}

		records = append(records, EntityRecord{Line: line, ID: id, Name: name, Fields: fields})
	}

	return records, nil
}
