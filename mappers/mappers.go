package mappers

import (
	"strconv"

	"kitstock/model"
)

/**
 * Placeholders builds the key/value map a template is filled from.
 *
 * entity is *model.Equipment, *model.Article or *model.Location (or nil).
 * Keys that do not apply to the entity type are still present with an
 * empty value, so a shared template renders blanks instead of raw tokens.
 */
func Placeholders(company model.Company, tag model.AssetTag, entity interface{}) map[string]string {
	data := map[string]string{
		"printed_code":   tag.PrintedCode,
		"code":           tag.PrintedCode,
		"company_name":   company.Name,
		"company_prefix": company.CompanyPrefix,
		"entity_type":    string(tag.EntityType),
		"entity_prefix":  company.EntityPrefix(tag.EntityType),
		"entity_id":      strconv.FormatInt(tag.EntityID, 10),
		"sequence":       strconv.FormatInt(tag.Sequence, 10),
		"name":           "",
		"serial_number":  "",
		"manufacturer":   "",
		"model":          "",
		"category":       "",
		"address":        "",
	}
	if !tag.CreatedAt.IsZero() {
		data["created_date"] = tag.CreatedAt.Format("2006-01-02")
	}

	switch e := entity.(type) {
	case *model.Equipment:
		if e != nil {
			data["name"] = e.Name
			data["serial_number"] = e.SerialNumber
			data["manufacturer"] = e.Manufacturer
			data["model"] = e.Model
		}
	case *model.Article:
		if e != nil {
			data["name"] = e.Name
			data["manufacturer"] = e.Manufacturer
			data["category"] = e.Category
		}
	case *model.Location:
		if e != nil {
			data["name"] = e.Name
			data["address"] = e.Address
		}
	}
	return data
}
