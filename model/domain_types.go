package model

import (
	"fmt"
	"strings"
	"time"
)

type EntityType string

const (
	EntityEquipment EntityType = "equipment"
	EntityArticle   EntityType = "article"
	EntityLocation  EntityType = "location"
)

// ParseEntityType accepts the singular names and their common plurals.
func ParseEntityType(s string) (EntityType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "equipment", "equipments":
		return EntityEquipment, nil
	case "article", "articles":
		return EntityArticle, nil
	case "location", "locations":
		return EntityLocation, nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// AssetTagMeta holds the per-company numbering rules for printed codes.
type AssetTagMeta struct {
	CompanyPrefix   string `db:"asset_tag_prefix" json:"companyPrefix" yaml:"company_prefix"`
	EquipmentPrefix string `db:"equipment_prefix" json:"equipmentPrefix" yaml:"equipment_prefix"`
	ArticlePrefix   string `db:"article_prefix" json:"articlePrefix" yaml:"article_prefix"`
	LocationPrefix  string `db:"location_prefix" json:"locationPrefix" yaml:"location_prefix"`
	CodeDigits      int    `db:"asset_tag_digits" json:"codeDigits" yaml:"code_digits"`
}

func (m AssetTagMeta) EntityPrefix(t EntityType) string {
	switch t {
	case EntityEquipment:
		return m.EquipmentPrefix
	case EntityArticle:
		return m.ArticlePrefix
	case EntityLocation:
		return m.LocationPrefix
	}
	return ""
}

type Company struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	AssetTagMeta
}

type Equipment struct {
	ID           int64  `db:"id" json:"id"`
	CompanyID    int64  `db:"company_id" json:"companyId"`
	Name         string `db:"name" json:"name"`
	SerialNumber string `db:"serial_number" json:"serialNumber"`
	Manufacturer string `db:"manufacturer" json:"manufacturer"`
	Model        string `db:"model" json:"model"`
}

type Article struct {
	ID           int64  `db:"id" json:"id"`
	CompanyID    int64  `db:"company_id" json:"companyId"`
	Name         string `db:"name" json:"name"`
	Manufacturer string `db:"manufacturer" json:"manufacturer"`
	Category     string `db:"category" json:"category"`
}

type Location struct {
	ID        int64  `db:"id" json:"id"`
	CompanyID int64  `db:"company_id" json:"companyId"`
	Name      string `db:"name" json:"name"`
	Address   string `db:"address" json:"address"`
}

type AssetTag struct {
	ID          int64      `db:"id" json:"id"`
	CompanyID   int64      `db:"company_id" json:"companyId"`
	EntityType  EntityType `db:"entity_type" json:"entityType"`
	EntityID    int64      `db:"entity_id" json:"entityId"`
	TemplateID  string     `db:"template_id" json:"templateId"`
	Sequence    int64      `db:"sequence_no" json:"sequence"`
	PrintedCode string     `db:"printed_code" json:"printedCode"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}
