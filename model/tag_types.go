package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

const (
	ElementText    = "text"
	ElementQRCode  = "qrcode"
	ElementBarcode = "barcode"
)

// TemplateElement is one positioned item on a label. Coordinates and sizes
// are millimetres measured from the inside of the template margin.
type TemplateElement struct {
	Type       string  `json:"type" yaml:"type"`
	X          float64 `json:"x" yaml:"x"`
	Y          float64 `json:"y" yaml:"y"`
	Width      float64 `json:"width" yaml:"width"`
	Height     float64 `json:"height" yaml:"height"`
	Value      string  `json:"value" yaml:"value"`
	FontSize   float64 `json:"fontSize,omitempty" yaml:"font_size,omitempty"`
	FontWeight string  `json:"fontWeight,omitempty" yaml:"font_weight,omitempty"`
	Align      string  `json:"align,omitempty" yaml:"align,omitempty"`
	Color      string  `json:"color,omitempty" yaml:"color,omitempty"`
	ShowText   bool    `json:"showText,omitempty" yaml:"show_text,omitempty"`
}

// Elements is stored as a JSON column.
type Elements []TemplateElement

func (e Elements) Value() (driver.Value, error) {
	if e == nil {
		return "[]", nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (e *Elements) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*e = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("Elements.Scan: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*e = nil
		return nil
	}
	return json.Unmarshal(raw, e)
}

type TagTemplate struct {
	ID              string   `db:"id" json:"id" yaml:"id,omitempty"`
	CompanyID       int64    `db:"company_id" json:"companyId" yaml:"company_id,omitempty"`
	Name            string   `db:"name" json:"name" yaml:"name"`
	WidthMM         float64  `db:"width_mm" json:"widthMm" yaml:"width_mm"`
	HeightMM        float64  `db:"height_mm" json:"heightMm" yaml:"height_mm"`
	MarginMM        float64  `db:"margin_mm" json:"marginMm" yaml:"margin_mm"`
	BackgroundColor string   `db:"background_color" json:"backgroundColor" yaml:"background_color,omitempty"`
	TextColor       string   `db:"text_color" json:"textColor" yaml:"text_color,omitempty"`
	BorderColor     string   `db:"border_color" json:"borderColor" yaml:"border_color,omitempty"`
	BorderWidthMM   float64  `db:"border_width_mm" json:"borderWidthMm" yaml:"border_width_mm,omitempty"`
	FontFamily      string   `db:"font_family" json:"fontFamily" yaml:"font_family,omitempty"`
	Prefix          string   `db:"prefix" json:"prefix" yaml:"prefix,omitempty"`
	Suffix          string   `db:"suffix" json:"suffix" yaml:"suffix,omitempty"`
	StringTemplate  string   `db:"string_template" json:"stringTemplate" yaml:"string_template,omitempty"`
	CodeDigits      int      `db:"code_digits" json:"codeDigits" yaml:"code_digits,omitempty"`
	IsDefault       bool     `db:"is_default" json:"isDefault" yaml:"is_default,omitempty"`
	Elements        Elements `db:"elements" json:"elements" yaml:"elements"`
}
