package mappers

import "kitstock/model"

// AssetTagView is the API shape of a tag with the labels a list screen needs.
type AssetTagView struct {
	model.AssetTag
	CompanyName string `json:"companyName"`
	EntityName  string `json:"entityName"`
}

// ToAssetTagView flattens a tag, its company and its entity for display.
func ToAssetTagView(company model.Company, tag model.AssetTag, entity interface{}) AssetTagView {
	return AssetTagView{
		AssetTag:    tag,
		CompanyName: company.Name,
		EntityName:  Placeholders(company, tag, entity)["name"],
	}
}
