package constants

// GlossaryCategory selects which alias set the normalizer matches against.
type GlossaryCategory string

// Stable values (lexicon files key their sections by these exact strings).
const (
	CategoryCurrency     GlossaryCategory = "currency"
	CategoryVATCode      GlossaryCategory = "vat_code"
	CategoryProviderName GlossaryCategory = "provider_name"
)

var allGlossaryCategories = []GlossaryCategory{
	CategoryCurrency,
	CategoryVATCode,
	CategoryProviderName,
}

// GlossaryCategories returns every known category, in declaration order.
func GlossaryCategories() []GlossaryCategory {
	out := make([]GlossaryCategory, len(allGlossaryCategories))
	copy(out, allGlossaryCategories)
	return out
}

// IsGlossaryCategory reports whether input names a known category.
func IsGlossaryCategory(input string) bool {
	for _, c := range allGlossaryCategories {
		if string(c) == input {
			return true
		}
	}
	return false
}

// ExportFormat is the serialization target for a parsed invoice.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
)

// IsExportFormat reports whether input names a supported export format.
func IsExportFormat(input string) bool {
	switch ExportFormat(input) {
	case ExportJSON, ExportCSV, ExportXLSX:
		return true
	}
	return false
}
