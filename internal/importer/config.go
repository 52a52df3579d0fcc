package importer

import (
	"strings"

	apperrors "lender-reconciliation-engine/pkg/errors"
)

// BankConfig describes how one bank's CSV export maps onto bank entries.
type BankConfig struct {
	Name              string            `json:"name"`
	IDColumn          string            `json:"id_column,omitempty"` // optional; ids are generated when absent
	AmountColumn      string            `json:"amount_column"`
	DateColumn        string            `json:"date_column"`
	DescriptionColumn string            `json:"description_column"`
	ReferenceColumn   string            `json:"reference_column,omitempty"`
	DateFormat        string            `json:"date_format,omitempty"`
	HasHeader         bool              `json:"has_header"`
	Delimiter         rune              `json:"delimiter"`
	ColumnAliases     map[string]string `json:"column_aliases,omitempty"`
	Description       string            `json:"description,omitempty"`
}

// Validate checks that the configuration names the columns parsing needs.
func (bc *BankConfig) Validate() error {
	if strings.TrimSpace(bc.Name) == "" {
		return apperrors.New(apperrors.CategoryConfig, apperrors.CodeInvalidConfig, "bank name cannot be empty")
	}
	if strings.TrimSpace(bc.AmountColumn) == "" {
		return apperrors.New(apperrors.CategoryConfig, apperrors.CodeInvalidConfig, "amount column cannot be empty")
	}
	if strings.TrimSpace(bc.DateColumn) == "" {
		return apperrors.New(apperrors.CategoryConfig, apperrors.CodeInvalidConfig, "date column cannot be empty")
	}
	if strings.TrimSpace(bc.DescriptionColumn) == "" {
		return apperrors.New(apperrors.CategoryConfig, apperrors.CodeInvalidConfig, "description column cannot be empty")
	}
	return nil
}

// GetColumnName resolves a standard field name to the bank's column name,
// checking aliases first.
func (bc *BankConfig) GetColumnName(standardName string) string {
	if alias, exists := bc.ColumnAliases[standardName]; exists {
		return alias
	}

	switch standardName {
	case "id":
		return bc.IDColumn
	case "amount":
		return bc.AmountColumn
	case "date":
		return bc.DateColumn
	case "description":
		return bc.DescriptionColumn
	case "reference":
		return bc.ReferenceColumn
	default:
		return standardName
	}
}

// Predefined bank configurations for the export formats the back office sees.
var (
	// StandardBankConfig is the generic statement export format.
	StandardBankConfig = &BankConfig{
		Name:              "Standard",
		IDColumn:          "id",
		AmountColumn:      "amount",
		DateColumn:        "date",
		DescriptionColumn: "description",
		ReferenceColumn:   "reference",
		DateFormat:        "2006-01-02",
		HasHeader:         true,
		Delimiter:         ',',
		Description:       "Generic statement export with ISO dates",
	}

	// HighStreetConfig covers the common UK high-street export with
	// day-first dates and no stable row identifier.
	HighStreetConfig = &BankConfig{
		Name:              "HighStreet",
		AmountColumn:      "Amount",
		DateColumn:        "Date",
		DescriptionColumn: "Memo",
		ReferenceColumn:   "Subcategory",
		DateFormat:        "02/01/2006",
		HasHeader:         true,
		Delimiter:         ',',
		Description:       "UK high-street export with DD/MM/YYYY dates",
	}

	// BusinessFeedConfig covers the semicolon-delimited business banking feed.
	BusinessFeedConfig = &BankConfig{
		Name:              "BusinessFeed",
		IDColumn:          "entry_ref",
		AmountColumn:      "signed_amount",
		DateColumn:        "value_date",
		DescriptionColumn: "narrative",
		DateFormat:        "2006-01-02",
		HasHeader:         true,
		Delimiter:         ';',
		ColumnAliases: map[string]string{
			"reference": "payment_reference",
		},
		Description: "Business banking feed with semicolon delimiter",
	}
)

// GetBankConfig returns a predefined configuration by name, or nil.
func GetBankConfig(name string) *BankConfig {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "standard":
		return StandardBankConfig
	case "highstreet":
		return HighStreetConfig
	case "businessfeed":
		return BusinessFeedConfig
	default:
		return nil
	}
}

// ListAvailableBankConfigs returns every predefined configuration.
func ListAvailableBankConfigs() []*BankConfig {
	return []*BankConfig{
		StandardBankConfig,
		HighStreetConfig,
		BusinessFeedConfig,
	}
}

// AutoDetectBankConfig picks the configuration whose key columns all appear
// in the header row, falling back to the standard format.
func AutoDetectBankConfig(headers []string) *BankConfig {
	for _, config := range ListAvailableBankConfigs() {
		if headersMatch(config, headers) {
			return config
		}
	}
	return StandardBankConfig
}

// headersMatch reports whether the header row carries every key column of
// the configuration.
func headersMatch(config *BankConfig, headers []string) bool {
	headerSet := make(map[string]bool)
	for _, header := range headers {
		headerSet[strings.ToLower(strings.TrimSpace(header))] = true
	}
	return headerSet[strings.ToLower(config.AmountColumn)] &&
		headerSet[strings.ToLower(config.DateColumn)] &&
		headerSet[strings.ToLower(config.DescriptionColumn)]
}
