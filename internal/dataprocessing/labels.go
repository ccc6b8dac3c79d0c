package dataprocessing

import (
	"strings"

	"eexcot/pkg/contracts/domain"
)

// categoryLabels covers every category heading used by the published reports.
// Keys are canonicalLabel forms. Adding a category is a table change, never a guess.
var categoryLabels = map[string]domain.Category{
	"investment firms or credit institutions":  domain.CategoryInvestmentFirms,
	"investment firms/credit institutions":     domain.CategoryInvestmentFirms,
	"investment firms and credit institutions": domain.CategoryInvestmentFirms,
	"investment firms":                         domain.CategoryInvestmentFirms,
	"investment_firms":                         domain.CategoryInvestmentFirms,

	"investment funds": domain.CategoryInvestmentFunds,
	"investment_funds": domain.CategoryInvestmentFunds,

	"other financial institutions": domain.CategoryOtherFinancial,
	"other financial":              domain.CategoryOtherFinancial,
	"other_financial":              domain.CategoryOtherFinancial,

	"commercial undertakings": domain.CategoryCommercial,
	"commercial":              domain.CategoryCommercial,

	"operators with compliance obligations under directive 2003/87/ec": domain.CategoryComplianceOperators,
	"operators with compliance obligations":                            domain.CategoryComplianceOperators,
	"compliance operators":                                             domain.CategoryComplianceOperators,
	"compliance_operators":                                             domain.CategoryComplianceOperators,

	"total":               domain.CategoryTotal,
	"total open interest": domain.CategoryTotal,
	"open interest":       domain.CategoryTotal,
	"all categories":      domain.CategoryTotal,
}

var positionTypeLabels = map[string]domain.PositionType{
	"risk reducing":           domain.PositionRiskReducing,
	"risk-reducing":           domain.PositionRiskReducing,
	"risk_reducing":           domain.PositionRiskReducing,
	"risk reducing positions": domain.PositionRiskReducing,
	"risk-reducing positions": domain.PositionRiskReducing,
	"positions reducing risk": domain.PositionRiskReducing,
	"of which risk reducing":  domain.PositionRiskReducing,

	"risk reducing directly related to commercial activities": domain.PositionRiskReducing,

	"other":           domain.PositionOther,
	"other positions": domain.PositionOther,

	"total":               domain.PositionTotal,
	"total positions":     domain.PositionTotal,
	"number of positions": domain.PositionTotal,
}

// metadataFields maps the key/value labels above the date header
var metadataFields = map[string]string{
	"trading venue":                "trading_venue",
	"name of trading venue":        "trading_venue",
	"trading venue identifier":     "venue_identifier",
	"venue identifier":             "venue_identifier",
	"mic":                          "venue_identifier",
	"report date":                  "report_date",
	"date of the report":           "report_date",
	"publication date and time":    "publication_datetime",
	"publication date/time":        "publication_datetime",
	"publication datetime":         "publication_datetime",
	"contract name":                "contract_name",
	"name of commodity derivative": "contract_name",
	"contract code":                "contract_code",
	"venue product code":           "contract_code",
	"report status":                "report_status",
	"report type":                  "report_type",
}

// canonicalLabel lower-cases, collapses whitespace and drops trailing colons
func canonicalLabel(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimRight(s, ": ")
}

// LookupCategory maps a report label to its category
func LookupCategory(label string) (domain.Category, bool) {
	c, ok := categoryLabels[canonicalLabel(label)]
	return c, ok
}

// LookupPositionType maps a report label to its position type
func LookupPositionType(label string) (domain.PositionType, bool) {
	p, ok := positionTypeLabels[canonicalLabel(label)]
	return p, ok
}
