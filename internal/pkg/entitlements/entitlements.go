package entitlements

import "strings"

type Plan string

const (
	PlanFree    Plan = "free"
	PlanPro     Plan = "pro"
	PlanPremium Plan = "premium"
)

// PlanDefinition is the static per-tier configuration. Limits are plain
// numbers; premium is bounded rather than unlimited on purpose, so nothing
// here assumes monotonicity between tiers.
type PlanDefinition struct {
	Plan                    Plan     `json:"plan"`
	CatalogsLimit           int      `json:"catalogs_limit"`
	ProductsPerCatalogLimit int      `json:"products_per_catalog_limit"`
	PriceCents              int64    `json:"price_cents"`
	Features                []string `json:"features"`
}

var planTable = map[Plan]PlanDefinition{
	PlanFree: {
		Plan:                    PlanFree,
		CatalogsLimit:           1,
		ProductsPerCatalogLimit: 10,
		PriceCents:              0,
		Features:                []string{"1 catalog", "10 products per catalog", "WhatsApp contact link"},
	},
	PlanPro: {
		Plan:                    PlanPro,
		CatalogsLimit:           3,
		ProductsPerCatalogLimit: 30,
		PriceCents:              1990,
		Features:                []string{"3 catalogs", "30 products per catalog", "WhatsApp contact link"},
	},
	PlanPremium: {
		Plan:                    PlanPremium,
		CatalogsLimit:           10,
		ProductsPerCatalogLimit: 100,
		PriceCents:              3990,
		Features:                []string{"10 catalogs", "100 products per catalog", "WhatsApp contact link"},
	},
}

// QuotaResult is the outcome of an entitlement check. Limit is always filled
// so denials can surface the number to the user.
type QuotaResult struct {
	Allowed bool
	Limit   int
}

// NormalizePlan maps arbitrary input to a known plan, defaulting to free.
func NormalizePlan(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanPro):
		return PlanPro
	case string(PlanPremium):
		return PlanPremium
	default:
		return PlanFree
	}
}

// KnownPlan reports whether the input names an existing tier.
func KnownPlan(plan string) bool {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanFree), string(PlanPro), string(PlanPremium):
		return true
	default:
		return false
	}
}

// Rank orders plans by capability for best-plan selection.
func Rank(plan Plan) int {
	switch plan {
	case PlanPremium:
		return 2
	case PlanPro:
		return 1
	default:
		return 0
	}
}

// Definition returns the static configuration for a plan.
func Definition(plan Plan) PlanDefinition {
	if def, ok := planTable[plan]; ok {
		return def
	}
	return planTable[PlanFree]
}

// Definitions lists all tiers in capability order, for the pricing endpoint.
func Definitions() []PlanDefinition {
	return []PlanDefinition{planTable[PlanFree], planTable[PlanPro], planTable[PlanPremium]}
}

// CheckCatalogQuota decides whether a user on the given plan may create one
// more catalog. The check is strictly current < limit.
func CheckCatalogQuota(plan Plan, currentCount int) QuotaResult {
	limit := Definition(plan).CatalogsLimit
	return QuotaResult{Allowed: currentCount < limit, Limit: limit}
}

// CheckProductQuota decides whether one more product fits into a catalog.
func CheckProductQuota(plan Plan, currentCountInCatalog int) QuotaResult {
	limit := Definition(plan).ProductsPerCatalogLimit
	return QuotaResult{Allowed: currentCountInCatalog < limit, Limit: limit}
}
