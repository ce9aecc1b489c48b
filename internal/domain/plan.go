package domain

import (
	"errors"
	"strings"
)

// ErrUnknownPlan is returned when a plan name is not part of the catalog.
var ErrUnknownPlan = errors.New("unknown plan")

// Plan names.
const (
	PlanStandard   = "standard"
	PlanPremium    = "premium"
	PlanEnterprise = "enterprise"
)

// Plan is an entry of the pricing catalog. Prices are in whole dollars; a nil
// price means the plan is sold on request.
type Plan struct {
	Name         string `json:"name"                   yaml:"name"`
	Title        string `json:"title"                  yaml:"title"`
	MonthlyPrice *int   `json:"monthlyPrice,omitempty" yaml:"monthlyPrice,omitempty"`
	YearlyPrice  *int   `json:"yearlyPrice,omitempty"  yaml:"yearlyPrice,omitempty"`
	Recommended  bool   `json:"recommended"            yaml:"recommended"`
	ContactUs    bool   `json:"contactUs"              yaml:"contactUs"`
}

func price(v int) *int {
	return &v
}

// Plans returns the pricing catalog in display order.
func Plans() []Plan {
	return []Plan{
		{
			Name:         PlanStandard,
			Title:        "Standard",
			MonthlyPrice: price(99),
			YearlyPrice:  price(990),
		},
		{
			Name:         PlanPremium,
			Title:        "Premium",
			MonthlyPrice: price(299),
			YearlyPrice:  price(2990),
			Recommended:  true,
		},
		{
			Name:      PlanEnterprise,
			Title:     "Enterprise",
			ContactUs: true,
		},
	}
}

// LookupPlan finds a catalog plan by name, ignoring case.
func LookupPlan(name string) (Plan, bool) {
	name = strings.ToLower(strings.TrimSpace(name))

	for _, plan := range Plans() {
		if plan.Name == name {
			return plan, true
		}
	}

	return Plan{}, false
}
