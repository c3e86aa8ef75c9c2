package credit

import "strings"

// DueDateRule decides how many days a counterparty has to return pallets
type DueDateRule interface {
	ComputeDueDays(region string, routeFlag bool) int
}

// DueDateRuleFunc adapts a function to DueDateRule
type DueDateRuleFunc func(region string, routeFlag bool) int

// ComputeDueDays implements DueDateRule
func (f DueDateRuleFunc) ComputeDueDays(region string, routeFlag bool) int {
	return f(region, routeFlag)
}

// HomeStateRule grants a short term inside the home state or on dedicated
// routes and a long term everywhere else.
type HomeStateRule struct {
	HomeState     string
	ShortTermDays int
	LongTermDays  int
}

// DefaultDueDateRule returns the 7/30 day rule for the given home state
func DefaultDueDateRule(homeState string) HomeStateRule {
	return HomeStateRule{
		HomeState:     homeState,
		ShortTermDays: 7,
		LongTermDays:  30,
	}
}

// ComputeDueDays implements DueDateRule
func (r HomeStateRule) ComputeDueDays(region string, routeFlag bool) int {
	if routeFlag {
		return r.ShortTermDays
	}
	if r.HomeState != "" && StateOf(region) == strings.ToUpper(r.HomeState) {
		return r.ShortTermDays
	}
	return r.LongTermDays
}

// StateOf extracts the state code from a region such as "SP", "SP/Campinas" or "Campinas-SP"
func StateOf(region string) string {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		return ""
	}
	parts := strings.FieldsFunc(region, func(r rune) bool {
		return r == '/' || r == '-' || r == ',' || r == ' '
	})
	for _, p := range parts {
		if len(p) == 2 {
			return p
		}
	}
	return parts[0]
}
