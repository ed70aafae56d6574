package aggs

import (
	"regexp"

	"github.com/telhawk-systems/logsearch/logsearch/internal/dsl"
)

// RegionKind is the drill-down level a region token selects.
type RegionKind int

const (
	// RegionWorld aggregates countries.
	RegionWorld RegionKind = iota
	// RegionCountryOnly aggregates US states.
	RegionCountryOnly
	// RegionCountryState aggregates cities of one US state.
	RegionCountryState
	// RegionCountryToken aggregates cities of an arbitrary country.
	RegionCountryToken
)

func (k RegionKind) String() string {
	switch k {
	case RegionWorld:
		return "world"
	case RegionCountryOnly:
		return "country"
	case RegionCountryState:
		return "country_state"
	case RegionCountryToken:
		return "country_token"
	}
	return "unknown"
}

const (
	regionTokenWorld = "world"
	countryUS        = "US"
)

var usStatePattern = regexp.MustCompile(`^(US)-([A-Z]{2})$`)

// RegionPlan is the resolved drill-down for one region token.
type RegionPlan struct {
	Kind    RegionKind
	Country string
	State   string
}

// ClassifyRegion decides the drill-down level for token. An empty token is
// the world view.
func ClassifyRegion(token string) RegionPlan {
	switch {
	case token == "" || token == regionTokenWorld:
		return RegionPlan{Kind: RegionWorld}
	case token == countryUS:
		return RegionPlan{Kind: RegionCountryOnly, Country: countryUS}
	}
	if m := usStatePattern.FindStringSubmatch(token); m != nil {
		return RegionPlan{Kind: RegionCountryState, Country: m[1], State: m[2]}
	}
	return RegionPlan{Kind: RegionCountryToken, Country: token}
}

// Field is the location field bucketed at this level.
func (p RegionPlan) Field() string {
	switch p.Kind {
	case RegionCountryOnly:
		return FieldRegion
	case RegionCountryState, RegionCountryToken:
		return FieldCity
	default:
		return FieldCountry
	}
}

// Filters narrows the search to the selected country and state.
func (p RegionPlan) Filters() []dsl.Query {
	var filters []dsl.Query
	if p.Country != "" {
		filters = append(filters, dsl.Term{Field: FieldCountry, Value: p.Country})
	}
	if p.State != "" {
		filters = append(filters, dsl.Term{Field: FieldRegion, Value: p.State})
	}
	return filters
}

// Aggregations buckets the level's field and counts documents lacking it.
func (p RegionPlan) Aggregations() []Named {
	field := p.Field()
	return []Named{
		{Name: NameRegions, Agg: dsl.TermsAgg{Field: field, Size: regionSize}},
		{Name: NameMissingRegions, Agg: dsl.MissingAgg{Field: field}},
	}
}
