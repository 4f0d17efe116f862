// Package source defines the contract for external enrichment data
// providers and the typed payloads they return.
//
// Each provider is a black box behind the Adapter interface: given an
// enrichment request it either returns a typed payload or fails. The
// aggregator treats any failure, including a timeout, as "source
// unavailable" and carries on.
package source

import (
	"context"

	"github.com/okian/torp/internal/adapters/cache"
	"github.com/okian/torp/internal/domain/model"
)

// Name identifies an enrichment source.
type Name string

// Known sources. Priority order lives in Priority below.
const (
	CompanyRegistry Name = "company_registry"
	Financial       Name = "financial"
	Reputation      Name = "reputation"
	PriceReference  Name = "price_reference"
	Regional        Name = "regional"
	Compliance      Name = "compliance"
	Weather         Name = "weather"
)

// Priority is the fixed merge order for enrichment results. Aggregation
// output is keyed by this order, never by adapter completion order, so
// that identical inputs produce identical results.
var Priority = []Name{
	CompanyRegistry,
	Financial,
	Reputation,
	PriceReference,
	Regional,
	Compliance,
	Weather,
}

// Adapter fetches enrichment data from a single external provider.
type Adapter interface {
	// Name returns the source identifier used for cache keys and merging.
	Name() Name

	// Class returns the cache data class governing the TTL of results.
	Class() cache.Class

	// Fetch retrieves data for the request, honoring ctx for cancellation
	// and deadline. Any returned error marks the source unavailable for
	// this request.
	Fetch(ctx context.Context, req model.EnrichmentRequest) (Payload, error)
}

// Payload is the data returned by a source adapter. Each source has a
// fixed schema; the marker method keeps arbitrary types out of the set.
type Payload interface {
	source() Name
}

// RegistryData is the company registry record (existence, age, status).
type RegistryData struct {
	Registered   bool   `json:"registered"`
	LegalForm    string `json:"legal_form,omitempty"`
	YearsActive  int    `json:"years_active"`
	Active       bool   `json:"active"`
	ActivityCode string `json:"activity_code,omitempty"`
}

// FinancialData summarizes solvency signals for the company.
type FinancialData struct {
	Revenue       float64 `json:"revenue"`
	SolvencyScore int     `json:"solvency_score"` // 0-100
	HasJudgment   bool    `json:"has_judgment"`   // collective proceedings on record
}

// ReputationData aggregates public review signals.
type ReputationData struct {
	Rating      float64 `json:"rating"` // 0-5
	ReviewCount int     `json:"review_count"`
}

// PriceBook lists regional reference prices by work category.
type PriceBook struct {
	Region string `json:"region"`
	// ReferencePrices maps a line item category to the expected unit
	// price for the region.
	ReferencePrices map[string]float64 `json:"reference_prices"`
	// ReferenceTotalPerSqm is a fallback when no category matches.
	ReferenceTotalPerSqm float64 `json:"reference_total_per_sqm,omitempty"`
}

// RegionalBenchmarks carries region/project-type execution norms.
type RegionalBenchmarks struct {
	Region string `json:"region"`
	// TypicalDurationDays maps project type to the usual execution time.
	TypicalDurationDays map[string]int `json:"typical_duration_days"`
	RiskZone            bool           `json:"risk_zone"` // flood/seismic zone
}

// ComplianceData lists held certifications and regulatory findings.
type ComplianceData struct {
	Certifications []string `json:"certifications"` // e.g. "RGE", "QUALIBAT"
	InsuranceValid bool     `json:"insurance_valid"`
	Sanctions      int      `json:"sanctions"`
}

// WeatherRisk describes seasonal weather exposure for the region.
type WeatherRisk struct {
	Region        string  `json:"region"`
	DelayRiskDays float64 `json:"delay_risk_days"` // expected weather-caused slip
}

func (RegistryData) source() Name       { return CompanyRegistry }
func (FinancialData) source() Name      { return Financial }
func (ReputationData) source() Name     { return Reputation }
func (PriceBook) source() Name          { return PriceReference }
func (RegionalBenchmarks) source() Name { return Regional }
func (ComplianceData) source() Name     { return Compliance }
func (WeatherRisk) source() Name        { return Weather }
