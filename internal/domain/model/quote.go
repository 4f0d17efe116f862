// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// CompanyIdentity identifies the company behind a quote.
// NationalID carries the SIREN/SIRET number when known.
type CompanyIdentity struct {
	Name       string `json:"name"`
	NationalID string `json:"national_id,omitempty"`
}

// LineItem is a single itemized position of a quote.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
	Category    string  `json:"category,omitempty"`
}

// ProjectMeta describes the project the quote belongs to.
type ProjectMeta struct {
	Type         string `json:"type"`            // e.g. "renovation", "new_build", "extension"
	Region       string `json:"region"`          // administrative region code or name
	TradeType    string `json:"trade_type,omitempty"` // e.g. "plomberie", "electricite"
	DurationDays int    `json:"duration_days,omitempty"` // stated execution timeline, 0 = not stated
}

// EnrichmentRequest is the immutable input to the enrichment and scoring
// pipeline. Callers construct it once per analysis; the engine never
// mutates it.
type EnrichmentRequest struct {
	Company CompanyIdentity `json:"company"`
	Items   []LineItem      `json:"items"`
	Project ProjectMeta     `json:"project"`

	// QuotedAt is the quote's own date, used instead of wall-clock time so
	// that re-scoring a historical quote stays reproducible.
	QuotedAt time.Time `json:"quoted_at,omitempty"`
}

// Total returns the sum of all line item totals.
func (r EnrichmentRequest) Total() float64 {
	var sum float64
	for _, it := range r.Items {
		sum += it.TotalPrice
	}
	return sum
}

// Validate checks the structural minimum the pipeline needs to operate.
// Source availability problems are not validation errors; only missing
// identity or an empty quote body is.
func (r EnrichmentRequest) Validate() error {
	if strings.TrimSpace(r.Company.Name) == "" {
		return fmt.Errorf("company name is required")
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("at least one line item is required")
	}
	for i, it := range r.Items {
		if it.TotalPrice < 0 {
			return fmt.Errorf("line item %d: negative total price", i)
		}
	}
	if strings.TrimSpace(r.Project.Region) == "" {
		return fmt.Errorf("project region is required")
	}
	return nil
}
