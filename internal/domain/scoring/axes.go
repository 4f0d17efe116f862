package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/torp/internal/adapters/source"
	"github.com/okian/torp/internal/domain/enrich"
	"github.com/okian/torp/internal/domain/model"
)

// axisResult carries an axis sub-score plus the facts alert and
// recommendation generation needs, so each signal is derived once.
type axisResult struct {
	score int

	// price axis facts
	priceDeviation float64 // signed fraction vs reference, 0 when unknown
	hasPriceRef    bool

	// quality axis facts
	hasReputation bool

	// compliance axis facts
	missingRequiredCert string // required certification absent for the trade
	hasJudgment         bool
}

// rgeTrades lists trade types where the RGE certification is mandatory
// for the client to claim energy-renovation aid.
var rgeTrades = map[string]bool{
	"isolation":    true,
	"chauffage":    true,
	"menuiserie":   true,
	"energie":      true,
	"photovoltaique": true,
}

func clampAxis(v float64) int {
	if v < 0 {
		return 0
	}
	if v > maxAxisScore {
		return maxAxisScore
	}
	return int(math.Round(v))
}

// priceAxis compares the quote's line items against regional reference
// prices. Deviation inside the tolerance band keeps a full score; past
// it the score drops linearly, floored at zero. Both overpriced and
// suspiciously underpriced quotes are penalized.
func (e *Engine) priceAxis(record model.EnrichmentRequest, enr enrich.Result) axisResult {
	payload, ok := enr.Payload(source.PriceReference)
	if !ok {
		return axisResult{score: neutralScore}
	}
	book, ok := payload.(source.PriceBook)
	if !ok {
		return axisResult{score: neutralScore}
	}

	var expected, actual float64
	for _, item := range record.Items {
		ref, found := book.ReferencePrices[strings.ToLower(item.Category)]
		if !found || ref <= 0 || item.Quantity <= 0 {
			continue
		}
		expected += ref * item.Quantity
		actual += item.TotalPrice
	}
	if expected <= 0 {
		// No category matched the price book; no basis for comparison.
		return axisResult{score: neutralScore}
	}

	deviation := (actual - expected) / expected
	abs := math.Abs(deviation)
	score := float64(maxAxisScore)
	if abs > e.priceTol {
		score -= (abs - e.priceTol) * priceSlope
	}
	return axisResult{
		score:          clampAxis(score),
		priceDeviation: deviation,
		hasPriceRef:    true,
	}
}

// qualityAxis derives company quality from reputation and certification
// signals. Absence of any signal maps to the neutral mid-range score:
// no evidence is not evidence of poor work.
func (e *Engine) qualityAxis(_ model.EnrichmentRequest, enr enrich.Result) axisResult {
	res := axisResult{score: neutralScore}

	base := float64(neutralScore)
	signal := false

	if payload, ok := enr.Payload(source.Reputation); ok {
		if rep, ok := payload.(source.ReputationData); ok && rep.ReviewCount > 0 {
			// 0-5 rating stretched over the axis range.
			base = rep.Rating * (maxAxisScore / 5.0)
			res.hasReputation = true
			signal = true
		}
	}

	var bonus float64
	if payload, ok := enr.Payload(source.Compliance); ok {
		if comp, ok := payload.(source.ComplianceData); ok && len(comp.Certifications) > 0 {
			// Held certifications lift quality modestly, capped so that
			// certificates alone cannot outweigh reputation.
			bonus = math.Min(float64(len(comp.Certifications))*40, 120)
			signal = true
		}
	}

	if payload, ok := enr.Payload(source.CompanyRegistry); ok {
		if reg, ok := payload.(source.RegistryData); ok && reg.Registered {
			// Longevity is a weak positive signal.
			bonus += math.Min(float64(reg.YearsActive), 20) * 5
			signal = true
		}
	}

	if !signal {
		return res
	}
	res.score = clampAxis(base + bonus)
	return res
}

// delayAxis compares the stated execution timeline against the
// regional/project-type benchmark. Promising far less time than the
// regional norm scores as badly as far overrunning it.
func (e *Engine) delayAxis(record model.EnrichmentRequest, enr enrich.Result, opts Options) axisResult {
	stated := record.Project.DurationDays
	if stated <= 0 {
		return axisResult{score: neutralScore}
	}

	payload, ok := enr.Payload(source.Regional)
	if !ok {
		return axisResult{score: neutralScore}
	}
	bench, ok := payload.(source.RegionalBenchmarks)
	if !ok {
		return axisResult{score: neutralScore}
	}
	typical, ok := bench.TypicalDurationDays[opts.ProjectType]
	if !ok || typical <= 0 {
		return axisResult{score: neutralScore}
	}

	gap := math.Abs(float64(stated-typical)) / float64(typical)
	score := float64(maxAxisScore) - gap*800

	if wp, ok := enr.Payload(source.Weather); ok {
		if w, ok := wp.(source.WeatherRisk); ok && stated < typical {
			// Overpromising into known weather slip compounds the risk.
			score -= math.Min(w.DelayRiskDays*10, 200)
		}
	}
	return axisResult{score: clampAxis(score)}
}

// complianceAxis scores regulatory standing: certifications required for
// the trade, insurance, sanctions and risk-zone coverage.
func (e *Engine) complianceAxis(record model.EnrichmentRequest, enr enrich.Result, _ Options) axisResult {
	res := axisResult{score: neutralScore}

	if payload, ok := enr.Payload(source.Financial); ok {
		if fin, ok := payload.(source.FinancialData); ok {
			res.hasJudgment = fin.HasJudgment
		}
	}

	payload, ok := enr.Payload(source.Compliance)
	if !ok {
		// Even without compliance data, a mandatory certification we
		// cannot confirm is worth surfacing for RGE trades.
		if rgeTrades[strings.ToLower(record.Project.TradeType)] {
			res.missingRequiredCert = "RGE"
		}
		return res
	}
	comp, ok := payload.(source.ComplianceData)
	if !ok {
		return res
	}

	score := 600.0
	if comp.InsuranceValid {
		score += 200
	} else {
		score -= 150
	}
	score -= float64(comp.Sanctions) * 200

	if rgeTrades[strings.ToLower(record.Project.TradeType)] {
		if hasCert(comp.Certifications, "RGE") {
			score += 200
		} else {
			res.missingRequiredCert = "RGE"
			score -= 250
		}
	}

	if rp, ok := enr.Payload(source.Regional); ok {
		if bench, ok := rp.(source.RegionalBenchmarks); ok && bench.RiskZone && !comp.InsuranceValid {
			score -= 150
		}
	}
	if res.hasJudgment {
		score -= 150
	}

	res.score = clampAxis(score)
	return res
}

func hasCert(certs []string, want string) bool {
	for _, c := range certs {
		if strings.EqualFold(strings.TrimSpace(c), want) {
			return true
		}
	}
	return false
}

// alerts derives the alert list from axis results and enrichment, in a
// fixed order so output is reproducible.
func (e *Engine) alerts(axes map[Axis]axisResult, enr enrich.Result) []Alert {
	alerts := []Alert{}

	for _, axis := range axisOrder {
		if axes[axis].score < e.lowAxis {
			alerts = append(alerts, Alert{
				Severity: SeverityWarning,
				Axis:     axis,
				Code:     "low_axis_score",
				Message:  fmt.Sprintf("%s score %d below threshold %d", axis, axes[axis].score, e.lowAxis),
			})
		}
	}

	price := axes[AxisPrice]
	if price.hasPriceRef && math.Abs(price.priceDeviation) >= e.severeTol {
		direction := "above"
		if price.priceDeviation < 0 {
			direction = "below"
		}
		alerts = append(alerts, Alert{
			Severity: SeverityCritical,
			Axis:     AxisPrice,
			Code:     "severe_price_deviation",
			Message:  fmt.Sprintf("quote is %.0f%% %s regional reference prices", math.Abs(price.priceDeviation)*100, direction),
		})
	}

	comp := axes[AxisCompliance]
	if comp.missingRequiredCert != "" {
		alerts = append(alerts, Alert{
			Severity: SeverityCritical,
			Axis:     AxisCompliance,
			Code:     "missing_required_certification",
			Message:  fmt.Sprintf("required certification %s not held or not confirmed", comp.missingRequiredCert),
		})
	}
	if comp.hasJudgment {
		alerts = append(alerts, Alert{
			Severity: SeverityWarning,
			Axis:     AxisCompliance,
			Code:     "collective_proceedings",
			Message:  "company has collective proceedings on record",
		})
	}

	if len(enr.Sources) == 0 {
		alerts = append(alerts, Alert{
			Severity: SeverityInfo,
			Code:     "no_enrichment_data",
			Message:  "no external source contributed; score based on neutral defaults",
		})
	}
	return alerts
}

// recommendations derives advisory actions, distinct from alerts, in a
// fixed order.
func (e *Engine) recommendations(record model.EnrichmentRequest, enr enrich.Result, axes map[Axis]axisResult) []Recommendation {
	recs := []Recommendation{}

	if axes[AxisCompliance].missingRequiredCert != "" {
		recs = append(recs, Recommendation{
			Code:    "request_certificate",
			Message: fmt.Sprintf("request a copy of the %s certificate before signing", axes[AxisCompliance].missingRequiredCert),
		})
	}
	if price := axes[AxisPrice]; price.hasPriceRef && math.Abs(price.priceDeviation) > e.priceTol {
		recs = append(recs, Recommendation{
			Code:    "compare_quotes",
			Message: "obtain at least two comparison quotes for this work",
		})
	}
	if !axes[AxisQuality].hasReputation {
		recs = append(recs, Recommendation{
			Code:    "ask_references",
			Message: "no public reviews found; ask the company for client references",
		})
	}
	if record.Company.NationalID == "" {
		recs = append(recs, Recommendation{
			Code:    "provide_national_id",
			Message: "provide the company SIREN/SIRET to improve enrichment coverage",
		})
	}
	if enr.Confidence < 80 {
		recs = append(recs, Recommendation{
			Code:    "partial_enrichment",
			Message: "several data sources were unavailable; treat this score as indicative",
		})
	}
	return recs
}
