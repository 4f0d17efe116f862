package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/torp/internal/domain/benchmark"
	"github.com/okian/torp/internal/domain/enrich"
	"github.com/okian/torp/internal/domain/model"
	"github.com/okian/torp/internal/domain/scoring"
)

const maxBodyBytes = 1 << 20

// analyzeRequest mirrors the POST /v1/analyze and /v1/enrich body.
type analyzeRequest struct {
	Record model.EnrichmentRequest `json:"record"`
	Options struct {
		Region      string `json:"region,omitempty"`
		ProjectType string `json:"project_type,omitempty"`
	} `json:"options"`
}

// benchmarkRequest mirrors the POST /v1/benchmark body.
type benchmarkRequest struct {
	SampleSize int        `json:"sample_size"`
	From       *time.Time `json:"from,omitempty"`
	To         *time.Time `json:"to,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	score, err := s.deps.Analyze(r.Context(), req.Record, scoring.Options{
		Region:      req.Options.Region,
		ProjectType: req.Options.ProjectType,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.deps.Enrich(r.Context(), req.Record)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, enrichResponse(res))
}

func (s *Server) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	var req benchmarkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var dr *benchmark.DateRange
	if req.From != nil || req.To != nil {
		dr = &benchmark.DateRange{}
		if req.From != nil {
			dr.From = *req.From
		}
		if req.To != nil {
			dr.To = *req.To
		}
	}
	res, err := s.deps.Benchmark(r.Context(), req.SampleSize, dr)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// sourceOutcome is the wire shape of one source's enrichment outcome.
type sourceOutcome struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Reason string `json:"reason,omitempty"`
	Cached bool   `json:"cached,omitempty"`
}

// enrichResponse flattens the Result for JSON, keyed by source name.
func enrichResponse(res enrich.Result) map[string]any {
	outcomes := make(map[string]sourceOutcome, len(res.Outcomes))
	for name, o := range res.Outcomes {
		so := sourceOutcome{Cached: o.Cached}
		if o.Status == enrich.StatusSuccess {
			so.Status = "success"
			so.Data = o.Data
		} else {
			so.Status = "unavailable"
			so.Reason = o.Reason
		}
		outcomes[string(name)] = so
	}
	sources := make([]string, len(res.Sources))
	for i, n := range res.Sources {
		sources[i] = string(n)
	}
	return map[string]any{
		"outcomes":   outcomes,
		"sources":    sources,
		"confidence": res.Confidence,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return false
	}
	return true
}

// writeDomainError maps domain error kinds to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, enrich.ErrInvalidRequest), errors.Is(err, scoring.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, benchmark.ErrSampleFetch):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
