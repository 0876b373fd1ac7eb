package api

import (
	"net/http"

	pricingDomain "github.com/fd1az/fxdesk/business/pricing/domain"
	"github.com/fd1az/fxdesk/internal/apperror"
)

// rateRequest is the body of the calculate endpoints. The caller supplies
// the spot observation; use the quote endpoint to price from the feed.
type rateRequest struct {
	Symbol    string                  `json:"symbol"`
	Spot      *pricingDomain.SpotRate `json:"spot"`
	PartnerID string                  `json:"partnerId,omitempty"`
}

func (req rateRequest) validate() error {
	if req.Symbol == "" {
		return apperror.New(apperror.CodeRequiredField, apperror.WithContext("symbol"))
	}
	if req.Spot == nil {
		return apperror.New(apperror.CodeRequiredField, apperror.WithContext("spot"))
	}
	if req.Spot.Symbol == "" {
		req.Spot.Symbol = req.Symbol
	}
	return nil
}

// POST /api/v1/rates/calculate
func (s *Server) calculateRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.Pricer.CalculateRate(r.Context(), req.Symbol, *req.Spot, req.PartnerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, result)
}

// POST /api/v1/rates/volatility-adjusted
func (s *Server) volatilityAdjustedRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.Pricer.CalculateVolatilityAdjustedRate(r.Context(), req.Symbol, *req.Spot)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, result)
}

// GET /api/v1/rates/quote?symbol=&partnerId=
func (s *Server) quote(w http.ResponseWriter, r *http.Request) {
	symbol, err := requireQuery(r, "symbol")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.Pricer.Quote(r.Context(), symbol, r.URL.Query().Get("partnerId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, result)
}

// GET /api/v1/volatility?symbol=&hours=
func (s *Server) analyzeVolatility(w http.ResponseWriter, r *http.Request) {
	symbol, err := requireQuery(r, "symbol")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	hours, err := queryInt(r, "hours")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	analysis, err := s.deps.Volatility.AnalyzeVolatility(r.Context(), symbol, hours)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, analysis)
}

// POST /api/v1/spread-configs
func (s *Server) saveSpreadConfig(w http.ResponseWriter, r *http.Request) {
	var cfg pricingDomain.FixedSpreadConfig
	if err := decodeJSON(r, &cfg); err != nil {
		s.writeError(w, r, err)
		return
	}

	saved, err := s.deps.Configs.SaveFixedSpreadConfig(r.Context(), cfg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, saved)
}

// POST /api/v1/volatility-configs
func (s *Server) saveVolatilityConfig(w http.ResponseWriter, r *http.Request) {
	var cfg pricingDomain.VolatilitySpreadConfig
	if err := decodeJSON(r, &cfg); err != nil {
		s.writeError(w, r, err)
		return
	}

	saved, err := s.deps.Configs.SaveVolatilityConfig(r.Context(), cfg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, saved)
}

// GET /api/v1/spread-configs/active?symbol=&partnerId=
func (s *Server) activeSpreadConfig(w http.ResponseWriter, r *http.Request) {
	symbol, err := requireQuery(r, "symbol")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	partnerID := r.URL.Query().Get("partnerId")

	cfg, err := s.deps.Configs.GetActiveFixedSpreadConfig(r.Context(), symbol, partnerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if cfg == nil {
		s.writeError(w, r, apperror.NotFound(apperror.CodeSpreadConfigNotFound, symbol))
		return
	}
	s.writeJSON(w, r, http.StatusOK, cfg)
}
