package api

import (
	"net/http"

	"github.com/gorilla/mux"

	dealApp "github.com/fd1az/fxdesk/business/deal/app"
	dealDomain "github.com/fd1az/fxdesk/business/deal/domain"
)

type listDealsResponse struct {
	Deals []dealDomain.Deal `json:"deals"`
	Count int               `json:"count"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type cancelResponse struct {
	DealID    string `json:"dealId"`
	Cancelled bool   `json:"cancelled"`
}

// POST /api/v1/deals
func (s *Server) createDeal(w http.ResponseWriter, r *http.Request) {
	var req dealApp.CreateDealRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	deal, err := s.deps.Deals.CreateDeal(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, deal)
}

// GET /api/v1/deals?partnerId=&symbol=&status=&from=&to=&limit=&offset=
func (s *Server) listDeals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := dealDomain.ListFilter{
		PartnerID: q.Get("partnerId"),
		Symbol:    q.Get("symbol"),
	}

	var err error
	if raw := q.Get("status"); raw != "" {
		if filter.Status, err = dealDomain.ParseStatus(raw); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if filter.From, err = queryTime(r, "from"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if filter.To, err = queryTime(r, "to"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		s.writeError(w, r, err)
		return
	}

	deals, err := s.deps.Deals.ListDeals(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if deals == nil {
		deals = []dealDomain.Deal{}
	}
	s.writeJSON(w, r, http.StatusOK, listDealsResponse{Deals: deals, Count: len(deals)})
}

// GET /api/v1/deals/stats?partnerId=&from=&to=
func (s *Server) dealStats(w http.ResponseWriter, r *http.Request) {
	filter := dealApp.StatsFilter{PartnerID: r.URL.Query().Get("partnerId")}

	var err error
	if filter.From, err = queryTime(r, "from"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if filter.To, err = queryTime(r, "to"); err != nil {
		s.writeError(w, r, err)
		return
	}

	stats, err := s.deps.Deals.GetDealStats(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, stats)
}

// GET /api/v1/deals/{id}
func (s *Server) getDeal(w http.ResponseWriter, r *http.Request) {
	deal, err := s.deps.Deals.GetDeal(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, deal)
}

// POST /api/v1/deals/{id}/approve
func (s *Server) approveDeal(w http.ResponseWriter, r *http.Request) {
	deal, err := s.deps.Deals.ApproveDeal(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, deal)
}

// POST /api/v1/deals/{id}/execute runs the deal synchronously. Handled
// execution failures come back as 200 with success false.
func (s *Server) executeDeal(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Deals.ExecuteDeal(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, result)
}

// POST /api/v1/deals/{id}/cancel with an optional {"reason": "..."} body.
func (s *Server) cancelDeal(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	id := mux.Vars(r)["id"]
	ok, err := s.deps.Deals.CancelDeal(r.Context(), id, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, cancelResponse{DealID: id, Cancelled: ok})
}
