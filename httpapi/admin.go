package httpapi

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/delta/auction-house-server/biddingengine"
	"github.com/delta/auction-house-server/lifecycle"
	"github.com/delta/auction-house-server/premium"
	"github.com/delta/auction-house-server/session"
)

type createAuctionRequest struct {
	Title           string           `json:"title"`
	StartsAt        time.Time        `json:"starts_at"`
	EndsAt          time.Time        `json:"ends_at"`
	FlatPremiumRate *decimal.Decimal `json:"flat_premium_rate"`
	Tiers           []premium.Tier   `json:"tiers"`
}

func (s *Server) handleCreateAuction(resp http.ResponseWriter, req *http.Request, sess *session.Session) {
	var body createAuctionRequest
	if err := readJSON(req, &body); err != nil {
		s.writeError(resp, err, nil)
		return
	}

	auction, err := s.engine.CreateAuction(req.Context(), biddingengine.CreateAuctionRequest{
		Title:           body.Title,
		StartsAt:        body.StartsAt,
		EndsAt:          body.EndsAt,
		FlatPremiumRate: body.FlatPremiumRate,
		Tiers:           body.Tiers,
	}, sess.UserId)
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}
	writeJSON(resp, http.StatusCreated, auction)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleAuctionStatus(resp http.ResponseWriter, req *http.Request, sess *session.Session) {
	id, err := pathId(req, "id")
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}
	var body statusRequest
	if err := readJSON(req, &body); err != nil {
		s.writeError(resp, err, nil)
		return
	}

	auction, err := s.engine.TransitionAuction(req.Context(), id, lifecycle.AuctionStatus(body.Status), sess.UserId)
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}
	writeJSON(resp, http.StatusOK, auction)
}

type tiersRequest struct {
	Tiers []premium.Tier `json:"tiers"`
}

func (s *Server) handleSetTiers(resp http.ResponseWriter, req *http.Request, sess *session.Session) {
	id, err := pathId(req, "id")
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}
	var body tiersRequest
	if err := readJSON(req, &body); err != nil {
		s.writeError(resp, err, nil)
		return
	}

	if err := s.engine.SetPremiumTiers(req.Context(), id, body.Tiers, sess.UserId); err != nil {
		s.writeError(resp, err, nil)
		return
	}
	resp.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleApprove(resp http.ResponseWriter, req *http.Request, sess *session.Session) {
	id, err := pathId(req, "id")
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}
	bidder, err := pathId(req, "bidder")
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}

	reg, err := s.engine.ApproveRegistration(req.Context(), id, bidder, sess.UserId)
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}
	writeJSON(resp, http.StatusOK, reg)
}

type createLotRequest struct {
	AuctionId    uint32 `json:"auction_id"`
	LotNumber    uint32 `json:"lot_number"`
	Title        string `json:"title"`
	EstimateLow  int64  `json:"estimate_low"`
	EstimateHigh int64  `json:"estimate_high"`
	StartingBid  int64  `json:"starting_bid"`
	ReservePrice int64  `json:"reserve_price"`
}

func (s *Server) handleCreateLot(resp http.ResponseWriter, req *http.Request, sess *session.Session) {
	var body createLotRequest
	if err := readJSON(req, &body); err != nil {
		s.writeError(resp, err, nil)
		return
	}

	lot, err := s.engine.CreateLot(req.Context(), biddingengine.CreateLotRequest(body), sess.UserId)
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}
	writeJSON(resp, http.StatusCreated, lot)
}

func (s *Server) handleLotStatus(resp http.ResponseWriter, req *http.Request, sess *session.Session) {
	id, err := pathId(req, "id")
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}
	var body statusRequest
	if err := readJSON(req, &body); err != nil {
		s.writeError(resp, err, nil)
		return
	}

	st, err := s.engine.TransitionLot(req.Context(), id, lifecycle.LotStatus(body.Status), sess.UserId)
	if err != nil {
		s.writeError(resp, err, s.lotState(req.Context(), id))
		return
	}
	writeJSON(resp, http.StatusOK, st)
}

type retractRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRetract(resp http.ResponseWriter, req *http.Request, sess *session.Session) {
	id, err := pathId(req, "id")
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}
	var body retractRequest
	if err := readJSON(req, &body); err != nil {
		s.writeError(resp, err, nil)
		return
	}

	res, err := s.engine.RetractBid(req.Context(), id, body.Reason, sess.UserId)
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}
	writeJSON(resp, http.StatusOK, res.Lot)
}
