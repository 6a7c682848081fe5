package httpapi

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/delta/auction-house-server/biddingengine"
	"github.com/delta/auction-house-server/lifecycle"
	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/session"
)

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(resp http.ResponseWriter, req *http.Request) {
	var body registerRequest
	if err := readJSON(req, &body); err != nil {
		s.writeError(resp, err, nil)
		return
	}

	user, err := s.sessions.Register(req.Context(), body.Email, body.Name, body.Phone, body.Password)
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}
	writeJSON(resp, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

func (s *Server) handleLogin(resp http.ResponseWriter, req *http.Request) {
	var l = s.logger.WithFields(logrus.Fields{
		"method":     "handleLogin",
		"param_addr": clientAddr(req),
	})

	if s.authLimiter != nil {
		if res := s.authLimiter.Check("auth:" + clientAddr(req)); !res.Allowed {
			l.Warnf("Too many login attempts")
			s.writeError(resp, models.RateLimitedError{RetryAfter: res.ResetInterval}, nil)
			return
		}
	}

	var body loginRequest
	if err := readJSON(req, &body); err != nil {
		s.writeError(resp, err, nil)
		return
	}

	sess, user, err := s.sessions.Login(req.Context(), body.Email, body.Password)
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}
	writeJSON(resp, http.StatusOK, loginResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: user})
}

func (s *Server) handleLogout(resp http.ResponseWriter, req *http.Request, sess *session.Session) {
	s.sessions.Logout(sess.Token)
	resp.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAuctions(resp http.ResponseWriter, req *http.Request) {
	auctions, err := s.engine.Auctions(req.Context(), false)
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}
	writeJSON(resp, http.StatusOK, auctions)
}

type auctionResponse struct {
	Auction *models.Auction    `json:"auction"`
	Lots    []*models.LotState `json:"lots"`
}

func (s *Server) handleGetAuction(resp http.ResponseWriter, req *http.Request) {
	id, err := pathId(req, "id")
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}

	auction, err := s.engine.Auction(req.Context(), id)
	if err == nil && auction.Status == lifecycle.AuctionDraft {
		err = models.NotFoundError{Entity: "Auction", Id: id}
	}
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}
	lots, err := s.engine.AuctionSnapshot(req.Context(), id)
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}
	writeJSON(resp, http.StatusOK, auctionResponse{Auction: auction, Lots: lots})
}

func (s *Server) handleRegisterBidder(resp http.ResponseWriter, req *http.Request, sess *session.Session) {
	id, err := pathId(req, "id")
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}

	reg, err := s.engine.RegisterBidder(req.Context(), id, sess.UserId)
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}
	writeJSON(resp, http.StatusCreated, reg)
}

func (s *Server) handleGetLot(resp http.ResponseWriter, req *http.Request) {
	id, err := pathId(req, "id")
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}

	st, err := s.engine.Snapshot(req.Context(), id)
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}
	writeJSON(resp, http.StatusOK, st)
}

type placeBidRequest struct {
	Amount int64          `json:"amount"`
	Type   models.BidType `json:"type"`
}

type placeBidResponse struct {
	Bid            *models.BidView  `json:"bid"`
	NextMinimumBid int64            `json:"next_minimum_bid"`
	Lot            *models.LotState `json:"lot"`
}

func (s *Server) handlePlaceBid(resp http.ResponseWriter, req *http.Request, sess *session.Session) {
	id, err := pathId(req, "id")
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}
	var body placeBidRequest
	if err := readJSON(req, &body); err != nil {
		s.writeError(resp, err, nil)
		return
	}

	res, err := s.engine.PlaceBid(req.Context(), biddingengine.PlaceBidRequest{
		LotId:    id,
		BidderId: sess.UserId,
		Amount:   body.Amount,
		Type:     body.Type,
	})
	if err != nil {
		s.writeError(resp, err, s.lotState(req.Context(), id))
		return
	}

	writeJSON(resp, http.StatusCreated, placeBidResponse{
		Bid:            res.Bid.ToView(),
		NextMinimumBid: res.NextMinimumBid,
		Lot:            res.Lot,
	})
}

type maxBidRequest struct {
	MaxAmount int64 `json:"max_amount"`
}

type maxBidResponse struct {
	MaxAmount int64            `json:"max_amount"`
	Lot       *models.LotState `json:"lot,omitempty"`
}

func (s *Server) handleGetMaxBid(resp http.ResponseWriter, req *http.Request, sess *session.Session) {
	id, err := pathId(req, "id")
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}

	ab, err := s.engine.GetMaxBid(req.Context(), id, sess.UserId)
	if err == models.ErrNoMaxBid {
		writeJSON(resp, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}
	writeJSON(resp, http.StatusOK, maxBidResponse{MaxAmount: ab.MaxAmount})
}

func (s *Server) handleSetMaxBid(resp http.ResponseWriter, req *http.Request, sess *session.Session) {
	id, err := pathId(req, "id")
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}
	var body maxBidRequest
	if err := readJSON(req, &body); err != nil {
		s.writeError(resp, err, nil)
		return
	}

	res, err := s.engine.SetMaxBid(req.Context(), id, sess.UserId, body.MaxAmount)
	if err != nil {
		s.writeError(resp, err, s.lotState(req.Context(), id))
		return
	}
	writeJSON(resp, http.StatusOK, maxBidResponse{MaxAmount: res.MaxBid.MaxAmount, Lot: res.Lot})
}

func (s *Server) handleCancelMaxBid(resp http.ResponseWriter, req *http.Request, sess *session.Session) {
	id, err := pathId(req, "id")
	if err != nil {
		s.writeError(resp, err, nil)
		return
	}

	if err := s.engine.CancelMaxBid(req.Context(), id, sess.UserId); err != nil {
		s.writeError(resp, err, s.lotState(req.Context(), id))
		return
	}
	resp.WriteHeader(http.StatusNoContent)
}
