// Package httpapi is the JSON REST surface of the auction house
package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/delta/auction-house-server/biddingengine"
	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/session"
	"github.com/delta/auction-house-server/utils"
)

type Server struct {
	logger *logrus.Entry

	engine      *biddingengine.Engine
	sessions    *session.Manager
	authLimiter biddingengine.Limiter

	mux *http.ServeMux
}

// NewServer builds the REST routes. authLimiter throttles login attempts per
// client address and may be nil.
func NewServer(engine *biddingengine.Engine, sessions *session.Manager, authLimiter biddingengine.Limiter) *Server {
	s := &Server{
		logger: utils.Logger.WithFields(logrus.Fields{
			"module": "httpapi",
		}),
		engine:      engine,
		sessions:    sessions,
		authLimiter: authLimiter,
		mux:         http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /api/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/logout", s.authenticated(s.handleLogout))

	s.mux.HandleFunc("GET /api/auctions", s.handleListAuctions)
	s.mux.HandleFunc("GET /api/auctions/{id}", s.handleGetAuction)
	s.mux.HandleFunc("POST /api/auctions/{id}/registrations", s.authenticated(s.handleRegisterBidder))
	s.mux.HandleFunc("GET /api/lots/{id}", s.handleGetLot)
	s.mux.HandleFunc("POST /api/lots/{id}/bids", s.authenticated(s.handlePlaceBid))
	s.mux.HandleFunc("GET /api/lots/{id}/maxbid", s.authenticated(s.handleGetMaxBid))
	s.mux.HandleFunc("PUT /api/lots/{id}/maxbid", s.authenticated(s.handleSetMaxBid))
	s.mux.HandleFunc("DELETE /api/lots/{id}/maxbid", s.authenticated(s.handleCancelMaxBid))

	s.mux.HandleFunc("POST /api/admin/auctions", s.admin(s.handleCreateAuction))
	s.mux.HandleFunc("POST /api/admin/auctions/{id}/status", s.admin(s.handleAuctionStatus))
	s.mux.HandleFunc("PUT /api/admin/auctions/{id}/tiers", s.admin(s.handleSetTiers))
	s.mux.HandleFunc("POST /api/admin/auctions/{id}/registrations/{bidder}/approve", s.admin(s.handleApprove))
	s.mux.HandleFunc("POST /api/admin/lots", s.admin(s.handleCreateLot))
	s.mux.HandleFunc("POST /api/admin/lots/{id}/status", s.admin(s.handleLotStatus))
	s.mux.HandleFunc("POST /api/admin/bids/{id}/retract", s.admin(s.handleRetract))

	return s
}

// Handle mounts another handler, e.g. the websocket endpoint
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

func (s *Server) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	resp.Header().Add("Access-Control-Allow-Origin", "*")
	resp.Header().Add("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	resp.Header().Add("Access-Control-Allow-Headers", "Content-Type,Authorization,x-grpc-web,sessionid,x-user-agent")
	resp.Header().Add("Access-Control-Max-Age", "600")

	if req.Method == http.MethodOptions {
		resp.WriteHeader(http.StatusNoContent)
		return
	}
	s.mux.ServeHTTP(resp, req)
}

// Token extracts the session token from a request: a bearer token, the
// sessionid header or the sessionid query parameter (for websockets)
func Token(req *http.Request) string {
	if h := req.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if sid := req.Header.Get("sessionid"); sid != "" {
		return sid
	}
	return req.URL.Query().Get("sessionid")
}

type sessionHandler func(resp http.ResponseWriter, req *http.Request, sess *session.Session)

func (s *Server) authenticated(h sessionHandler) http.HandlerFunc {
	return func(resp http.ResponseWriter, req *http.Request) {
		sess, err := s.sessions.Validate(Token(req))
		if err != nil {
			s.writeError(resp, err, nil)
			return
		}
		h(resp, req.WithContext(session.NewContext(req.Context(), sess)), sess)
	}
}

func (s *Server) admin(h sessionHandler) http.HandlerFunc {
	return s.authenticated(func(resp http.ResponseWriter, req *http.Request, sess *session.Session) {
		if !sess.IsAdmin {
			writeJSON(resp, http.StatusForbidden, errorBody{Error: "Admin only"})
			return
		}
		h(resp, req, sess)
	})
}

func clientAddr(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

// lotState is attached to lifecycle errors so clients can resynchronise
func (s *Server) lotState(ctx context.Context, lotId uint32) *models.LotState {
	st, err := s.engine.Snapshot(ctx, lotId)
	if err != nil {
		return nil
	}
	return st
}
