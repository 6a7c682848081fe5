package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/delta/auction-house-server/lifecycle"
	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/premium"
)

type errorBody struct {
	Error        string           `json:"error"`
	Field        string           `json:"field,omitempty"`
	Minimum      int64            `json:"minimum,omitempty"`
	RetryAfterMs int64            `json:"retry_after_ms,omitempty"`
	Lot          *models.LotState `json:"lot,omitempty"`
}

func writeJSON(resp http.ResponseWriter, status int, body interface{}) {
	resp.Header().Set("Content-Type", "application/json")
	resp.WriteHeader(status)
	if body != nil {
		json.NewEncoder(resp).Encode(body)
	}
}

func setRetryAfter(resp http.ResponseWriter, d time.Duration) {
	resp.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
}

// writeError maps engine errors to status codes. lot, when known, is the
// current state of the lot the request was about.
func (s *Server) writeError(resp http.ResponseWriter, err error, lot *models.LotState) {
	body := errorBody{Error: err.Error()}

	var (
		validation  models.ValidationError
		tooLow      models.BidTooLowError
		limited     models.RateLimitedError
		lockTimeout models.LockTimeoutError
		notFound    models.NotFoundError
		lotInactive models.LotNotActiveError
		notLive     models.AuctionNotLiveError
		closed      models.LotClosedError
		notReg      models.NotRegisteredError
		retracted   models.AlreadyRetractedError
		reserve     models.ReserveNotMetError
		noWinner    models.NoWinningBidError
		transition  lifecycle.InvalidTransitionError
		tiers       premium.InvalidTierConfigurationError
	)

	switch {
	case errors.As(err, &validation):
		body.Field = validation.Field
		writeJSON(resp, http.StatusBadRequest, body)
	case errors.As(err, &notFound):
		writeJSON(resp, http.StatusNotFound, body)
	case errors.Is(err, models.UnauthorizedError):
		writeJSON(resp, http.StatusUnauthorized, body)
	case errors.As(err, &tooLow):
		body.Minimum = tooLow.Minimum
		body.Lot = lot
		writeJSON(resp, http.StatusUnprocessableEntity, body)
	case errors.As(err, &tiers):
		writeJSON(resp, http.StatusUnprocessableEntity, body)
	case errors.As(err, &limited):
		setRetryAfter(resp, limited.RetryAfter)
		body.RetryAfterMs = limited.RetryAfter.Milliseconds()
		writeJSON(resp, http.StatusTooManyRequests, body)
	case errors.As(err, &lockTimeout):
		setRetryAfter(resp, time.Second)
		writeJSON(resp, http.StatusServiceUnavailable, body)
	case errors.As(err, &lotInactive), errors.As(err, &notLive), errors.As(err, &closed),
		errors.As(err, &notReg), errors.As(err, &retracted), errors.As(err, &reserve),
		errors.As(err, &noWinner), errors.As(err, &transition),
		errors.Is(err, models.ErrNoMaxBid), errors.Is(err, models.AlreadyExistsError),
		errors.Is(err, models.ErrAlreadyRegistered):
		body.Lot = lot
		writeJSON(resp, http.StatusConflict, body)
	default:
		s.logger.WithFields(logrus.Fields{
			"method": "writeError",
		}).Errorf("Internal error: %+v", err)
		writeJSON(resp, http.StatusInternalServerError, errorBody{Error: "Internal error occurred"})
	}
}

func readJSON(req *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, req.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return models.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

func pathId(req *http.Request, name string) (uint32, error) {
	id, err := strconv.ParseUint(req.PathValue(name), 10, 32)
	if err != nil || id == 0 {
		return 0, models.ValidationError{Field: name, Reason: fmt.Sprintf("%q is not an id", req.PathValue(name))}
	}
	return uint32(id), nil
}
