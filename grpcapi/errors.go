package grpcapi

import (
	"context"
	"errors"
	"strconv"

	"github.com/sirupsen/logrus"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/delta/auction-house-server/lifecycle"
	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/premium"
)

const errorDomain = "auctionhouse"

// toStatus maps engine errors to gRPC statuses. Rejections that leave the
// client something to act on carry an ErrorInfo (and RetryInfo when waiting
// helps); lotId, when known, adds the lot's current state.
func (a *auctionService) toStatus(ctx context.Context, err error, lotId uint32) error {
	var (
		validation  models.ValidationError
		tooLow      models.BidTooLowError
		limited     models.RateLimitedError
		lockTimeout models.LockTimeoutError
		notFound    models.NotFoundError
		transition  lifecycle.InvalidTransitionError
		tiers       premium.InvalidTierConfigurationError
	)

	info := &errdetails.ErrorInfo{Domain: errorDomain, Metadata: map[string]string{}}
	if lotId != 0 {
		if st, serr := a.engine.Snapshot(ctx, lotId); serr == nil {
			info.Metadata["lot_status"] = string(st.Status)
			info.Metadata["current_amount"] = strconv.FormatInt(st.CurrentAmount, 10)
			info.Metadata["next_minimum_bid"] = strconv.FormatInt(st.NextMinimumBid, 10)
		}
	}

	var (
		code  codes.Code
		retry *errdetails.RetryInfo
	)
	switch {
	case errors.As(err, &validation):
		code, info.Reason = codes.InvalidArgument, "VALIDATION"
		info.Metadata["field"] = validation.Field
	case errors.As(err, &tiers):
		code, info.Reason = codes.InvalidArgument, "INVALID_TIERS"
	case errors.As(err, &notFound):
		code, info.Reason = codes.NotFound, "NOT_FOUND"
	case errors.Is(err, models.UnauthorizedError):
		code, info.Reason = codes.Unauthenticated, "UNAUTHORIZED"
	case errors.As(err, &tooLow):
		code, info.Reason = codes.FailedPrecondition, "BID_TOO_LOW"
		info.Metadata["minimum"] = strconv.FormatInt(tooLow.Minimum, 10)
	case errors.As(err, &limited):
		code, info.Reason = codes.ResourceExhausted, "RATE_LIMITED"
		retry = &errdetails.RetryInfo{RetryDelay: durationpb.New(limited.RetryAfter)}
	case errors.As(err, &lockTimeout):
		code, info.Reason = codes.Unavailable, "LOCK_TIMEOUT"
	case errors.As(err, &transition):
		code, info.Reason = codes.FailedPrecondition, "INVALID_TRANSITION"
	case isConflict(err):
		code, info.Reason = codes.FailedPrecondition, "CONFLICT"
	default:
		a.logger.WithFields(logrus.Fields{
			"method": "toStatus",
		}).Errorf("Internal error: %+v", err)
		return status.Errorf(codes.Internal, "Internal error occurred")
	}

	st := status.New(code, err.Error())
	withDetails, derr := st.WithDetails(info)
	if retry != nil {
		withDetails, derr = st.WithDetails(info, retry)
	}
	if derr != nil {
		return st.Err()
	}
	return withDetails.Err()
}

func isConflict(err error) bool {
	var (
		lotInactive models.LotNotActiveError
		notLive     models.AuctionNotLiveError
		closed      models.LotClosedError
		notReg      models.NotRegisteredError
		retracted   models.AlreadyRetractedError
		reserve     models.ReserveNotMetError
		noWinner    models.NoWinningBidError
	)
	return errors.As(err, &lotInactive) || errors.As(err, &notLive) || errors.As(err, &closed) ||
		errors.As(err, &notReg) || errors.As(err, &retracted) || errors.As(err, &reserve) ||
		errors.As(err, &noWinner) || errors.Is(err, models.ErrNoMaxBid) ||
		errors.Is(err, models.AlreadyExistsError) || errors.Is(err, models.ErrAlreadyRegistered)
}
