// Package biddingengine is the authority on who is winning each lot. It
// accepts live bids, bids on behalf of absentee ceilings, handles retractions
// and lifecycle transitions, and publishes every settled outcome.
package biddingengine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/delta/auction-house-server/audit"
	"github.com/delta/auction-house-server/datastreams"
	"github.com/delta/auction-house-server/increments"
	"github.com/delta/auction-house-server/invoice"
	"github.com/delta/auction-house-server/lifecycle"
	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/notifications"
	"github.com/delta/auction-house-server/ratelimit"
	"github.com/delta/auction-house-server/store"
	"github.com/delta/auction-house-server/utils"
)

// DefaultLockTimeout bounds the wait for a lot when Config.LockTimeout is unset
const DefaultLockTimeout = 2 * time.Second

// Limiter throttles bids per (bidder, lot)
type Limiter interface {
	Check(key string) ratelimit.Result
}

// InvoiceGenerator bills the winner of a sold lot
type InvoiceGenerator interface {
	Generate(ctx context.Context, lot *models.Lot, auction *models.Auction, winner *models.Bid) (*models.Invoice, error)
}

type Config struct {
	Schedule           *increments.Schedule
	LockTimeout        time.Duration
	DefaultFlatPremium decimal.Decimal
}

// Deps are the collaborators of the engine. Only Store is required.
type Deps struct {
	Store      store.Store
	Publisher  datastreams.Publisher
	BidLimiter Limiter
	Notifier   notifications.Notifier
	Auditor    audit.Logger
	Invoices   InvoiceGenerator
	Clock      utils.Clock
}

type Engine struct {
	logger *logrus.Entry

	store      store.Store
	publisher  datastreams.Publisher
	bidLimiter Limiter
	notifier   notifications.Notifier
	auditor    audit.Logger
	invoices   InvoiceGenerator
	clock      utils.Clock

	schedule           *increments.Schedule
	lockTimeout        time.Duration
	defaultFlatPremium decimal.Decimal

	locks *lotLocks
}

type nopPublisher struct{}

func (nopPublisher) Publish(uint32, datastreams.Event) {}

type nopNotifier struct{}

func (nopNotifier) Notify(uint32, models.NotificationType, map[string]interface{}) {}

// NewEngine returns an Engine. Missing optional collaborators are replaced
// with ones that do nothing, except auditing which goes to the log.
func NewEngine(config Config, deps Deps) *Engine {
	e := &Engine{
		logger: utils.Logger.WithFields(logrus.Fields{
			"module": "biddingengine",
		}),
		store:              deps.Store,
		publisher:          deps.Publisher,
		bidLimiter:         deps.BidLimiter,
		notifier:           deps.Notifier,
		auditor:            deps.Auditor,
		invoices:           deps.Invoices,
		clock:              deps.Clock,
		schedule:           config.Schedule,
		lockTimeout:        config.LockTimeout,
		defaultFlatPremium: config.DefaultFlatPremium,
		locks:              newLotLocks(),
	}

	if e.publisher == nil {
		e.publisher = nopPublisher{}
	}
	if e.notifier == nil {
		e.notifier = nopNotifier{}
	}
	if e.auditor == nil {
		e.auditor = audit.NewLogLogger(nil)
	}
	if e.invoices == nil {
		e.invoices = invoice.NewGenerator(deps.Store)
	}
	if e.clock == nil {
		e.clock = utils.SystemClock
	}
	if e.schedule == nil {
		e.schedule = increments.DefaultSchedule()
	}
	if e.lockTimeout <= 0 {
		e.lockTimeout = DefaultLockTimeout
	}

	return e
}

// Schedule returns the increment ladder in use
func (e *Engine) Schedule() *increments.Schedule {
	return e.schedule
}

// inLot runs fn in the lot's critical section: the engine's lot lock plus a
// store transaction. onCommit runs after a successful commit, before the lock
// is released, so events leave in ledger order.
func (e *Engine) inLot(ctx context.Context, lotId uint32, fn func(tx store.LotTx) error, onCommit func()) error {
	release, err := e.locks.acquire(ctx, lotId, e.lockTimeout)
	if err != nil {
		return err
	}
	defer release()

	if err := e.store.WithLotTx(ctx, lotId, fn); err != nil {
		return err
	}
	if onCommit != nil {
		onCommit()
	}
	return nil
}

// minimumBid is the least a new bid may be, given the current winner (or nil)
func (e *Engine) minimumBid(lot *models.Lot, winner *models.Bid) int64 {
	if winner == nil {
		return utils.MaxInt64(lot.StartingBid, e.schedule.NextMinimumBid(0))
	}
	return e.schedule.NextMinimumBid(winner.Amount)
}

func (e *Engine) lotState(lot *models.Lot, bids []*models.Bid) *models.LotState {
	st := &models.LotState{
		LotId:       lot.Id,
		AuctionId:   lot.AuctionId,
		LotNumber:   lot.LotNumber,
		Status:      lot.Status,
		HammerPrice: lot.HammerPrice,
	}

	var winner *models.Bid
	for _, b := range bids {
		if b.IsRetracted {
			continue
		}
		st.BidCount++
		if b.IsWinning {
			winner = b
		}
	}
	if winner != nil {
		st.CurrentAmount = winner.Amount
		st.WinningBid = winner.ToView()
	}
	st.NextMinimumBid = e.minimumBid(lot, winner)
	return st
}

func checkBiddable(lot *models.Lot, auction *models.Auction) error {
	if lot.Status != lifecycle.LotActive {
		return models.LotNotActiveError{LotId: lot.Id, Status: lot.Status}
	}
	if auction.Status != lifecycle.AuctionLive {
		return models.AuctionNotLiveError{AuctionId: auction.Id, Status: auction.Status}
	}
	return nil
}

func approvedRegistration(tx store.LotTx, auctionId, bidderId uint32) (*models.Registration, error) {
	reg, err := tx.Registration(bidderId)
	if models.IsNotFound(err) || (err == nil && !reg.IsApproved) {
		return nil, models.NotRegisteredError{AuctionId: auctionId, BidderId: bidderId}
	}
	return reg, err
}

// PlaceBidRequest is a live bid. Type defaults to online.
type PlaceBidRequest struct {
	LotId    uint32
	BidderId uint32
	Amount   int64
	Type     models.BidType
}

type PlaceBidResult struct {
	// Bid is the submitted bid; IsWinning reflects the settled state after
	// absentee ceilings have answered it
	Bid            *models.Bid
	NextMinimumBid int64
	Lot            *models.LotState
}

func (req *PlaceBidRequest) validate() error {
	if req.Type == "" {
		req.Type = models.Online
	}
	switch {
	case req.LotId == 0:
		return models.ValidationError{Field: "lot_id", Reason: "is required"}
	case req.BidderId == 0:
		return models.ValidationError{Field: "bidder_id", Reason: "is required"}
	case req.Amount <= 0:
		return models.ValidationError{Field: "amount", Reason: "must be positive"}
	case !req.Type.Valid():
		return models.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown bid type %q", req.Type)}
	case !req.Type.Placeable():
		return models.ValidationError{Field: "type", Reason: fmt.Sprintf("%s bids are placed by the house only", req.Type)}
	}
	return nil
}

func bidRateKey(bidderId, lotId uint32) string {
	return fmt.Sprintf("bid:%d:%d", bidderId, lotId)
}

// PlaceBid accepts a live bid. Checks run in order: lifecycle and
// registration, rate limit, then the minimum bid. Absentee ceilings answer
// the bid before anything is committed or published.
func (e *Engine) PlaceBid(ctx context.Context, req PlaceBidRequest) (*PlaceBidResult, error) {
	var l = e.logger.WithFields(logrus.Fields{
		"method":         "PlaceBid",
		"param_lotId":    req.LotId,
		"param_bidderId": req.BidderId,
		"param_amount":   req.Amount,
	})

	l.Debugf("Attempting")

	if err := req.validate(); err != nil {
		return nil, err
	}

	var (
		lg  *ledger
		bid *models.Bid
	)

	err := e.inLot(ctx, req.LotId, func(tx store.LotTx) error {
		var err error
		if lg, err = e.openLedger(tx); err != nil {
			return err
		}

		if err := checkBiddable(lg.lot, lg.auction); err != nil {
			return err
		}
		reg, err := approvedRegistration(tx, lg.auction.Id, req.BidderId)
		if err != nil {
			return err
		}

		if e.bidLimiter != nil {
			if res := e.bidLimiter.Check(bidRateKey(req.BidderId, req.LotId)); !res.Allowed {
				return models.RateLimitedError{RetryAfter: res.ResetInterval}
			}
		}

		if min := lg.minimumBid(); req.Amount < min {
			return models.BidTooLowError{Amount: req.Amount, Minimum: min}
		}

		bid = &models.Bid{
			BidderId: req.BidderId,
			Amount:   req.Amount,
			Type:     req.Type,
			Paddle:   reg.Paddle,
		}
		if err := lg.place(bid); err != nil {
			return err
		}

		if err := e.resolveProxies(lg); err != nil {
			return err
		}
		return lg.flush()
	}, func() {
		e.publishBids(lg, bid)
	})

	if err != nil {
		l.Debugf("Rejected: %+v", err)
		return nil, err
	}

	state := lg.state()
	l.Infof("Accepted bid %d. Lot now at %d after %d proxy bids", bid.Id, state.CurrentAmount, len(lg.placed)-1)

	return &PlaceBidResult{
		Bid:            bid,
		NextMinimumBid: state.NextMinimumBid,
		Lot:            state,
	}, nil
}

// publishBids announces the settled state after bids were placed and tells
// everyone who lost the lead
func (e *Engine) publishBids(lg *ledger, trigger *models.Bid) {
	if len(lg.placed) == 0 {
		return
	}
	if trigger == nil {
		trigger = lg.placed[len(lg.placed)-1]
	}

	state := lg.state()
	e.publisher.Publish(lg.lot.AuctionId, datastreams.Event{
		Type:      datastreams.BidPlaced,
		AuctionId: lg.lot.AuctionId,
		LotId:     lg.lot.Id,
		Lot:       state,
		Bid:       trigger.ToView(),
		Time:      e.clock.Now(),
	})

	for bidderId := range lg.outbid {
		e.notifier.Notify(bidderId, models.OutbidNotification, map[string]interface{}{
			notifications.KeyLotNumber:      lg.lot.LotNumber,
			notifications.KeyAmount:         state.CurrentAmount,
			notifications.KeyNextMinimumBid: state.NextMinimumBid,
		})
	}
}

// Snapshot is a point-in-time read of a lot's public state, for viewers that
// (re)connect after events they missed
func (e *Engine) Snapshot(ctx context.Context, lotId uint32) (*models.LotState, error) {
	lot, err := e.store.GetLot(ctx, lotId)
	if err != nil {
		return nil, err
	}
	bids, err := e.store.GetBids(ctx, lotId)
	if err != nil {
		return nil, err
	}
	return e.lotState(lot, bids), nil
}

// AuctionSnapshot returns the state of every visible lot of an auction
func (e *Engine) AuctionSnapshot(ctx context.Context, auctionId uint32) ([]*models.LotState, error) {
	if _, err := e.store.GetAuction(ctx, auctionId); err != nil {
		return nil, err
	}
	lots, err := e.store.GetLotsByAuction(ctx, auctionId)
	if err != nil {
		return nil, err
	}

	states := make([]*models.LotState, 0, len(lots))
	for _, lot := range lots {
		if !lot.IsVisible() {
			continue
		}
		bids, err := e.store.GetBids(ctx, lot.Id)
		if err != nil {
			return nil, err
		}
		states = append(states, e.lotState(lot, bids))
	}
	return states, nil
}

func (e *Engine) audit(ctx context.Context, entry audit.Entry) {
	if err := e.auditor.Audit(ctx, entry); err != nil {
		e.logger.WithFields(logrus.Fields{
			"method":         "audit",
			"param_table":    entry.Table,
			"param_recordId": entry.RecordId,
		}).Errorf("Audit failed: %+v", err)
	}
}

// Auction returns one auction. Drafts are only shown to admins by the transports.
func (e *Engine) Auction(ctx context.Context, auctionId uint32) (*models.Auction, error) {
	return e.store.GetAuction(ctx, auctionId)
}

// Auctions lists auctions, hiding drafts unless includeDrafts is set
func (e *Engine) Auctions(ctx context.Context, includeDrafts bool) ([]*models.Auction, error) {
	all, err := e.store.ListAuctions(ctx)
	if err != nil {
		return nil, err
	}
	if includeDrafts {
		return all, nil
	}
	res := make([]*models.Auction, 0, len(all))
	for _, a := range all {
		if a.Status != lifecycle.AuctionDraft {
			res = append(res, a)
		}
	}
	return res, nil
}
