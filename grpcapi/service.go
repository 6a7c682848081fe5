package grpcapi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/delta/auction-house-server/biddingengine"
	"github.com/delta/auction-house-server/datastreams"
	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/session"
	"github.com/delta/auction-house-server/utils"
)

const streamQueueSize = 32

type auctionService struct {
	UnimplementedAuctionServiceServer

	logger *logrus.Entry
	engine *biddingengine.Engine
	bus    *datastreams.EventBus
	clock  utils.Clock

	done      chan struct{}
	closeOnce sync.Once
}

func newAuctionService(engine *biddingengine.Engine, bus *datastreams.EventBus) *auctionService {
	return &auctionService{
		logger: utils.Logger.WithFields(logrus.Fields{
			"module": "grpcapi.AuctionService",
		}),
		engine: engine,
		bus:    bus,
		clock:  utils.SystemClock,
		done:   make(chan struct{}),
	}
}

func (a *auctionService) close() {
	a.closeOnce.Do(func() { close(a.done) })
}

// toStruct converts v to a Struct through its JSON form
func toStruct(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes a request Struct into v
func fromStruct(in *structpb.Struct, v interface{}) error {
	b, err := json.Marshal(in.AsMap())
	if err != nil {
		return models.ValidationError{Field: "request", Reason: err.Error()}
	}
	if err := json.Unmarshal(b, v); err != nil {
		return models.ValidationError{Field: "request", Reason: err.Error()}
	}
	return nil
}

func requireSession(ctx context.Context) (*session.Session, error) {
	sess, ok := session.FromContext(ctx)
	if !ok {
		return nil, status.Errorf(codes.Unauthenticated, "Invalid session id")
	}
	return sess, nil
}

func (a *auctionService) reply(v interface{}) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		a.logger.Errorf("Unable to encode reply: %+v", err)
		return nil, status.Errorf(codes.Internal, "Internal error occurred")
	}
	return out, nil
}

func (a *auctionService) PlaceBid(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var l = a.logger.WithFields(logrus.Fields{
		"method":    "PlaceBid",
		"param_req": fmt.Sprintf("%+v", in.AsMap()),
	})

	sess, err := requireSession(ctx)
	if err != nil {
		return nil, err
	}

	var req struct {
		LotId  uint32         `json:"lot_id"`
		Amount int64          `json:"amount"`
		Type   models.BidType `json:"type"`
	}
	if err := fromStruct(in, &req); err != nil {
		return nil, a.toStatus(ctx, err, 0)
	}

	res, err := a.engine.PlaceBid(ctx, biddingengine.PlaceBidRequest{
		LotId:    req.LotId,
		BidderId: sess.UserId,
		Amount:   req.Amount,
		Type:     req.Type,
	})
	if err != nil {
		l.Debugf("Bid rejected: %v", err)
		return nil, a.toStatus(ctx, err, req.LotId)
	}

	return a.reply(map[string]interface{}{
		"bid":              res.Bid.ToView(),
		"next_minimum_bid": res.NextMinimumBid,
		"lot":              res.Lot,
	})
}

func (a *auctionService) SetMaxBid(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	sess, err := requireSession(ctx)
	if err != nil {
		return nil, err
	}

	var req struct {
		LotId     uint32 `json:"lot_id"`
		MaxAmount int64  `json:"max_amount"`
	}
	if err := fromStruct(in, &req); err != nil {
		return nil, a.toStatus(ctx, err, 0)
	}

	res, err := a.engine.SetMaxBid(ctx, req.LotId, sess.UserId, req.MaxAmount)
	if err != nil {
		return nil, a.toStatus(ctx, err, req.LotId)
	}
	return a.reply(map[string]interface{}{
		"max_amount": res.MaxBid.MaxAmount,
		"lot":        res.Lot,
	})
}

// Snapshot returns one lot when lot_id is given, otherwise every visible lot
// of auction_id
func (a *auctionService) Snapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		LotId     uint32 `json:"lot_id"`
		AuctionId uint32 `json:"auction_id"`
	}
	if err := fromStruct(in, &req); err != nil {
		return nil, a.toStatus(ctx, err, 0)
	}

	switch {
	case req.LotId != 0:
		st, err := a.engine.Snapshot(ctx, req.LotId)
		if err != nil {
			return nil, a.toStatus(ctx, err, 0)
		}
		return a.reply(map[string]interface{}{"lot": st})
	case req.AuctionId != 0:
		lots, err := a.engine.AuctionSnapshot(ctx, req.AuctionId)
		if err != nil {
			return nil, a.toStatus(ctx, err, 0)
		}
		return a.reply(map[string]interface{}{"lots": lots})
	}
	return nil, a.toStatus(ctx, models.ValidationError{Field: "lot_id", Reason: "lot_id or auction_id is required"}, 0)
}

// StreamAuction sends a snapshot of the auction followed by its events until
// the client goes away
func (a *auctionService) StreamAuction(in *structpb.Struct, stream AuctionService_StreamAuctionServer) error {
	ctx := stream.Context()

	var req struct {
		AuctionId uint32 `json:"auction_id"`
	}
	if err := fromStruct(in, &req); err != nil {
		return a.toStatus(ctx, err, 0)
	}

	var l = a.logger.WithFields(logrus.Fields{
		"method":          "StreamAuction",
		"param_auctionId": req.AuctionId,
	})

	if _, err := a.engine.Auction(ctx, req.AuctionId); err != nil {
		return a.toStatus(ctx, err, 0)
	}

	events := make(chan datastreams.Event, streamQueueSize)
	ready := make(chan struct{})
	sub, err := a.bus.Subscribe(req.AuctionId, func(ev datastreams.Event) {
		select {
		case <-ready:
		case <-ctx.Done():
			return
		}
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return status.Errorf(codes.Unavailable, "%v", err)
	}
	defer a.bus.Unsubscribe(sub)

	lots, err := a.engine.AuctionSnapshot(ctx, req.AuctionId)
	if err != nil {
		return a.toStatus(ctx, err, 0)
	}
	snapshot := datastreams.Event{
		Type:      datastreams.Snapshot,
		AuctionId: req.AuctionId,
		Lots:      lots,
		Time:      a.clock.Now(),
	}
	if err := a.send(stream, snapshot); err != nil {
		return err
	}
	close(ready)
	l.Infof("Streaming")

	for {
		select {
		case <-ctx.Done():
			l.Debugf("Client went away")
			return nil
		case <-a.done:
			return status.Errorf(codes.Unavailable, "Server is shutting down")
		case ev := <-events:
			if err := a.send(stream, ev); err != nil {
				l.Errorf("Unable to send event: %+v", err)
				return err
			}
		}
	}
}

func (a *auctionService) send(stream AuctionService_StreamAuctionServer, ev datastreams.Event) error {
	msg, err := toStruct(ev)
	if err != nil {
		return status.Errorf(codes.Internal, "Internal error occurred")
	}
	return stream.Send(msg)
}
