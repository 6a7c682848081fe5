package grpcapi

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/delta/auction-house-server/biddingengine"
	"github.com/delta/auction-house-server/datastreams"
	"github.com/delta/auction-house-server/lifecycle"
	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/session"
	"github.com/delta/auction-house-server/store"
	"github.com/delta/auction-house-server/utils"
)

type env struct {
	t      *testing.T
	ctx    context.Context
	engine *biddingengine.Engine
	bus    *datastreams.EventBus
	server *Server
	client AuctionServiceClient
	conn   *grpc.ClientConn

	auctionId uint32
	lotId     uint32
	token     string
}

func newEnv(t *testing.T) *env {
	e := &env{t: t, ctx: context.Background(), bus: datastreams.NewEventBus()}
	s := store.NewMemoryStore(utils.SystemClock)
	e.engine = biddingengine.NewEngine(biddingengine.Config{}, biddingengine.Deps{Store: s, Publisher: e.bus})
	sessions, err := session.NewManager(s, session.Config{Secret: "hellobidders"})
	require.NoError(t, err)

	e.server = NewServer(e.engine, e.bus, sessions)
	lis := bufconn.Listen(1 << 20)
	go e.server.Serve(lis)

	e.conn, err = grpc.DialContext(e.ctx, "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	e.client = NewAuctionServiceClient(e.conn)
	t.Cleanup(func() {
		e.conn.Close()
		e.server.Stop()
		e.bus.Close()
	})

	auction, err := e.engine.CreateAuction(e.ctx, biddingengine.CreateAuctionRequest{Title: "Design"}, 1)
	require.NoError(t, err)
	for _, to := range []lifecycle.AuctionStatus{lifecycle.AuctionPreview, lifecycle.AuctionLive} {
		_, err := e.engine.TransitionAuction(e.ctx, auction.Id, to, 1)
		require.NoError(t, err)
	}
	lot, err := e.engine.CreateLot(e.ctx, biddingengine.CreateLotRequest{
		AuctionId: auction.Id, LotNumber: 3, Title: "Lounge chair", StartingBid: 12000,
	}, 1)
	require.NoError(t, err)
	for _, to := range []lifecycle.LotStatus{lifecycle.LotCatalogued, lifecycle.LotPublished, lifecycle.LotActive} {
		_, err := e.engine.TransitionLot(e.ctx, lot.Id, to, 1)
		require.NoError(t, err)
	}
	e.auctionId, e.lotId = auction.Id, lot.Id

	user, err := sessions.Register(e.ctx, "phone-bidder@example.com", "Phone Bidder", "", "long-enough")
	require.NoError(t, err)
	_, err = e.engine.RegisterBidder(e.ctx, auction.Id, user.Id)
	require.NoError(t, err)
	_, err = e.engine.ApproveRegistration(e.ctx, auction.Id, user.Id, 1)
	require.NoError(t, err)
	sess, _, err := sessions.Login(e.ctx, "phone-bidder@example.com", "long-enough")
	require.NoError(t, err)
	e.token = sess.Token

	return e
}

func (e *env) authed() context.Context {
	return metadata.AppendToOutgoingContext(e.ctx, "sessionid", e.token)
}

func msg(t *testing.T, m map[string]interface{}) *structpb.Struct {
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestPlaceBidRequiresSession(t *testing.T) {
	e := newEnv(t)

	_, err := e.client.PlaceBid(e.ctx, msg(t, map[string]interface{}{"lot_id": e.lotId, "amount": 12000}))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(e.ctx, "sessionid", "forged")
	_, err = e.client.PlaceBid(ctx, msg(t, map[string]interface{}{"lot_id": e.lotId, "amount": 12000}))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestPlaceBid(t *testing.T) {
	e := newEnv(t)

	res, err := e.client.PlaceBid(e.authed(), msg(t, map[string]interface{}{"lot_id": e.lotId, "amount": 12000}))
	require.NoError(t, err)
	out := res.AsMap()
	assert.Equal(t, float64(13000), out["next_minimum_bid"])
	lot := out["lot"].(map[string]interface{})
	assert.Equal(t, float64(12000), lot["current_amount"])
	assert.Equal(t, true, out["bid"].(map[string]interface{})["is_winning"])

	_, err = e.client.PlaceBid(e.authed(), msg(t, map[string]interface{}{"lot_id": e.lotId, "amount": 12500}))
	st := status.Convert(err)
	require.Equal(t, codes.FailedPrecondition, st.Code())
	require.NotEmpty(t, st.Details())
	info, ok := st.Details()[0].(*errdetails.ErrorInfo)
	require.True(t, ok)
	assert.Equal(t, "BID_TOO_LOW", info.Reason)
	assert.Equal(t, "13000", info.Metadata["minimum"])
	assert.Equal(t, "12000", info.Metadata["current_amount"])

	_, err = e.client.PlaceBid(e.authed(), msg(t, map[string]interface{}{"lot_id": e.lotId}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = e.client.PlaceBid(e.authed(), msg(t, map[string]interface{}{"lot_id": 999, "amount": 500}))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestSetMaxBidAndSnapshot(t *testing.T) {
	e := newEnv(t)

	res, err := e.client.SetMaxBid(e.authed(), msg(t, map[string]interface{}{"lot_id": e.lotId, "max_amount": 20000}))
	require.NoError(t, err)
	assert.Equal(t, float64(20000), res.AsMap()["max_amount"])

	// snapshots are public
	snap, err := e.client.Snapshot(e.ctx, msg(t, map[string]interface{}{"auction_id": e.auctionId}))
	require.NoError(t, err)
	lots := snap.AsMap()["lots"].([]interface{})
	require.Len(t, lots, 1)
	assert.Equal(t, float64(12000), lots[0].(map[string]interface{})["next_minimum_bid"], "a ceiling does not open the lot")

	_, err = e.client.Snapshot(e.ctx, msg(t, map[string]interface{}{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestStreamAuction(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithTimeout(e.ctx, 5*time.Second)
	defer cancel()

	stream, err := e.client.StreamAuction(ctx, msg(t, map[string]interface{}{"auction_id": e.auctionId}))
	require.NoError(t, err)

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, string(datastreams.Snapshot), first.AsMap()["type"])

	require.Eventually(t, func() bool { return e.bus.Subscribers(e.auctionId) == 1 }, time.Second, 10*time.Millisecond)
	_, err = e.client.PlaceBid(e.authed(), msg(t, map[string]interface{}{"lot_id": e.lotId, "amount": 12000}))
	require.NoError(t, err)

	ev, err := stream.Recv()
	require.NoError(t, err)
	out := ev.AsMap()
	assert.Equal(t, string(datastreams.BidPlaced), out["type"])
	assert.Equal(t, float64(12000), out["lot"].(map[string]interface{})["current_amount"])

	unknown, err := e.client.StreamAuction(ctx, msg(t, map[string]interface{}{"auction_id": 404}))
	require.NoError(t, err)
	_, err = unknown.Recv()
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestRetryableStatuses(t *testing.T) {
	e := newEnv(t)
	svc := e.server.service

	err := svc.toStatus(e.ctx, models.RateLimitedError{RetryAfter: 1500 * time.Millisecond}, e.lotId)
	st := status.Convert(err)
	require.Equal(t, codes.ResourceExhausted, st.Code())
	require.Len(t, st.Details(), 2)
	retry, ok := st.Details()[1].(*errdetails.RetryInfo)
	require.True(t, ok)
	assert.Equal(t, 1500*time.Millisecond, retry.RetryDelay.AsDuration())

	err = svc.toStatus(e.ctx, models.LockTimeoutError{LotId: e.lotId}, e.lotId)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestHealth(t *testing.T) {
	e := newEnv(t)

	res, err := healthpb.NewHealthClient(e.conn).Check(e.ctx, &healthpb.HealthCheckRequest{Service: AuctionServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, res.Status)
}

func TestHandlerPassesThroughPlainHTTP(t *testing.T) {
	e := newEnv(t)
	h := e.server.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/auctions", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	req := httptest.NewRequest("POST", "/"+AuctionServiceName+"/Snapshot", nil)
	req.Header.Set("Content-Type", "application/grpc-web+proto")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, http.StatusTeapot, rec.Code)
}
