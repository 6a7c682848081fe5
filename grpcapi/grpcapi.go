// Package grpcapi serves the bidding engine over gRPC and grpc-web
package grpcapi

import (
	"context"
	"net"
	"net/http"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_auth "github.com/grpc-ecosystem/go-grpc-middleware/auth"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"github.com/improbable-eng/grpc-web/go/grpcweb"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/delta/auction-house-server/biddingengine"
	"github.com/delta/auction-house-server/datastreams"
	"github.com/delta/auction-house-server/session"
	"github.com/delta/auction-house-server/utils"
)

// methods anyone may call; a valid session is still attached when present
var publicMethods = map[string]bool{
	"/" + AuctionServiceName + "/Snapshot":      true,
	"/" + AuctionServiceName + "/StreamAuction": true,
	"/grpc.health.v1.Health/Check":              true,
	"/grpc.health.v1.Health/Watch":              true,
}

type Server struct {
	logger *logrus.Entry

	sessions *session.Manager
	service  *auctionService

	grpcServer    *grpc.Server
	wrappedServer *grpcweb.WrappedGrpcServer
	health        *health.Server
}

// NewServer registers the auction service and the health service. opts are
// passed on to grpc.NewServer, e.g. TLS credentials.
func NewServer(engine *biddingengine.Engine, bus *datastreams.EventBus, sessions *session.Manager, opts ...grpc.ServerOption) *Server {
	s := &Server{
		logger: utils.Logger.WithFields(logrus.Fields{
			"module": "grpcapi",
		}),
		sessions: sessions,
		service:  newAuctionService(engine, bus),
		health:   health.NewServer(),
	}

	opts = append(opts,
		grpc.StreamInterceptor(grpc_middleware.ChainStreamServer(
			grpc_recovery.StreamServerInterceptor(grpc_recovery.WithRecoveryHandler(s.recovered)),
			grpc_auth.StreamServerInterceptor(s.authFunc),
		)),
		grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(
			grpc_recovery.UnaryServerInterceptor(grpc_recovery.WithRecoveryHandler(s.recovered)),
			grpc_auth.UnaryServerInterceptor(s.authFunc),
		)),
	)
	s.grpcServer = grpc.NewServer(opts...)

	RegisterAuctionServiceServer(s.grpcServer, s.service)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus(AuctionServiceName, healthpb.HealthCheckResponse_SERVING)

	s.wrappedServer = grpcweb.WrapServer(s.grpcServer,
		grpcweb.WithOriginFunc(func(origin string) bool { return true }),
	)
	return s
}

func (s *Server) recovered(p interface{}) error {
	s.logger.WithFields(logrus.Fields{
		"method": "recovered",
	}).Errorf("Recovered from panic: %+v", p)
	return status.Errorf(codes.Internal, "Internal error occurred")
}

// authFunc attaches the session named by the sessionid metadata to ctx
func (s *Server) authFunc(ctx context.Context) (context.Context, error) {
	var l = s.logger.WithFields(logrus.Fields{
		"method": "authFunc",
	})

	method, _ := grpc.Method(ctx)

	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok && len(md["sessionid"]) == 1 {
		token = md["sessionid"][0]
	}
	if token == "" {
		if publicMethods[method] {
			return ctx, nil
		}
		return nil, status.Errorf(codes.Unauthenticated, "Invalid session id")
	}

	sess, err := s.sessions.Validate(token)
	if err != nil {
		l.Debugf("Rejected session for %s", method)
		return nil, status.Errorf(codes.Unauthenticated, "Invalid session id")
	}
	return session.NewContext(ctx, sess), nil
}

// Serve accepts gRPC connections on lis until Stop
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Infof("Serving gRPC on %s", lis.Addr())
	return s.grpcServer.Serve(lis)
}

// Handler routes grpc-web and native gRPC requests to the gRPC server and
// everything else to next
func (s *Server) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(resp http.ResponseWriter, req *http.Request) {
		switch {
		case s.wrappedServer.IsGrpcWebRequest(req), s.wrappedServer.IsAcceptableGrpcCorsRequest(req):
			s.wrappedServer.ServeHTTP(resp, req)
		case req.ProtoMajor == 2 && req.Header.Get("Content-Type") == "application/grpc":
			s.grpcServer.ServeHTTP(resp, req)
		default:
			next.ServeHTTP(resp, req)
		}
	})
}

// Stop marks the service as not serving, ends open streams and drains
// in-flight calls
func (s *Server) Stop() {
	s.health.Shutdown()
	s.service.close()
	s.grpcServer.GracefulStop()
	s.logger.Info("Stopped")
}
