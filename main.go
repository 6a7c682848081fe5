package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/delta/auction-house-server/audit"
	"github.com/delta/auction-house-server/biddingengine"
	"github.com/delta/auction-house-server/datastreams"
	"github.com/delta/auction-house-server/grpcapi"
	"github.com/delta/auction-house-server/httpapi"
	"github.com/delta/auction-house-server/increments"
	"github.com/delta/auction-house-server/invoice"
	"github.com/delta/auction-house-server/notifications"
	"github.com/delta/auction-house-server/ratelimit"
	"github.com/delta/auction-house-server/session"
	"github.com/delta/auction-house-server/socketapi"
	"github.com/delta/auction-house-server/store"
	"github.com/delta/auction-house-server/utils"
)

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func openStore(config *utils.Config) (store.Store, audit.Logger) {
	if config.DbDialect == "memory" {
		utils.Logger.Info("Using in-memory ledger store")
		return store.NewMemoryStore(utils.SystemClock), audit.NewLogLogger(nil)
	}

	db, err := utils.DbOpen()
	if err != nil {
		utils.Logger.Fatalf("Failed opening database: %+v", err)
	}
	s, err := store.NewGormStore(db, utils.SystemClock)
	if err != nil {
		utils.Logger.Fatalf("Failed preparing database: %+v", err)
	}
	return s, audit.NewGormLogger(db)
}

func notificationChannels(config *utils.Config) []notifications.Channel {
	var channels []notifications.Channel
	if config.SendgridKey != "" {
		channels = append(channels, notifications.NewEmailChannel(config.SendgridKey, config.SenderEmail, nil))
	}
	if config.PlivoAuthId != "" {
		sms, err := notifications.NewSmsChannel(config.PlivoAuthId, config.PlivoAuthToken, config.PlivoSource, nil)
		if err != nil {
			utils.Logger.Errorf("SMS notifications disabled: %+v", err)
		} else {
			channels = append(channels, sms)
		}
	}
	if len(channels) == 0 {
		utils.Logger.Warn("No notification channels configured")
	}
	return channels
}

func engineConfig(config *utils.Config) biddingengine.Config {
	c := biddingengine.Config{
		LockTimeout: time.Duration(config.LotLockTimeoutMs) * time.Millisecond,
	}

	if len(config.IncrementBands) > 0 {
		bands := make([]increments.Band, 0, len(config.IncrementBands))
		for _, b := range config.IncrementBands {
			bands = append(bands, increments.Band{From: b.From, Increment: b.Increment})
		}
		schedule, err := increments.NewSchedule(bands)
		if err != nil {
			utils.Logger.Fatalf("Bad IncrementBands: %+v", err)
		}
		c.Schedule = schedule
	}

	if config.DefaultFlatPremium != "" {
		rate, err := decimal.NewFromString(config.DefaultFlatPremium)
		if err != nil {
			utils.Logger.Fatalf("Bad DefaultFlatPremium %q: %+v", config.DefaultFlatPremium, err)
		}
		c.DefaultFlatPremium = rate
	}
	return c
}

func grpcOptions(config *utils.Config) []grpc.ServerOption {
	if config.TLSCert == "" || config.TLSKey == "" {
		return nil
	}
	if _, err := os.Stat(config.TLSCert); err != nil {
		utils.Logger.Warnf("TLS certificate %s not found, serving plaintext gRPC", config.TLSCert)
		return nil
	}
	creds, err := credentials.NewServerTLSFromFile(config.TLSCert, config.TLSKey)
	if err != nil {
		utils.Logger.Fatalf("Failed while obtaining TLS certificates. Error: %+v", err)
	}
	return []grpc.ServerOption{grpc.Creds(creds)}
}

func main() {
	configFile := flag.String("config", "config.json", "path to the configuration file")
	flag.Parse()

	if err := utils.InitConfiguration(*configFile); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	config := utils.GetConfiguration()
	utils.Init(config)

	ledger, auditor := openStore(config)
	bus := datastreams.NewEventBus()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bidLimiter := ratelimit.NewRateLimiter(ratelimit.Config{
		Capacity: config.BidRateCapacity,
		Window:   seconds(config.BidRateWindowSeconds),
	})
	authLimiter := ratelimit.NewRateLimiter(ratelimit.Config{
		Capacity: config.AuthRateCapacity,
		Window:   seconds(config.AuthRateWindowSeconds),
	})
	bidLimiter.Start(ctx)
	authLimiter.Start(ctx)

	dispatcher := notifications.NewDispatcher(ledger, config.NotificationWorkers, 0, notificationChannels(config)...)
	dispatcher.Start()

	engine := biddingengine.NewEngine(engineConfig(config), biddingengine.Deps{
		Store:      ledger,
		Publisher:  bus,
		BidLimiter: bidLimiter,
		Notifier:   dispatcher,
		Auditor:    auditor,
		Invoices:   invoice.NewGenerator(ledger),
	})

	sessions, err := session.NewManager(ledger, session.Config{
		Secret:    config.JWTSecret,
		TTL:       time.Duration(config.SessionTTLMinutes) * time.Minute,
		CacheSize: config.CacheSize,
	})
	if err != nil {
		utils.Logger.Fatalf("Failed creating session manager: %+v", err)
	}

	rest := httpapi.NewServer(engine, sessions, authLimiter)
	viewers := socketapi.NewHandler(engine, bus, config)
	rest.Handle("GET /ws", viewers)

	rpc := grpcapi.NewServer(engine, bus, sessions, grpcOptions(config)...)

	httpServer := &http.Server{
		Addr:              config.HTTPAddr,
		Handler:           rpc.Handler(rest),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		utils.Logger.Infof("Serving HTTP on %s", config.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Logger.Fatalf("HTTP server error: %+v", err)
		}
	}()

	lis, err := net.Listen("tcp", config.GRPCAddr)
	if err != nil {
		utils.Logger.Fatalf("Failed listening on %s: %+v", config.GRPCAddr, err)
	}
	go func() {
		if err := rpc.Serve(lis); err != nil {
			utils.Logger.Errorf("gRPC server error: %+v", err)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	utils.Logger.Infof("Got %s, shutting down", sig)

	viewers.Close()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Errorf("HTTP shutdown error: %+v", err)
	}
	rpc.Stop()

	bus.Close()
	bidLimiter.Stop()
	authLimiter.Stop()
	dispatcher.Stop()
	if err := ledger.Close(); err != nil {
		utils.Logger.Errorf("Closing store: %+v", err)
	}
	utils.Logger.Info("Stopped")
}
