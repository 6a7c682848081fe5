package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// IncrementBand is one rung of the bid increment ladder as it appears in config.json
type IncrementBand struct {
	From      int64
	Increment int64
}

// Config contains all the configuration options
type Config struct {
	// Environment related options

	// Stage is the current execution environment. Can be one of "prod", "dev", "docker" or "test"
	Stage string

	// Logging related options

	// LogFileName is the name of the log file name. "stdout" logs to the console.
	LogFileName string
	// LogMaxSize is the maximum size(MB) of a log file before it gets rotated
	LogMaxSize int
	// LogLevel determines the log level.
	// Can be one of "debug", "info", "warn", "error"
	LogLevel string

	// Database related options

	// DbDialect is one of "mysql", "sqlite3" or "memory"
	DbDialect string
	// DbUser is the name of the database user
	DbUser string
	// DbPassword is the password of the database user
	DbPassword string
	// DbHost is the host name of the database server
	DbHost string
	// DbName is the name of the database. For sqlite3 it is the file name.
	DbName string

	// Server related options

	// HTTPAddr is the address to which the HTTP (REST + websocket) server will bind
	HTTPAddr string
	// GRPCAddr is the address to which the gRPC server will bind
	GRPCAddr string
	// TLSCert is the location of the TLS certificate to be used by the gRPC server
	TLSCert string
	// TLSKey is the location of the TLS private key to be used by the gRPC server
	TLSKey string
	// HeartbeatSeconds is the websocket ping period
	HeartbeatSeconds int

	// Authentication related options

	// JWTSecret signs session tokens
	JWTSecret string
	// SessionTTLMinutes is how long a session token stays valid
	SessionTTLMinutes int
	// CacheSize is the size of the LRU cache of validated sessions
	CacheSize int
	// AuthRateCapacity and AuthRateWindowSeconds throttle login attempts per client address
	AuthRateCapacity      int
	AuthRateWindowSeconds int

	// Bidding related options

	// BidRateCapacity and BidRateWindowSeconds throttle bids per (bidder, lot)
	BidRateCapacity      int
	BidRateWindowSeconds int
	// LotLockTimeoutMs bounds the wait for a lot's critical section
	LotLockTimeoutMs int
	// IncrementBands is the default increment ladder
	IncrementBands []IncrementBand
	// DefaultFlatPremium is used for auctions created without a premium rate, e.g. "0.25"
	DefaultFlatPremium string

	// Notification related options

	// SendgridKey is the Sendgrid API Key
	SendgridKey string
	// SenderEmail is the from address of notification mails
	SenderEmail string
	// PlivoAuthId, PlivoAuthToken and PlivoSource configure SMS notifications
	PlivoAuthId    string
	PlivoAuthToken string
	PlivoSource    string
	// NotificationWorkers is the number of goroutines delivering notifications
	NotificationWorkers int
}

// Struct to load configurations of all possible modes i.e dev, docker, prod, test
// Only one of them will be selected based on the environment variable AUCTION_ENV
type allConfigurations struct {
	Dev    Config
	Docker Config
	Prod   Config
	Test   Config
}

// setting config defaults for test, because when running tests
// config.json won't get loaded unless specified
var config = &Config{
	Stage:                 "test",
	LogFileName:           "stdout",
	LogMaxSize:            50,
	LogLevel:              "debug",
	DbDialect:             "memory",
	DbName:                "auctionhouse_test",
	HTTPAddr:              ":8080",
	GRPCAddr:              ":8000",
	TLSCert:               "./tls_keys/test/server.crt",
	TLSKey:                "./tls_keys/test/server.key",
	HeartbeatSeconds:      30,
	JWTSecret:             "hellobidders",
	SessionTTLMinutes:     720,
	CacheSize:             1000,
	AuthRateCapacity:      5,
	AuthRateWindowSeconds: 60,
	BidRateCapacity:       1,
	BidRateWindowSeconds:  3,
	LotLockTimeoutMs:      2000,
	IncrementBands: []IncrementBand{
		{From: 0, Increment: 500},
		{From: 10000, Increment: 1000},
		{From: 50000, Increment: 2500},
		{From: 100000, Increment: 5000},
		{From: 500000, Increment: 10000},
	},
	DefaultFlatPremium:  "0.25",
	SenderEmail:         "bids@auctionhouse.test",
	PlivoSource:         "AUCTION",
	NotificationWorkers: 2,
}

// InitConfiguration reads the given config file and selects the section
// matching the AUCTION_ENV environment variable (Dev when unset).
func InitConfiguration(fileName string) error {
	stage, exists := os.LookupEnv("AUCTION_ENV")
	if !exists {
		os.Stderr.WriteString("Set environment variable AUCTION_ENV to one of : Dev, Docker, Prod, Test. Taking Dev as default.\n")
		stage = "Dev"
	}

	configFile, err := os.Open(fileName)
	if err != nil {
		if strings.EqualFold(stage, "Test") {
			return nil // config is already set to default value for test. nothing to do.
		}
		return fmt.Errorf("open %s: %w", fileName, err)
	}
	defer configFile.Close()

	var all allConfigurations
	if err := json.NewDecoder(configFile).Decode(&all); err != nil {
		return fmt.Errorf("decode %s: %w", fileName, err)
	}

	switch strings.ToLower(stage) {
	case "docker":
		config = &all.Docker
	case "prod":
		config = &all.Prod
	case "test":
		config = &all.Test
	default:
		// Take Dev as default
		config = &all.Dev
	}

	return nil
}

// GetConfiguration returns the configuration loaded from config.json
func GetConfiguration() *Config {
	return config
}

// Init intializes the utils package. The config is accepted as a parameter for helping with testing.
func Init(config *Config) {
	initDbHelper(config)
	InitLogger(config)
}
