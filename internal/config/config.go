// Package config provides configuration for the relay and client binaries
// using command-line flags, environment variables and an optional JSON file.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"
)

// Options holds the configuration values for the application.
type Options struct {
	// ListenAddr is the relay's listening address (ip:port).
	ListenAddr string

	// RelayHost is the relay address clients connect to.
	RelayHost string

	// RedisAddr is the redis server address.
	RedisAddr string

	// MongoURI is the mongodb connection string used by the relay.
	MongoURI string

	// LedgerBackend selects the transfer backend: "simulated" or "chain".
	LedgerBackend string

	// ConfirmDelay is the simulated time to transfer finality.
	ConfirmDelay time.Duration

	// PinataJWT enables the real IPFS content store when set.
	PinataJWT string

	// PinataGateway overrides the default IPFS gateway.
	PinataGateway string

	// Config is the path to the config file.
	Config string
}

var options = &Options{}

func init() {
	flag.StringVar(&options.ListenAddr, "a", "localhost:9090", "relay listen address (ip:port)")
	flag.StringVar(&options.RelayHost, "relay", "localhost:9090", "relay host clients connect to")
	flag.StringVar(&options.RedisAddr, "redis", "localhost:6379", "redis server address")
	flag.StringVar(&options.MongoURI, "mongo", "mongodb://localhost:27017", "mongodb connection string")
	flag.StringVar(&options.LedgerBackend, "ledger", "simulated", "transfer backend: simulated or chain")
	flag.DurationVar(&options.ConfirmDelay, "confirm-delay", 3*time.Second, "simulated transfer confirmation delay")
	flag.StringVar(&options.Config, "config", "", "path to config file")
	flag.StringVar(&options.Config, "c", "", "path to config file (shorthand)")
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It returns a pointer to the Options struct
// containing the parsed configuration values.
func Parse() *Options {
	flag.Parse()

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				log.Fatalf("error while reading config file: %v", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				log.Fatalf("error while parsing config file: %v", err)
			}
		}
	}

	if addr := os.Getenv("RELAY_ADDRESS"); addr != "" {
		options.ListenAddr = addr
	}
	if addr := os.Getenv("REDIS_ADDRESS"); addr != "" {
		options.RedisAddr = addr
	}
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		options.MongoURI = uri
	}
	if backend := os.Getenv("LEDGER_BACKEND"); backend != "" {
		options.LedgerBackend = backend
	}
	if jwt := os.Getenv("PINATA_JWT"); jwt != "" {
		options.PinataJWT = jwt
	}
	if gw := os.Getenv("PINATA_GATEWAY"); gw != "" {
		options.PinataGateway = gw
	}

	return options
}
