// Package config defines this node's startup configuration, parsed
// with ardanlabs/conf/v3 the way the teacher's app/services/node/main.go
// parses its own inline config struct, then validated with
// go-playground/validator/v10 before any subsystem sees it.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/go-playground/validator/v10"
)

// ListenAddressEnvOverride takes precedence over both the configured
// default and any prefix-derived environment variable conf itself
// would look for.
const ListenAddressEnvOverride = "BLOCKCHAIN_SERVER_LISTEN_ADDRESS"

// Config is every value needed to bring up a node.
type Config struct {
	conf.Version
	Web struct {
		DebugHost       string        `conf:"default:0.0.0.0:7080"`
		ReadTimeout     time.Duration `conf:"default:5s"`
		WriteTimeout    time.Duration `conf:"default:10s"`
		IdleTimeout     time.Duration `conf:"default:120s"`
		ShutdownTimeout time.Duration `conf:"default:20s"`
	}
	Node struct {
		ListenAddress string        `conf:"default:0.0.0.0:9080" validate:"required,hostname_port"`
		KnownPeers    []string      `conf:"default:"`
		MaxDataBytes  int           `conf:"default:10240" validate:"gte=0"`
		KeyPath       string        `conf:"default:zblock/accounts/private.hex" validate:"required"`
		ConnectDialer time.Duration `conf:"default:1s" validate:"gt=0"`
	}
}

// Parse loads Config from environment variables and command-line flags
// under prefix, applies the fixed listen-address env override, and
// validates the result. A returned help string with a nil error means
// the caller asked for -h/--help and should print it and exit cleanly.
func Parse(prefix, build string) (Config, string, error) {
	cfg := Config{
		Version: conf.Version{
			Build: build,
			Desc:  "naivecoin-go full node",
		},
	}

	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			return Config{}, help, nil
		}
		return Config{}, "", fmt.Errorf("config: parsing: %w", err)
	}

	if v := os.Getenv(ListenAddressEnvOverride); v != "" {
		cfg.Node.ListenAddress = v
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, "", fmt.Errorf("config: validating: %w", err)
	}

	return cfg, "", nil
}

// String renders cfg the way conf.String does, for a single log line
// at startup.
func String(cfg Config) (string, error) {
	return conf.String(&cfg)
}
