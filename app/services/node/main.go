package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/naivecoin-go/naivecoin/app/services/node/handlers"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/fullnode"
	"github.com/naivecoin-go/naivecoin/foundation/config"
	"github.com/naivecoin-go/naivecoin/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	const prefix = "NODE"
	cfg, help, err := config.Parse(prefix, build)
	if err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if help != "" {
		fmt.Println(help)
		return nil
	}

	// =========================================================================
	// App Starting

	fmt.Println(`     _   _    _____     _______ ____ ___ _____   ____  ____   __`)
	fmt.Println(`    | \ | |  / \ \ \   / / ____/ ___/ _ \_ _\ \ / /___\/ ___| /_ |`)
	fmt.Println(`    |  \| | / _ \\ \ / /|  _|| |  | | | | | \ V // __ / |  _   | |`)
	fmt.Println(`    | |\  |/ ___ \\ V / | |__| |__| |_| | |  | | \__ \ |_| |  | |`)
	fmt.Println(`    |_| \_/_/   \_\_/  |_____\____\___/___| |_| |___/\____|  |_|`)
	fmt.Print("\n")

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := config.String(cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Blockchain Support

	node, err := fullnode.New(fullnode.Config{
		ListenAddress: cfg.Node.ListenAddress,
		KnownPeers:    cfg.Node.KnownPeers,
		MaxDataBytes:  cfg.Node.MaxDataBytes,
		KeyPath:       cfg.Node.KeyPath,
		Log:           log,
	})
	if err != nil {
		return fmt.Errorf("constructing node: %w", err)
	}
	defer node.Shutdown()

	node.Start(cfg.Node.KnownPeers)

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug router started", "host", cfg.Web.DebugHost)

	debugMux := handlers.DebugMux(build, log, node)

	// Not concerned with shutting this down gracefully; it carries no
	// client-facing state, only introspection.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Peer Listener

	log.Infow("startup", "status", "peer listener starting", "host", cfg.Node.ListenAddress)

	peerMux := http.NewServeMux()
	peerMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if err := node.ServeUpgrade(w, r); err != nil {
			log.Warnw("peer listener: upgrade failed", "remote", r.RemoteAddr, "error", err)
		}
	})

	peer := http.Server{
		Addr:         cfg.Node.ListenAddress,
		Handler:      peerMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "peer listener started", "host", peer.Addr)
		serverErrors <- peer.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		log.Infow("shutdown", "status", "shutdown node")
		node.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		log.Infow("shutdown", "status", "shutdown peer listener started")
		if err := peer.Shutdown(ctx); err != nil {
			peer.Close()
			return fmt.Errorf("could not stop peer listener gracefully: %w", err)
		}
	}

	return nil
}
