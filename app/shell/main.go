// Command shell runs a full node together with an interactive prompt
// an operator drives it from, the way the teacher's wallet CLI drives
// a node except here there is no HTTP hop: every command runs against
// this process's own fullnode.Node.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/naivecoin-go/naivecoin/app/services/node/handlers"
	"github.com/naivecoin-go/naivecoin/app/shell/cmd"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/fullnode"
	"github.com/naivecoin-go/naivecoin/foundation/config"
	"github.com/naivecoin-go/naivecoin/foundation/logger"
	"go.uber.org/zap"
)

var build = "develop"

func main() {
	log, err := logger.New("SHELL")
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
	const prefix = "SHELL"
	cfg, help, err := config.Parse(prefix, build)
	if err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if help != "" {
		fmt.Println(help)
		return nil
	}

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

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
	cmd.SetNode(node)

	debugMux := handlers.DebugMux(build, log, node)
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "ERROR", err)
		}
	}()

	peerMux := http.NewServeMux()
	peerMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if err := node.ServeUpgrade(w, r); err != nil {
			log.Warnw("peer listener: upgrade failed", "remote", r.RemoteAddr, "error", err)
		}
	})
	peer := http.Server{
		Addr:     cfg.Node.ListenAddress,
		Handler:  peerMux,
		ErrorLog: zap.NewStdLog(log.Desugar()),
	}
	go func() {
		if err := peer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("shutdown", "status", "peer listener closed", "ERROR", err)
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()
		peer.Shutdown(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go runPrompt(done)

	select {
	case <-done:
	case s := <-sig:
		log.Infow("shutdown", "status", "shutdown started", "signal", s)
	}

	return nil
}

// runPrompt reads shell commands from stdin until "q" or EOF, printing
// a short message and continuing the loop on any command failure.
func runPrompt(done chan<- struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			fmt.Print("> ")
			continue
		}

		if err := cmd.Execute(fields); err != nil {
			if errors.Is(err, cmd.ErrQuit) {
				return
			}
			fmt.Println("error:", err)
		}
		fmt.Print("> ")
	}
}
