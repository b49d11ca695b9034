// Package handlers builds the debug HTTP surface every node exposes
// alongside its WebSocket peer listener.
package handlers

import (
	"encoding/json"
	"expvar"
	"net/http"
	"net/http/pprof"

	"github.com/dimfeld/httptreemux/v5"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/fullnode"
	"go.uber.org/zap"
)

// DebugStandardLibraryMux registers all the debug routes from the standard library
// into a new mux bypassing the use of the DefaultServerMux. Using the
// DefaultServerMux would be a security risk since a dependency could inject a
// handler into our service without us knowing it.
func DebugStandardLibraryMux() *http.ServeMux {
	mux := http.NewServeMux()

	// Register all the standard library debug endpoints.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	return mux
}

// statusResponse is the JSON body /debug/status reports.
type statusResponse struct {
	NodeID     string `json:"nodeId"`
	TipHash    string `json:"tipHash"`
	TipHeight  uint64 `json:"tipHeight"`
	PeerCount  int    `json:"peerCount"`
	MempoolLen int    `json:"mempoolLen"`
}

// livenessResponse mirrors the shape the original checkgrp.Handlers
// liveness endpoint reported.
type livenessResponse struct {
	Build string `json:"build"`
	Host  string `json:"host"`
}

// DebugMux registers all the debug standard library routes plus this
// node's own readiness/liveness/status routes, and dispatches between
// them by path. The node's own routes are served off an httptreemux
// router rather than more http.ServeMux entries, this module's chosen
// router for anything beyond the fixed set of stdlib debug paths.
func DebugMux(build string, log *zap.SugaredLogger, node *fullnode.Node) http.Handler {
	appMux := httptreemux.New()

	appMux.GET("/debug/readiness", func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		w.WriteHeader(http.StatusOK)
	})

	appMux.GET("/debug/liveness", func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		resp := livenessResponse{Build: build, Host: node.NodeID()}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Errorw("debug: liveness: encode failed", "error", err)
		}
	})

	appMux.GET("/debug/status", func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		tip, err := node.Block("")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp := statusResponse{
			NodeID:     node.NodeID(),
			TipHash:    chain.BlockHash(tip).String(),
			TipHeight:  tip.Height,
			PeerCount:  len(node.PeerList()),
			MempoolLen: node.MempoolLen(),
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Errorw("debug: status: encode failed", "error", err)
		}
	})

	stdMux := DebugStandardLibraryMux()

	mux := http.NewServeMux()
	mux.Handle("/debug/pprof/", stdMux)
	mux.Handle("/debug/vars", stdMux)
	mux.Handle("/debug/", appMux)

	return mux
}
