package net

import (
	"encoding/json"
	nethttp "net/http"
	"os"
	"time"

	"github.com/julienschmidt/httprouter"

	"silver-moon/server/internal/content"
	"silver-moon/server/internal/lobby"
	"silver-moon/server/internal/net/proto"
	"silver-moon/server/internal/observability"
	"silver-moon/server/internal/sim"
	"silver-moon/server/internal/telemetry"
	"silver-moon/server/logging"
)

// RuntimeInfo is served by /api/runtime so clients can locate the socket.
type RuntimeInfo struct {
	Port          int    `json:"port"`
	Host          string `json:"host"`
	WSPath        string `json:"wsPath"`
	PublicBaseURL string `json:"publicBaseUrl"`
}

type HTTPHandlerConfig struct {
	Content  *content.Store
	Registry *lobby.Registry
	// Socket serves websocket upgrades on Runtime.WSPath.
	Socket        nethttp.Handler
	Runtime       RuntimeInfo
	StaticDir     string
	Logger        telemetry.Logger
	Counters      *telemetry.Counters
	LogStats      func() logging.RouterStats
	Observability observability.Config
}

type lobbyListing struct {
	Count   int                  `json:"count"`
	Lobbies []proto.LobbySummary `json:"lobbies"`
}

type diagnostics struct {
	Status     string               `json:"status"`
	ServerTime int64                `json:"serverTime"`
	TickRate   int                  `json:"tickRate"`
	Lobbies    int                  `json:"lobbies"`
	Telemetry  map[string]uint64    `json:"telemetry"`
	Logging    *logging.RouterStats `json:"logging,omitempty"`
}

func NewHTTPHandler(cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	store := cfg.Content
	if store == nil {
		store = content.MustDefault()
	}
	wsPath := cfg.Runtime.WSPath
	if wsPath == "" {
		wsPath = "/ws"
	}

	router := httprouter.New()

	router.GET("/health", func(w nethttp.ResponseWriter, r *nethttp.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	router.GET("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request, _ httprouter.Params) {
		payload := diagnostics{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			TickRate:   sim.TickRate,
			Telemetry:  cfg.Counters.Snapshot(),
		}
		if cfg.Registry != nil {
			payload.Lobbies = cfg.Registry.Len()
		}
		if cfg.LogStats != nil {
			stats := cfg.LogStats()
			payload.Logging = &stats
		}
		writeJSON(w, logger, payload)
	})

	router.GET("/api/content", func(w nethttp.ResponseWriter, r *nethttp.Request, _ httprouter.Params) {
		writeRaw(w, store.CatalogJSON())
	})

	router.GET("/api/dungeons", func(w nethttp.ResponseWriter, r *nethttp.Request, _ httprouter.Params) {
		writeRaw(w, store.DungeonsJSON())
	})

	router.GET("/api/runtime", func(w nethttp.ResponseWriter, r *nethttp.Request, _ httprouter.Params) {
		info := cfg.Runtime
		info.WSPath = wsPath
		writeJSON(w, logger, info)
	})

	router.GET("/api/lobbies", func(w nethttp.ResponseWriter, r *nethttp.Request, _ httprouter.Params) {
		listing := lobbyListing{Lobbies: []proto.LobbySummary{}}
		if cfg.Registry != nil {
			listing.Lobbies = cfg.Registry.List()
		}
		listing.Count = len(listing.Lobbies)
		writeJSON(w, logger, listing)
	})

	if cfg.Socket != nil {
		router.Handler(nethttp.MethodGet, wsPath, cfg.Socket)
	}

	if cfg.Observability.EnablePprof {
		router.Handler(nethttp.MethodGet, observability.PprofPrefix+"*item", observability.PprofHandler())
		router.Handler(nethttp.MethodPost, observability.PprofPrefix+"*item", observability.PprofHandler())
	}

	if cfg.StaticDir != "" {
		if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
			router.NotFound = nethttp.FileServer(nethttp.Dir(cfg.StaticDir))
		} else {
			logger.Printf("static directory %q unavailable, serving API only", cfg.StaticDir)
		}
	}

	return router
}

func writeJSON(w nethttp.ResponseWriter, logger telemetry.Logger, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	writeRaw(w, data)
}

func writeRaw(w nethttp.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
