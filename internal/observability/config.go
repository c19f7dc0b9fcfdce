package observability

import (
	nethttp "net/http"
	"net/http/pprof"
	"strings"
)

// Config captures opt-in observability toggles that wire into the server.
type Config struct {
	EnablePprof bool
}

// PprofPrefix is where profiling endpoints are mounted when enabled.
const PprofPrefix = "/debug/pprof/"

// PprofHandler dispatches a request under PprofPrefix to the matching
// net/http/pprof endpoint; unknown names fall through to the index, which
// serves the named runtime profiles.
func PprofHandler() nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch strings.TrimPrefix(r.URL.Path, PprofPrefix) {
		case "cmdline":
			pprof.Cmdline(w, r)
		case "profile":
			pprof.Profile(w, r)
		case "symbol":
			pprof.Symbol(w, r)
		case "trace":
			pprof.Trace(w, r)
		default:
			pprof.Index(w, r)
		}
	})
}
