package vton

import (
	_ "embed"
	"net/http"
	"sync"
	"time"

	"tryon-gateway/middleware/ratelimit"
	"tryon-gateway/middleware/ratelimit/infra"
	"tryon-gateway/vton/domain"

	"github.com/goccy/go-yaml"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

//go:embed openapi.yaml
var openapiYAML []byte

var openapiJSON = sync.OnceValues(func() ([]byte, error) {
	return yaml.YAMLToJSON(openapiYAML)
})

// OpenAPIJSON devolve o documento OpenAPI embutido já convertido para JSON.
func OpenAPIJSON() ([]byte, error) { return openapiJSON() }

type RouterOptions struct {
	TryOn *Handler
	// Stats expõe GET /stats quando não for nil.
	Stats       *infra.MemoryStatsStore
	Concurrency ratelimit.ConcurrencyOptions
	// CORSOrigins vazio libera qualquer origem.
	CORSOrigins []string
	Logger      zerolog.Logger
}

// NewRouter monta as rotas e a cadeia: log de acesso -> CORS -> mux.
// O limite de concorrência vale só para /vton/.
func NewRouter(opts RouterOptions) http.Handler {
	if opts.Concurrency.Reject == nil {
		opts.Concurrency.Reject = func(w http.ResponseWriter, r *http.Request) {
			hlog.FromRequest(r).Warn().Msg("no free slot, rejecting")
			writeJSON(w, http.StatusServiceUnavailable, ErrorBody{
				Error:   string(domain.KindUpstreamUnavailable),
				Message: "Server busy. Please try again later.",
			})
		}
	}
	tryOn := ratelimit.ConcurrencyMiddleware(opts.Concurrency)(opts.TryOn)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Virtual Try On is Running"})
	})
	mux.HandleFunc("GET /openapi.json", func(w http.ResponseWriter, r *http.Request) {
		doc, err := OpenAPIJSON()
		if err != nil {
			writeError(w, *hlog.FromRequest(r), err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	})
	if opts.Stats != nil {
		stats := opts.Stats
		mux.HandleFunc("GET /stats", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, stats.Snapshot())
		})
	}
	// caminhos exatos: /vton/qualquer-coisa é 404 e não consome quota
	mux.Handle("/vton/{$}", tryOn)
	mux.Handle("/vton", tryOn)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Content-Disposition"},
		AllowCredentials: true,
	})

	h := c.Handler(mux)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	})(h)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	h = hlog.RemoteAddrHandler("ip")(h)
	h = hlog.NewHandler(opts.Logger)(h)
	return h
}
