// provedor-fake imita o provedor de try-on para validar o gateway à mão.
//
//	FAKE_ADDR=:8081 FAKE_API_KEY=dev FAKE_MODE=url go run ./teste-validacao/provedor-fake
//	PIXEL_CUT_API_ENDPOINT=http://localhost:8081/v1/try-on PIXEL_CUT_API_KEY=dev go run ./cmd/gateway
//
// FAKE_MODE=url devolve {"result_url": ...}; inline devolve a imagem direto.
// FAKE_FAIL_EVERY=n responde 503 a cada n-ésima chamada (exercita os retries).
package main

import (
	"io"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

type server struct {
	apiKey    string
	mode      string
	failEvery int64
	calls     atomic.Int64
	results   cmap.ConcurrentMap[string, []byte]
	log       zerolog.Logger
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	s := &server{
		apiKey:  getenv("FAKE_API_KEY", "dev"),
		mode:    getenv("FAKE_MODE", "url"),
		results: cmap.New[[]byte](),
		log:     log,
	}
	s.failEvery, _ = strconv.ParseInt(os.Getenv("FAKE_FAIL_EVERY"), 10, 64)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/try-on", s.tryOn)
	mux.HandleFunc("GET /results/{id}", s.result)

	addr := getenv("FAKE_ADDR", ":8081")
	log.Info().Str("addr", addr).Str("mode", s.mode).Msg("fake provider running")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func (s *server) tryOn(w http.ResponseWriter, r *http.Request) {
	n := s.calls.Add(1)
	s.log.Info().Int64("call", n).Msg("try-on received")

	if r.Header.Get("X-API-KEY") != s.apiKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid api key"})
		return
	}
	if s.failEvery > 0 && n%s.failEvery == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]string{"message": "expected multipart form"}})
		return
	}
	f, _, err := r.FormFile("person_image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]string{"message": "person_image is required"}})
		return
	}
	defer f.Close()
	if _, _, err := r.FormFile("garment_image"); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]string{"message": "garment_image is required"}})
		return
	}

	// "composição": devolve a própria foto da pessoa
	img, err := io.ReadAll(f)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if s.mode == "inline" {
		w.Header().Set("Content-Type", http.DetectContentType(img))
		_, _ = w.Write(img)
		return
	}

	id := uuid.NewString()
	s.results.Set(id, img)
	writeJSON(w, http.StatusOK, map[string]string{"result_url": "http://" + r.Host + "/results/" + id})
}

func (s *server) result(w http.ResponseWriter, r *http.Request) {
	img, ok := s.results.Pop(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(img))
	_, _ = w.Write(img)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
