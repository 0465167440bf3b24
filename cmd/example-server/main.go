package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tryon-gateway/middleware/ratelimit"
	"tryon-gateway/middleware/ratelimit/application"
	"tryon-gateway/middleware/ratelimit/domain"
	"tryon-gateway/middleware/ratelimit/infra"

	"github.com/rs/zerolog"
)

// Exemplo: usando a janela deslizante e o limite de concorrência direto no seu
// webserver, sem o handler de try-on. Aqui a admissão acontece logo na entrada.
func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	policy := domain.Policy{Limit: 5, Window: time.Minute}
	store := infra.NewMemoryWindowStore(policy)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	store.StartJanitor(ctx)

	admission := application.Service{Store: store, Policy: policy, Logger: log}
	keyFunc := ratelimit.DefaultKeyFunc("X-Api-Key", true) // ou "" para usar IP

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		dec := admission.Decide(r.Context(), domain.Key(keyFunc(r)))
		ratelimit.WriteHeaders(w, dec, true)
		if !dec.Allowed {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	h := ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Max: 50})(mux)

	addr := ":8082"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("example server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}
}
