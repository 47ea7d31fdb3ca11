package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
)

type routerOptions struct {
	timeout        time.Duration
	idempotency    usecase.IdempotencyRepository
	idempotencyTTL time.Duration
}

// RouterOption 設定 NewRouter 的選項
type RouterOption func(*routerOptions)

// WithTimeout 設定單一請求的處理時限
func WithTimeout(d time.Duration) RouterOption {
	return func(o *routerOptions) {
		o.timeout = d
	}
}

// WithIdempotency 啟用 Idempotency-Key，寫入操作才會套用
func WithIdempotency(store usecase.IdempotencyRepository, ttl time.Duration) RouterOption {
	return func(o *routerOptions) {
		o.idempotency = store
		o.idempotencyTTL = ttl
	}
}

// NewRouter 建立 chi Router 並掛上所有路由
func NewRouter(h *Handler, opts ...RouterOption) http.Handler {
	o := routerOptions{
		timeout:        60 * time.Second,
		idempotencyTTL: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(&o)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(RequestLogger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(o.timeout))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health response")
		}
	})

	router.Route("/clientes/{id}", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if o.idempotency != nil {
				r.Use(Idempotency(o.idempotency, o.idempotencyTTL, o.timeout))
			}
			r.Post("/transacoes", h.PostTransaction)
		})
		r.Get("/extrato", h.GetStatement)
	})
	return router
}
