package rest

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
)

// HeaderIdempotencyKey 客戶端重送時帶上的 header
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotencyHit 回應來自快取時加上的 header
const HeaderIdempotencyHit = "X-Idempotency-Hit"

// responseRecorder 記錄 handler 寫出的 status 與 body
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Idempotency 同一個 Idempotency-Key 重送時直接回放第一次的回應
// 處理中的 key 以 lockTTL 標記，同時到達的重送回 409
// 快取層出錯時放行 (Fail Open)，5xx 不快取以便重試
func Idempotency(store usecase.IdempotencyRepository, ttl, lockTTL time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderIdempotencyKey)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			// 同一個 key 只對同一條路徑有效
			key = r.Method + ":" + r.URL.Path + ":" + key

			ctx := r.Context()
			cached, err := store.Get(ctx, key)
			if err != nil {
				log.Error().Err(err).Msg("failed to read idempotency key")
				next.ServeHTTP(w, r)
				return
			}
			if cached != nil {
				replay(w, key, cached)
				return
			}

			locked, err := store.Lock(ctx, key, lockTTL)
			if err != nil {
				log.Error().Err(err).Msg("failed to lock idempotency key")
				next.ServeHTTP(w, r)
				return
			}
			if !locked {
				http.Error(w, "request with the same idempotency key is in progress", http.StatusConflict)
				return
			}
			defer func() {
				// 請求的 ctx 可能已被取消，釋放標記不能跟著失敗
				if err := store.Unlock(context.WithoutCancel(ctx), key); err != nil {
					log.Error().Err(err).Msg("failed to unlock idempotency key")
				}
			}()

			// 取得標記前，前一個請求可能剛好完成
			if cached, err := store.Get(ctx, key); err == nil && cached != nil {
				replay(w, key, cached)
				return
			}

			recorder := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(recorder, r)

			if recorder.statusCode < http.StatusInternalServerError {
				err := store.Save(context.WithoutCancel(ctx), key, usecase.CachedResponse{
					StatusCode: recorder.statusCode,
					Body:       recorder.body.Bytes(),
				}, ttl)
				if err != nil {
					log.Error().Err(err).Msg("failed to save idempotency key")
				}
			}
		})
	}
}

func replay(w http.ResponseWriter, key string, cached *usecase.CachedResponse) {
	log.Debug().Str("key", key).Msg("idempotency cache hit")
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderIdempotencyHit, "true")
	w.WriteHeader(cached.StatusCode)
	if _, err := w.Write(cached.Body); err != nil {
		log.Error().Err(err).Msg("failed to write cached response")
	}
}

// RequestLogger 以 zerolog 記錄每個請求
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			event := log.Info()
			if ww.Status() >= http.StatusInternalServerError {
				event = log.Error()
			}
			event.
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Msg("http request")
		}()
		next.ServeHTTP(ww, r)
	})
}
