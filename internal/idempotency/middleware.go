package idempotency

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"
)

// Middleware deduplicates requests that carry an Idempotency-Key header.
// Keys are scoped by method, path and the values of scopeHeaders. Responses
// with a 5xx status, and handlers that panic, are not kept so the request
// can be retried.
func Middleware(store Store, log *slog.Logger, scopeHeaders ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(HeaderKey))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			scoped := scopeKey(r, key, scopeHeaders)

			rec, err := store.Reserve(ctx, scoped)
			switch {
			case errors.Is(err, ErrInProgress):
				writeFailure(w, http.StatusConflict, "duplicate request in progress")
				return
			case err != nil:
				log.ErrorContext(ctx, "idempotency store unavailable", "error", err)
				writeFailure(w, http.StatusServiceUnavailable, "idempotency store unavailable")
				return
			case rec != nil:
				log.InfoContext(ctx, "replaying stored response", "key", key, "status", rec.Status)
				replay(w, rec)
				return
			}

			var body bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&body)

			defer func() {
				if p := recover(); p != nil {
					if err := store.Release(ctx, scoped); err != nil {
						log.WarnContext(ctx, "failed to release idempotency key", "key", key, "error", err)
					}
					panic(p)
				}
			}()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			if status >= http.StatusInternalServerError {
				if err := store.Release(ctx, scoped); err != nil {
					log.WarnContext(ctx, "failed to release idempotency key", "key", key, "error", err)
				}
				return
			}

			header := http.Header{}
			if ct := ww.Header().Get("Content-Type"); ct != "" {
				header.Set("Content-Type", ct)
			}
			if err := store.Complete(ctx, scoped, Record{Status: status, Header: header, Body: body.Bytes()}); err != nil {
				log.WarnContext(ctx, "failed to store idempotent response", "key", key, "error", err)
			}
		})
	}
}

func scopeKey(r *http.Request, key string, headers []string) string {
	parts := []string{r.Method, r.URL.Path}
	for _, h := range headers {
		parts = append(parts, r.Header.Get(h))
	}
	parts = append(parts, key)
	return strings.Join(parts, "|")
}

func replay(w http.ResponseWriter, rec *Record) {
	for k, vs := range rec.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set(HeaderReplayed, "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}
