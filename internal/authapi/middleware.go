/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package authapi

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/xid"

	"github.com/acronis/go-authcache/log"
)

const headerRequestID = "X-Request-ID"

// recoveryStackSize defines the size of stack part which will be logged.
const recoveryStackSize = 8192

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyLogger
)

// NewContextWithRequestID creates a new context with request id.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// GetRequestIDFromContext extracts request id from the context.
func GetRequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(ctxKeyRequestID).(string)
	return requestID
}

// NewContextWithLogger creates a new context with logger.
func NewContextWithLogger(ctx context.Context, logger log.FieldLogger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, logger)
}

// GetLoggerFromContext extracts logger from the context.
// The disabled logger is returned if the context has no logger.
func GetLoggerFromContext(ctx context.Context) log.FieldLogger {
	if logger, ok := ctx.Value(ctxKeyLogger).(log.FieldLogger); ok {
		return logger
	}
	return log.NewDisabledLogger()
}

// requestIDMiddleware reads X-Request-ID header and generates a new id (xid) if it's empty.
// The id is put into the request's context and returned in the response header.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = xid.New().String()
		}
		rw.Header().Set(headerRequestID, requestID)
		next.ServeHTTP(rw, r.WithContext(NewContextWithRequestID(r.Context(), requestID)))
	})
}

// loggingMiddleware puts a request-scoped logger into the context, logs completed requests
// and observes their durations.
func loggingMiddleware(logger log.FieldLogger, metrics *Metrics, excludedEndpoints []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			reqLogger := logger.With(
				log.String("request_id", GetRequestIDFromContext(r.Context())),
				log.String("method", r.Method),
				log.String("uri", r.RequestURI),
				log.String("remote_addr", r.RemoteAddr),
			)

			wrw := chimiddleware.NewWrapResponseWriter(rw, r.ProtoMajor)
			next.ServeHTTP(wrw, r.WithContext(NewContextWithLogger(r.Context(), reqLogger)))

			duration := time.Since(startTime)
			metrics.observeRequest(r.Method, routePattern(r), wrw.Status(), duration)
			if wrw.Status() < http.StatusBadRequest && isEndpointExcluded(r.URL.Path, excludedEndpoints) {
				return
			}
			reqLogger.Info(fmt.Sprintf("response completed in %.3fs", duration.Seconds()),
				log.Elapsed(duration),
				log.Int("status", wrw.Status()),
				log.Int("bytes_sent", wrw.BytesWritten()),
			)
		})
	}
}

// recoveryMiddleware recovers from panics, logs the panic value and a stacktrace,
// and responds with 500 HTTP status code.
func recoveryMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					logger := GetLoggerFromContext(r.Context())
					if p == http.ErrAbortHandler {
						logger.Warn("request has been aborted", log.Error(http.ErrAbortHandler))
						panic(p)
					}
					stack := make([]byte, recoveryStackSize)
					stack = stack[:runtime.Stack(stack, false)]
					logger.Error(fmt.Sprintf("Panic: %+v", p), log.Bytes("stack", stack))
					RespondError(rw, http.StatusInternalServerError, NewInternalError(), logger, metrics)
				}
			}()
			next.ServeHTTP(rw, r)
		})
	}
}

func routePattern(r *http.Request) string {
	if chiCtx := chi.RouteContext(r.Context()); chiCtx != nil {
		if pattern := chiCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "_unknown_"
}

func isEndpointExcluded(urlPath string, endpoints []string) bool {
	for _, endpoint := range endpoints {
		if urlPath == endpoint {
			return true
		}
	}
	return false
}
