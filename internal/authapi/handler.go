/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package authapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/acronis/go-authcache/boundedcache"
	"github.com/acronis/go-authcache/credential"
	"github.com/acronis/go-authcache/log"
)

const urlParamSubject = "subject"

// CredentialRegistry is the set of credential operations exposed by the API.
// It is implemented by *credential.Registry.
type CredentialRegistry interface {
	Verify(ctx context.Context, subject, plaintext string) (bool, error)
	SetPassword(ctx context.Context, subject, plaintext string) error
	DerivedToken(ctx context.Context, subject string) (string, error)
	Forget(subject string) bool
	CacheStats() boundedcache.Stats
}

var _ CredentialRegistry = (*credential.Registry)(nil)

type passwordRequest struct {
	Password *string `json:"password"`
}

type verifyResponse struct {
	Match bool `json:"match"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type handler struct {
	registry    CredentialRegistry
	limiter     *verifyLimiter
	metrics     *Metrics
	maxBodySize uint64
}

func (h *handler) verify(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := GetLoggerFromContext(ctx)
	subject := chi.URLParam(r, urlParamSubject)

	allowed, retryAfter, err := h.limiter.allow(ctx, subject, logger)
	if err != nil {
		logger.Error("rate limiter failed", log.Subject(subject), log.Error(err))
		RespondError(rw, http.StatusInternalServerError, NewInternalError(), logger, h.metrics)
		return
	}
	if !allowed {
		h.metrics.incVerifications(VerifyOutcomeLimited)
		respondTooManyRequests(rw, retryAfter, logger.With(log.Subject(subject)), h.metrics)
		return
	}

	password, ok := h.decodePassword(rw, r, logger)
	if !ok {
		return
	}

	match, err := h.registry.Verify(ctx, subject, password)
	if err != nil {
		h.metrics.incVerifications(VerifyOutcomeError)
		h.respondRegistryError(rw, subject, err, logger)
		return
	}
	if match {
		h.metrics.incVerifications(VerifyOutcomeMatch)
	} else {
		h.metrics.incVerifications(VerifyOutcomeMismatch)
		logger.Info("credential mismatch", log.Subject(subject))
	}
	RespondJSON(rw, verifyResponse{Match: match}, logger)
}

func (h *handler) setCredential(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := GetLoggerFromContext(ctx)
	subject := chi.URLParam(r, urlParamSubject)

	password, ok := h.decodePassword(rw, r, logger)
	if !ok {
		return
	}
	if password == "" {
		RespondError(rw, http.StatusBadRequest, NewError(ErrCodeBadRequest, "Password must not be empty."), logger, h.metrics)
		return
	}
	if err := h.registry.SetPassword(ctx, subject, password); err != nil {
		h.respondRegistryError(rw, subject, err, logger)
		return
	}
	RespondCodeAndJSON(rw, http.StatusNoContent, nil, logger)
}

func (h *handler) token(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := GetLoggerFromContext(ctx)
	subject := chi.URLParam(r, urlParamSubject)

	token, err := h.registry.DerivedToken(ctx, subject)
	if err != nil {
		h.respondRegistryError(rw, subject, err, logger)
		return
	}
	RespondJSON(rw, tokenResponse{Token: token}, logger)
}

func (h *handler) forget(rw http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromContext(r.Context())
	subject := chi.URLParam(r, urlParamSubject)

	if !h.registry.Forget(subject) {
		RespondError(rw, http.StatusNotFound,
			NewError(ErrCodeNotFound, "Subject is not cached.").AddContext(urlParamSubject, subject), logger, h.metrics)
		return
	}
	logger.Info("cached verifier dropped", log.Subject(subject))
	RespondCodeAndJSON(rw, http.StatusNoContent, nil, logger)
}

func (h *handler) cacheStats(rw http.ResponseWriter, r *http.Request) {
	RespondJSON(rw, h.registry.CacheStats(), GetLoggerFromContext(r.Context()))
}

func (h *handler) decodePassword(rw http.ResponseWriter, r *http.Request, logger log.FieldLogger) (string, bool) {
	var req passwordRequest
	if err := decodeRequestJSON(rw, r, &req, h.maxBodySize); err != nil {
		var reqErr *malformedRequestError
		if errors.As(err, &reqErr) {
			RespondError(rw, reqErr.httpStatusCode, NewError(reqErr.code, reqErr.message), logger, h.metrics)
			return "", false
		}
		RespondError(rw, http.StatusInternalServerError, NewInternalError(), logger, h.metrics)
		return "", false
	}
	if req.Password == nil {
		RespondError(rw, http.StatusBadRequest,
			NewError(ErrCodeBadRequest, `Request body must contain the "password" field.`), logger, h.metrics)
		return "", false
	}
	return *req.Password, true
}

func (h *handler) respondRegistryError(rw http.ResponseWriter, subject string, err error, logger log.FieldLogger) {
	logger = logger.With(log.Subject(subject))
	switch {
	case errors.Is(err, credential.ErrUnknownSubject):
		RespondError(rw, http.StatusNotFound,
			NewError(ErrCodeUnknownSubject, "Subject is unknown.").AddContext(urlParamSubject, subject), logger, h.metrics)
	case errors.Is(err, credential.ErrNoCredentialSet):
		RespondError(rw, http.StatusConflict,
			NewError(ErrCodeNoCredentialSet, "Subject has no credential set.").AddContext(urlParamSubject, subject),
			logger, h.metrics)
	case errors.Is(err, credential.ErrWeakPassword):
		RespondError(rw, http.StatusBadRequest, NewError(ErrCodeWeakPassword, capitalize(err.Error())+"."),
			logger, h.metrics)
	case errors.Is(err, credential.ErrCredentialFormat):
		logger.Error("stored credential is unusable", log.Error(err))
		RespondError(rw, http.StatusInternalServerError,
			NewError(ErrCodeCredentialFormat, "Stored credential is invalid."), logger, h.metrics)
	case errors.Is(err, context.DeadlineExceeded):
		RespondError(rw, http.StatusServiceUnavailable,
			NewError(ErrCodeServiceOverloaded, "Service is overloaded, try again later."), logger, h.metrics)
	default:
		logger.Error("credential operation failed", log.Error(err))
		RespondError(rw, http.StatusInternalServerError, NewInternalError(), logger, h.metrics)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
