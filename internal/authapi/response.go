/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package authapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"code.cloudfoundry.org/bytefmt"

	"github.com/acronis/go-authcache/log"
)

// ErrorDomain is used as a domain of all errors returned by the API.
const ErrorDomain = "AuthCache"

// ContentTypeAppJSON represents MIME media type for JSON.
const ContentTypeAppJSON = "application/json"

// Error codes.
const (
	ErrCodeInternal          = "internalError"
	ErrCodeNotFound          = "notFound"
	ErrCodeMethodNotAllowed  = "methodNotAllowed"
	ErrCodeBadRequest        = "badRequest"
	ErrCodeUnsupportedMedia  = "unsupportedMediaType"
	ErrCodeBodyTooLarge      = "requestEntityTooLarge"
	ErrCodeUnknownSubject    = "unknownSubject"
	ErrCodeNoCredentialSet   = "noCredentialSet"
	ErrCodeCredentialFormat  = "invalidCredentialFormat"
	ErrCodeWeakPassword      = "weakPassword"
	ErrCodeTooManyRequests   = "tooManyRequests"
	ErrCodeServiceOverloaded = "serviceOverloaded"
)

// Error represents an error details.
type Error struct {
	Domain  string                 `json:"domain"`
	Code    string                 `json:"code"`
	Message string                 `json:"message,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// NewError creates a new Error with specified params.
func NewError(code, message string) *Error {
	return &Error{Domain: ErrorDomain, Code: code, Message: message}
}

// NewInternalError creates a new internal error.
func NewInternalError() *Error {
	return NewError(ErrCodeInternal, "Internal error.")
}

// AddContext adds value to error context.
func (e *Error) AddContext(field string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[field] = value
	return e
}

type errorResponseData struct {
	Err *Error `json:"error"`
}

// Does JSON marshaling with disabled HTML escaping
func jsonMarshal(v interface{}) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return buffer.Bytes()[:buffer.Len()-1], nil
}

// RespondJSON sends response with 200 HTTP status code, does JSON marshaling of data and writes result in response's body.
func RespondJSON(rw http.ResponseWriter, respData interface{}, logger log.FieldLogger) {
	RespondCodeAndJSON(rw, http.StatusOK, respData, logger)
}

// RespondCodeAndJSON sends a response with the passed status code and JSON-encoded data.
// Nil data means an empty body.
func RespondCodeAndJSON(rw http.ResponseWriter, statusCode int, respData interface{}, logger log.FieldLogger) {
	if respData == nil {
		rw.WriteHeader(statusCode)
		return
	}
	respJSON, err := jsonMarshal(respData)
	if err != nil {
		logger.Error("error while marshaling json for response body", log.Error(err))
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", ContentTypeAppJSON)
	rw.WriteHeader(statusCode)
	if _, err = rw.Write(respJSON); err != nil {
		logger.Error("error while writing response body", log.Error(err))
	}
}

// RespondError sets HTTP status code in response and writes wrapped error in body in JSON format.
// Also, it logs info (code and message) about error and counts it in metrics.
func RespondError(rw http.ResponseWriter, httpStatusCode int, apiErr *Error, logger log.FieldLogger, metrics *Metrics) {
	logger.Warn("error in response",
		log.Int("status", httpStatusCode), log.String("error_code", apiErr.Code), log.String("error_message", apiErr.Message))
	metrics.incResponseErrors(apiErr)
	RespondCodeAndJSON(rw, httpStatusCode, errorResponseData{apiErr}, logger)
}

func respondTooManyRequests(rw http.ResponseWriter, retryAfter time.Duration, logger log.FieldLogger, metrics *Metrics) {
	retryAfterSecs := int((retryAfter + time.Second - 1) / time.Second)
	if retryAfterSecs < 1 {
		retryAfterSecs = 1
	}
	rw.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
	RespondError(rw, http.StatusTooManyRequests, NewError(ErrCodeTooManyRequests, "Too many requests."), logger, metrics)
}

// malformedRequestError is an error that occurs in case of incorrect request.
type malformedRequestError struct {
	httpStatusCode int
	code           string
	message        string
}

func (e *malformedRequestError) Error() string {
	return e.message
}

// decodeRequestJSON reads the request body (limited by maxBodySize) and decodes it as JSON into dst.
func decodeRequestJSON(rw http.ResponseWriter, r *http.Request, dst interface{}, maxBodySize uint64) error {
	if reqContentType := r.Header.Get("Content-Type"); reqContentType != "" {
		contentType, _, err := mime.ParseMediaType(reqContentType)
		if err != nil || contentType != ContentTypeAppJSON {
			return &malformedRequestError{
				http.StatusUnsupportedMediaType, ErrCodeUnsupportedMedia,
				fmt.Sprintf("Content-Type %q is not supported.", reqContentType),
			}
		}
	}
	if maxBodySize > 0 {
		r.Body = http.MaxBytesReader(rw, r.Body, int64(maxBodySize))
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return &malformedRequestError{http.StatusBadRequest, ErrCodeBadRequest, "Request body must not be empty."}
		case errors.As(err, &maxBytesErr):
			return &malformedRequestError{
				http.StatusRequestEntityTooLarge, ErrCodeBodyTooLarge,
				fmt.Sprintf("Request body must not be larger than %s.", bytefmt.ByteSize(maxBodySize)),
			}
		case errors.As(err, &syntaxErr):
			return &malformedRequestError{
				http.StatusBadRequest, ErrCodeBadRequest,
				fmt.Sprintf("Request body contains badly-formed JSON (at position %d).", syntaxErr.Offset),
			}
		default:
			return &malformedRequestError{http.StatusBadRequest, ErrCodeBadRequest, "Request body is invalid: " + err.Error()}
		}
	}
	return nil
}
