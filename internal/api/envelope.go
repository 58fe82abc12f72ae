package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/crawlgate/crawlgate/internal/crawl"
)

// Business codes carried inside the response envelope. The HTTP status stays
// 200 for business failures; clients branch on the envelope code.
const (
	CodeSuccess       = 200
	CodeInvalidParams = 400
	CodeInvalidURL    = 40001
	CodeInternalError = 500
	CodeCrawlTimeout  = 50001
	CodeCrawlFailed   = 50002
)

// Response is the uniform envelope every endpoint returns.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Success bool   `json:"success"`
}

func writeSuccess(w http.ResponseWriter, data any, message string) {
	if message == "" {
		message = "success"
	}
	writeEnvelope(w, http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
		Success: true,
	})
}

func writeFailure(w http.ResponseWriter, code int, message string) {
	writeEnvelope(w, http.StatusOK, Response{
		Code:    code,
		Message: message,
		Success: false,
	})
}

// writeOperationError maps a typed crawl error to its business code; raw
// errors land on the internal-error code.
func writeOperationError(w http.ResponseWriter, err error) {
	var cerr *crawl.Error
	if !errors.As(err, &cerr) {
		writeFailure(w, CodeInternalError, err.Error())
		return
	}
	writeFailure(w, businessCode(cerr.Kind), cerr.Error())
}

func businessCode(kind crawl.ErrorKind) int {
	switch kind {
	case crawl.KindAuthRequired:
		return CodeInvalidParams
	case crawl.KindTimeout:
		return CodeCrawlTimeout
	case crawl.KindUnexpected:
		return CodeInternalError
	default:
		// setup_failed, browser_not_found, auth_expired, crawl_failed,
		// extract_failed, link_not_found
		return CodeCrawlFailed
	}
}

func writeEnvelope(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		zap.L().Error("write response failed", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}
