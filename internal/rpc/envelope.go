// Package rpc exposes the job orchestrator over a JSON RPC envelope.
//
// Requests are {"method": ..., "params": {...}}. Every response, success
// or failure, is an envelope with a "status" of "accepted", "success" or
// "error". Errors carry {code, message, details?}.
package rpc

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/bmir-radx/harmonization-framework/internal/jobs"
)

// Method names.
const (
	MethodHarmonize = "harmonize"
	MethodGetJob    = "get_job"
)

// Response statuses.
const (
	StatusAccepted = "accepted"
	StatusSuccess  = "success"
	StatusError    = "error"
)

// Request is the RPC request envelope.
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Response is the RPC response envelope.
type Response struct {
	Status string      `json:"status"`
	Result any         `json:"result,omitempty"`
	Error  *jobs.Error `json:"error,omitempty"`
	JobID  string      `json:"job_id,omitempty"`
}

// Failure builds an error response.
func Failure(err *jobs.Error) Response {
	return Response{Status: StatusError, Error: err}
}

// NormalizeMethod converts camelCase method names to snake_case, so
// "getJob" dispatches as "get_job".
func NormalizeMethod(method string) string {
	var b strings.Builder
	for i, r := range method {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
