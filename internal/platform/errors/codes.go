// Package errors provides structured error handling with machine-readable codes.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session errors
	CodeSessionNotFound        Code = "SESSION_NOT_FOUND"
	CodeInvalidTurn            Code = "INVALID_TURN"
	CodeInvalidRole            Code = "INVALID_ROLE"
	CodeInvalidProposal        Code = "INVALID_PROPOSAL"
	CodeDuplicateEvent         Code = "DUPLICATE_EVENT"
	CodeMessageTooLong         Code = "MESSAGE_TOO_LONG"
	CodeCounterpartUnavailable Code = "COUNTERPART_UNAVAILABLE"

	// Leaderboard errors
	CodeMissingName   Code = "MISSING_NAME"
	CodeInvalidPage   Code = "INVALID_PAGE"
	CodeInvalidSort   Code = "INVALID_SORT"
	CodeInvalidFilter Code = "INVALID_FILTER"
)

// HTTPStatus maps an error code to the HTTP status the boundary serves it as.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeSessionNotFound:
		return http.StatusNotFound
	case CodeInvalidTurn, CodeInvalidRole, CodeDuplicateEvent:
		return http.StatusConflict
	case CodeInvalidProposal, CodeMessageTooLong, CodeMissingName,
		CodeInvalidPage, CodeInvalidSort, CodeInvalidFilter:
		return http.StatusBadRequest
	case CodeCounterpartUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
