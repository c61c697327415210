package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/bobmcallan/jira-bridge/internal/catalog"
	"github.com/bobmcallan/jira-bridge/internal/creds"
	"github.com/bobmcallan/jira-bridge/internal/jira"
	"github.com/bobmcallan/jira-bridge/internal/workflow"
)

// Kind labels the failure classes a dispatch can surface. All internal
// retrying is resolved before one of these crosses the dispatcher
// boundary; callers never see a raw network error.
type Kind string

const (
	KindUnknownTool       Kind = "unknown_tool"
	KindValidation        Kind = "validation"
	KindConfiguration     Kind = "configuration"
	KindAuthentication    Kind = "authentication"
	KindRateLimited       Kind = "rate_limited"
	KindUpstreamRejected  Kind = "upstream_rejected"
	KindIllegalTransition Kind = "illegal_transition"
	KindTransient         Kind = "transient"
)

// Error is the structured failure half of a tool result. Only the
// fields relevant to the kind are set.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`

	Param          string        `json:"param,omitempty"`
	UpstreamStatus int           `json:"upstream_status,omitempty"`
	RetryAfter     time.Duration `json:"-"`
	RetryAfterSecs int           `json:"retry_after_seconds,omitempty"`
	CurrentStatus  string        `json:"current_status,omitempty"`
	LegalMoves     []string      `json:"legal_transitions,omitempty"`
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// classify maps a failure from any dispatch step into the gateway's
// error taxonomy. Unrecognized failures are reported as transient so
// callers treat them as retryable rather than as their own fault.
func classify(err error) *Error {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr
	}

	var verr *catalog.ValidationError
	if errors.As(err, &verr) {
		return &Error{Kind: KindValidation, Message: verr.Message, Param: verr.Param}
	}

	var cerr *creds.ConfigError
	if errors.As(err, &cerr) {
		return &Error{Kind: KindConfiguration, Message: cerr.Error()}
	}

	var aerr *jira.AuthError
	if errors.As(err, &aerr) {
		return &Error{Kind: KindAuthentication, Message: aerr.Error(), UpstreamStatus: aerr.Status}
	}

	var rlerr *jira.RateLimitError
	if errors.As(err, &rlerr) {
		return &Error{
			Kind:           KindRateLimited,
			Message:        rlerr.Error(),
			RetryAfter:     rlerr.RetryAfter,
			RetryAfterSecs: int(rlerr.RetryAfter / time.Second),
		}
	}

	var terr *workflow.TransitionError
	if errors.As(err, &terr) {
		return &Error{
			Kind:          KindIllegalTransition,
			Message:       terr.Error(),
			CurrentStatus: terr.Current,
			LegalMoves:    terr.Legal,
		}
	}

	var serr *jira.StatusError
	if errors.As(err, &serr) {
		return &Error{Kind: KindUpstreamRejected, Message: serr.Message, UpstreamStatus: serr.Status}
	}

	var trerr *jira.TransientError
	if errors.As(err, &trerr) {
		return &Error{Kind: KindTransient, Message: trerr.Error(), UpstreamStatus: trerr.Status}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTransient, Message: err.Error()}
	}

	return &Error{Kind: KindTransient, Message: err.Error()}
}
