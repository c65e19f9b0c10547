package types

import "github.com/m-mizutani/goerr/v2"

// Error tags classify failures per the recovery policy:
// configuration, permission, state and validation errors are
// user-actionable and never retried; infrastructure errors are retried
// with bounded backoff and surfaced with a correlation ID.
var (
	ErrTagConfig     = goerr.NewTag("config")
	ErrTagPermission = goerr.NewTag("permission")
	ErrTagState      = goerr.NewTag("state")
	ErrTagValidation = goerr.NewTag("validation")
	ErrTagInfra      = goerr.NewTag("infra")
)

// Typed error variables attached to wrapped errors
var (
	ErrVarCorrelationID  = goerr.NewTypedKey[string]("correlation_id")
	ErrVarCompletedSteps = goerr.NewTypedKey[[]string]("completed_steps")
)
