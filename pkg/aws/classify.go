package aws

import (
	"context"
	"errors"
	"net/http"

	"github.com/aws/smithy-go"

	"github.com/ranas-mukminov/cloud-iam-optimizer/internal/models"
)

// CallError wraps a failed IAM API call with its classification so that
// callers outside this package can branch on class without knowing AWS
// error codes.
type CallError struct {
	Op    string
	Class models.ErrorClass
	Err   error
}

func (e *CallError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// ErrorClass reports the classification carried by this error
func (e *CallError) ErrorClass() models.ErrorClass {
	return e.Class
}

// wrapErr classifies err and tags it with the failed operation name
func wrapErr(op string, err error) error {
	return &CallError{Op: op, Class: ClassifyError(err), Err: err}
}

// API error codes returned by IAM that indicate the call may succeed if
// retried after a delay.
var transientCodes = map[string]bool{
	"Throttling":               true,
	"ThrottlingException":      true,
	"RequestThrottled":         true,
	"RequestLimitExceeded":     true,
	"TooManyRequestsException": true,
	"ServiceUnavailable":       true,
	"SlowDown":                 true,
}

var permissionCodes = map[string]bool{
	"AccessDenied":          true,
	"AccessDeniedException": true,
	"UnauthorizedOperation": true,
}

var notFoundCodes = map[string]bool{
	"NoSuchEntity":          true,
	"NoSuchEntityException": true,
	"NotFoundException":     true,
}

// ClassifyError maps an error from an IAM API call to an ErrorClass so the
// audit engine can decide whether to retry, record, or ignore it.
func ClassifyError(err error) models.ErrorClass {
	if err == nil {
		return ""
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case transientCodes[code]:
			return models.ErrClassTransient
		case permissionCodes[code]:
			return models.ErrClassPermission
		case notFoundCodes[code]:
			return models.ErrClassNotFound
		case code == "MalformedPolicyDocument":
			return models.ErrClassMalformed
		}
	}

	// Fall back to the HTTP status when the error code is unrecognized
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusTooManyRequests, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return models.ErrClassTransient
		case http.StatusForbidden:
			return models.ErrClassPermission
		case http.StatusNotFound:
			return models.ErrClassNotFound
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrClassTransient
	}

	return models.ErrClassUnknown
}
