package services

import "github.com/samber/oops"

// Error codes attached to every error returned by the services. Handlers map
// them to HTTP statuses.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeUnauthenticated     = "UNAUTHENTICATED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeDuplicateName       = "DUPLICATE_NAME"
	CodeServerMisconfigured = "SERVER_MISCONFIGURED"
	CodeInternal            = "INTERNAL"
)

// Code returns the service error code carried by err, or CodeInternal for
// errors that were not produced by this package.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return CodeInternal
	}
	code, ok := oopsErr.Code().(string)
	if !ok || code == "" {
		return CodeInternal
	}
	return code
}

// Message returns the caller-facing message of err. Internal failures never
// expose their cause.
func Message(err error) string {
	if Code(err) == CodeInternal {
		return "internal server error"
	}
	oopsErr, _ := oops.AsOops(err)
	return oopsErr.Error()
}

func invalidInput(format string, args ...any) error {
	return oops.Code(CodeInvalidInput).Errorf(format, args...)
}

func notFound(format string, args ...any) error {
	return oops.Code(CodeNotFound).Errorf(format, args...)
}

func conflict(format string, args ...any) error {
	return oops.Code(CodeConflict).Errorf(format, args...)
}

func internal(operation string, err error) error {
	return oops.Code(CodeInternal).With("operation", operation).Wrap(err)
}
