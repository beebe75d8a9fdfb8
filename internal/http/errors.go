package http

import (
	"errors"
	"net/http"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

const internalErrorMessage = "Internal server error"

// badRequestKinds are domain rule violations reported as 400 with their
// own message.
var badRequestKinds = []error{
	core.ErrDuplicate,
	core.ErrCategoryTypeMismatch,
	core.ErrCategoryInUse,
	core.ErrDefaultCategory,
	core.ErrBudgetCategoryType,
	core.ErrRecurringInactive,
	core.ErrConcurrentGeneration,
	core.ErrInvalidFrequency,
	core.ErrInvalidType,
	core.ErrInvalidPeriod,
	core.ErrInvalidAmount,
	core.ErrAmountTooLarge,
	core.ErrInvalidDate,
	core.ErrInvalidDateRange,
	core.ErrUnsupportedCurrency,
}

// classify maps an error from the service layer to a status, a message
// and optional field errors. Unknown errors are 500.
func classify(err error) (int, string, []core.FieldError) {
	var verrs core.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest, "Validation failed", verrs
	}

	msg := func(kind error) string {
		var de *core.DomainError
		if errors.As(err, &de) && errors.Is(de.Kind, kind) {
			return de.Message
		}
		return kind.Error()
	}

	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, msg(core.ErrNotFound), nil
	case errors.Is(err, core.ErrInvalidCredentials):
		return http.StatusUnauthorized, msg(core.ErrInvalidCredentials), nil
	case errors.Is(err, core.ErrInvalidToken):
		return http.StatusUnauthorized, msg(core.ErrInvalidToken), nil
	}
	for _, kind := range badRequestKinds {
		if errors.Is(err, kind) {
			return http.StatusBadRequest, msg(kind), nil
		}
	}
	return http.StatusInternalServerError, internalErrorMessage, nil
}

// writeError renders err in the envelope. Server errors are logged and
// never leak their text.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message, fields := classify(err)
	if status >= http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
	}
	b := ErrorResponse(status, message)
	if len(fields) > 0 {
		b.FieldErrors(fields)
	}
	b.Write(w)
}
