package server

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	auditdomain "github.com/smallbiznis/sekarnet/internal/audit/domain"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/internal/authorization"
	billdomain "github.com/smallbiznis/sekarnet/internal/bill/domain"
	billingoverview "github.com/smallbiznis/sekarnet/internal/billingoverview/domain"
	catalogdomain "github.com/smallbiznis/sekarnet/internal/catalog/domain"
	"github.com/smallbiznis/sekarnet/internal/filestore"
	installationdomain "github.com/smallbiznis/sekarnet/internal/installation/domain"
	subscriptiondomain "github.com/smallbiznis/sekarnet/internal/subscription/domain"
	ticketdomain "github.com/smallbiznis/sekarnet/internal/ticket/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// bindError converts a gin binding failure into field-level validation errors.
func bindError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return invalidRequestError()
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Code:    fe.Tag(),
			Message: fieldErrorMessage(fe),
		})
	}
	return &ValidationErrors{Errors: out}
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "max":
		return fe.Field() + " must be at most " + fe.Param()
	case "email":
		return fe.Field() + " must be a valid email address"
	default:
		return fe.Field() + " is invalid"
	}
}

var tagNameOnce sync.Once

// registerValidatorTagNames makes field errors report json names.
func registerValidatorTagNames() {
	tagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return field.Name
		})
	})
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidToken):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, authorization.ErrInactiveAccount):
		return http.StatusForbidden, errorPayload{
			Type:    "inactive_account",
			Message: "account is inactive",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, authdomain.ErrUserExists),
		errors.Is(err, catalogdomain.ErrCodeExists):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, billdomain.ErrIllegalTransition),
		errors.Is(err, installationdomain.ErrIllegalTransition),
		errors.Is(err, ticketdomain.ErrIllegalTransition):
		return http.StatusConflict, errorPayload{
			Type:    "illegal_transition",
			Message: transitionMessage(err),
		}
	case errors.Is(err, billdomain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, errorPayload{
			Type:    "invalid_file",
			Message: "file exceeds the maximum upload size",
		}
	case errors.Is(err, billdomain.ErrInvalidFile):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_file",
			Message: "file type not allowed, only jpeg, png and pdf are accepted",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, filestore.ErrStorageFailure):
		return http.StatusInternalServerError, errorPayload{
			Type:    "storage_failure",
			Message: "failed to store file",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func transitionMessage(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ": "); idx >= 0 {
		return msg[idx+2:]
	}
	return "illegal status transition"
}

// classifyErrorForLog feeds the request logger's error_type and error_code fields.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	return payload.Type, err.Error()
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationErrs = []error{
	ErrInvalidRequest,
	authdomain.ErrInvalidUser,
	authdomain.ErrInvalidUsername,
	authdomain.ErrInvalidEmail,
	authdomain.ErrInvalidFullName,
	authdomain.ErrInvalidRole,
	authdomain.ErrWeakPassword,
	authorization.ErrInvalidLevel,
	auditdomain.ErrInvalidTimeRange,
	auditdomain.ErrInvalidAction,
	catalogdomain.ErrInvalidCode,
	catalogdomain.ErrInvalidName,
	catalogdomain.ErrInvalidSpeed,
	catalogdomain.ErrInvalidPrice,
	catalogdomain.ErrInvalidID,
	subscriptiondomain.ErrInvalidSubscription,
	subscriptiondomain.ErrInvalidUser,
	subscriptiondomain.ErrInvalidPackage,
	subscriptiondomain.ErrInvalidStatus,
	subscriptiondomain.ErrInvalidBillingCycle,
	subscriptiondomain.ErrInvalidBillingDay,
	subscriptiondomain.ErrInvalidPeriod,
	billdomain.ErrInvalidBill,
	billdomain.ErrInvalidSubscription,
	billdomain.ErrInvalidUser,
	billdomain.ErrInvalidAmount,
	billdomain.ErrInvalidDueDate,
	billdomain.ErrInvalidPaymentStatus,
	billdomain.ErrInvalidPaymentMethod,
	installationdomain.ErrPackageInactive,
	installationdomain.ErrInvalidInstallation,
	installationdomain.ErrInvalidUser,
	installationdomain.ErrInvalidPackage,
	installationdomain.ErrInvalidTechnician,
	installationdomain.ErrInvalidStatus,
	installationdomain.ErrInvalidAddress,
	installationdomain.ErrInvalidRequestedDate,
	installationdomain.ErrInvalidScheduledDate,
	installationdomain.ErrInvalidCoordinates,
	installationdomain.ErrInvalidNotes,
	ticketdomain.ErrInvalidTicket,
	ticketdomain.ErrInvalidUser,
	ticketdomain.ErrInvalidTechnician,
	ticketdomain.ErrInvalidTitle,
	ticketdomain.ErrInvalidDescription,
	ticketdomain.ErrInvalidStatus,
	ticketdomain.ErrInvalidPriority,
	ticketdomain.ErrInvalidCategory,
	ticketdomain.ErrInvalidResolution,
	ticketdomain.ErrInvalidMessage,
	billingoverview.ErrInvalidRange,
}

func isValidationError(err error) bool {
	for _, target := range validationErrs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, catalogdomain.ErrNotFound),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, subscriptiondomain.ErrUserNotFound),
		errors.Is(err, subscriptiondomain.ErrPackageNotFound),
		errors.Is(err, billdomain.ErrBillNotFound),
		errors.Is(err, billdomain.ErrSubscriptionNotFound),
		errors.Is(err, billdomain.ErrUserNotFound),
		errors.Is(err, billdomain.ErrProofNotFound),
		errors.Is(err, installationdomain.ErrNotFound),
		errors.Is(err, installationdomain.ErrUserNotFound),
		errors.Is(err, installationdomain.ErrPackageNotFound),
		errors.Is(err, ticketdomain.ErrNotFound),
		errors.Is(err, ticketdomain.ErrUserNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	for _, target := range validationErrs {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if code == "weak_password" {
		return "password"
	}
	if code == "package_inactive" {
		return "package_id"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "weak_password":
		return "password must be at least 8 characters and contain upper, lower, digit and special characters"
	case "package_inactive":
		return "package is not available"
	default:
		return "invalid value"
	}
}
