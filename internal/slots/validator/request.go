package validator

import (
	"fmt"
	"strings"
	"unicode"

	"slotlock/pkg/logger"
	"slotlock/pkg/model"

	"github.com/go-playground/validator/v10"
)

const maxIdentifierLen = 128

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// LockRequestValidator checks the shape of acquire/confirm/release requests
// before they reach the lock manager. Slot, owner, and lease ids are opaque
// strings supplied by the caller; the "identifier" rule only keeps them
// printable, whitespace-free, and bounded.
type LockRequestValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewLockRequestValidator(log *logger.Logger) *LockRequestValidator {
	v := validator.New()

	if err := v.RegisterValidation("identifier", validateIdentifier); err != nil {
		log.Fatal("Failed to register 'identifier' validator",
			"error", err,
		)
	}

	return &LockRequestValidator{
		validate: v,
		logger:   log,
	}
}

func (v *LockRequestValidator) ValidateAcquire(req *model.AcquireRequest) error {
	return v.toValidationErrors(v.validate.Struct(req))
}

func (v *LockRequestValidator) ValidateConfirm(req *model.ConfirmRequest) error {
	return v.toValidationErrors(v.validate.Struct(req))
}

func (v *LockRequestValidator) ValidateRelease(req *model.ReleaseRequest) error {
	return v.toValidationErrors(v.validate.Struct(req))
}

func (v *LockRequestValidator) toValidationErrors(err error) error {
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	var out ValidationErrors
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Message: messageFor(fe),
		})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "identifier":
		return fmt.Sprintf("must be a printable identifier without whitespace, at most %d characters", maxIdentifierLen)
	default:
		return fmt.Sprintf("failed '%s' validation", fe.Tag())
	}
}

func validateIdentifier(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" || len(s) > maxIdentifierLen {
		return false
	}
	for _, r := range s {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
