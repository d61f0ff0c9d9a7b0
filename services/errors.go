package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain failure. Handlers map kinds to HTTP status codes.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindForbidden
	KindValidation
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	}
	return "unknown"
}

// Error is a recoverable domain failure with a stable machine-readable code.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NotFound(code, msg string) *Error { return &Error{Kind: KindNotFound, Code: code, Message: msg} }
func Forbidden(code, msg string) *Error { return &Error{Kind: KindForbidden, Code: code, Message: msg} }
func Validation(code, msg string) *Error { return &Error{Kind: KindValidation, Code: code, Message: msg} }
func Conflict(code, msg string) *Error { return &Error{Kind: KindConflict, Code: code, Message: msg} }

// AsError unwraps err into a domain *Error when it is one.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

const (
	CodeProjectNotFound         = "PROJECT_NOT_FOUND"
	CodeUploadNotFound          = "UPLOAD_NOT_FOUND"
	CodeRewardNotFound          = "REWARD_NOT_FOUND"
	CodeUserNotFound            = "USER_NOT_FOUND"
	CodeForbidden               = "FORBIDDEN"
	CodeAdminOnly               = "ADMIN_ONLY"
	CodeInvalidDates            = "INVALID_DATES"
	CodeInvalidWeight           = "INVALID_WEIGHT"
	CodeActiveProjectExists     = "ACTIVE_PROJECT_EXISTS"
	CodeAlreadyStarted          = "ALREADY_STARTED"
	CodeProjectClosed           = "PROJECT_CLOSED"
	CodeProjectAlreadyClaimed   = "PROJECT_ALREADY_CLAIMED"
	CodeInvalidMonthNumber      = "INVALID_MONTH_NUMBER"
	CodePhotoRequired           = "PHOTO_REQUIRED"
	CodeDuplicateCheckpoint     = "DUPLICATE_CHECKPOINT"
	CodeUploadAlreadyVerified   = "UPLOAD_ALREADY_VERIFIED"
	CodeAlreadyClaimed          = "ALREADY_CLAIMED"
	CodeClaimRequirementsNotMet = "CLAIM_REQUIREMENTS_NOT_MET"
	CodeRewardInactive          = "REWARD_INACTIVE"
	CodeInvalidProgress         = "INVALID_PROGRESS"
	CodeRewardCodeRequired      = "REWARD_CODE_REQUIRED"
	CodeRewardCodeExists        = "REWARD_CODE_EXISTS"
	CodeValidationFailed        = "VALIDATION_FAILED"
)
