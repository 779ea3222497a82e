package errors

import "fmt"

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

var (
	ErrConfigNotFound = &AppError{Code: "CONFIG_001", Message: "configuration not found"}
	ErrConfigInvalid  = &AppError{Code: "CONFIG_002", Message: "invalid configuration"}

	ErrMedicationNotFound = &AppError{Code: "MED_001", Message: "medication not found"}
	ErrDoseEntryNotFound  = &AppError{Code: "MED_002", Message: "dose entry not found"}
	ErrGoalNotFound       = &AppError{Code: "GOAL_001", Message: "goal not found"}

	ErrInvalidDate      = &AppError{Code: "VAL_001", Message: "invalid date"}
	ErrInvalidClockTime = &AppError{Code: "VAL_002", Message: "invalid clock time"}
	ErrInvalidStatus    = &AppError{Code: "VAL_003", Message: "invalid dose status"}
	ErrInvalidFrequency = &AppError{Code: "VAL_004", Message: "invalid frequency"}
	ErrEmptyTimes       = &AppError{Code: "VAL_005", Message: "reminder times required"}

	ErrCounterUnavailable = &AppError{Code: "STORE_001", Message: "id counter unavailable"}

	ErrTriggerArming = &AppError{Code: "NOTIFY_001", Message: "trigger arming failed"}
	ErrTicketMissing = &AppError{Code: "NOTIFY_002", Message: "notification ticket not found"}

	ErrNotFound   = &AppError{Code: "GEN_001", Message: "resource not found"}
	ErrBadRequest = &AppError{Code: "GEN_002", Message: "bad request"}
	ErrInternal   = &AppError{Code: "GEN_003", Message: "internal error"}
)

func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}
