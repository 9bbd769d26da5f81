package errors

import "strconv"

// Status is an opaque transport status code. Values mirror the errno-based
// codes binder services traditionally return. The proxy never interprets a
// Status; it is handed back to the caller unchanged.
type Status int32

const (
	StatusUnknownError       Status = -2147483648
	StatusNoMemory           Status = -12
	StatusInvalidOperation   Status = -38
	StatusBadValue           Status = -22
	StatusBadType            Status = StatusUnknownError + 1
	StatusNameNotFound       Status = -2
	StatusPermissionDenied   Status = -1
	StatusNoInit             Status = -19
	StatusAlreadyExists      Status = -17
	StatusTimedOut           Status = -110
	StatusUnknownTransaction Status = -74
	StatusFailedTransaction  Status = StatusUnknownError + 2
	StatusFdsNotAllowed      Status = StatusUnknownError + 7
	StatusUnexpectedNull     Status = StatusUnknownError + 8
)

var statusNames = map[Status]string{
	StatusUnknownError:       "UNKNOWN_ERROR",
	StatusNoMemory:           "NO_MEMORY",
	StatusInvalidOperation:   "INVALID_OPERATION",
	StatusBadValue:           "BAD_VALUE",
	StatusBadType:            "BAD_TYPE",
	StatusNameNotFound:       "NAME_NOT_FOUND",
	StatusPermissionDenied:   "PERMISSION_DENIED",
	StatusNoInit:             "NO_INIT",
	StatusAlreadyExists:      "ALREADY_EXISTS",
	StatusTimedOut:           "TIMED_OUT",
	StatusUnknownTransaction: "UNKNOWN_TRANSACTION",
	StatusFailedTransaction:  "FAILED_TRANSACTION",
	StatusFdsNotAllowed:      "FDS_NOT_ALLOWED",
	StatusUnexpectedNull:     "UNEXPECTED_NULL",
}

// Error implements the error interface
func (s Status) Error() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "status " + strconv.FormatInt(int64(s), 10)
}
