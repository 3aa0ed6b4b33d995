package errors

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

// Error codes
const (
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer = 1000
	ErrInvalidRequest = 1001
	ErrNotFound       = 1002
	ErrConfiguration  = 1003

	// Agent turn errors (2000-2999)
	ErrToolExecution  = 2000
	ErrFileAttachment = 2001
	ErrStreaming      = 2002
	ErrThread         = 2003
)

var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	ErrInternalServer: {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidRequest: {ErrInvalidRequest, http.StatusBadRequest, "Invalid request"},
	ErrNotFound:       {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrConfiguration:  {ErrConfiguration, http.StatusInternalServerError, "Service is not configured"},

	ErrToolExecution:  {ErrToolExecution, http.StatusInternalServerError, "Tool execution failed"},
	ErrFileAttachment: {ErrFileAttachment, http.StatusInternalServerError, "File attachment failed"},
	ErrStreaming:      {ErrStreaming, http.StatusInternalServerError, "Agent stream failed"},
	ErrThread:         {ErrThread, http.StatusInternalServerError, "Thread operation failed"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// IsClientError checks if the code represents a client error (4xx)
func IsClientError(code int) bool {
	status := GetHTTPStatus(code)
	return status >= 400 && status < 500
}

// FormatError formats an error message with code
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
