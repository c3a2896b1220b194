package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the common shape for every failure this layer surfaces: a
// machine-readable code plus the original cause, so callers can branch on the
// code and still unwrap the underlying error.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) ErrCode() string {
	return e.Code
}

func (e *Error) StatusCode() int {
	switch e.Code {
	case CodeConfiguration, CodeInvalidRecipient, CodeValidation:
		return http.StatusBadRequest
	case CodeSessionNotFound:
		return http.StatusNotFound
	case CodeUnsupportedContent, CodeEditNotSupported, CodeDeleteNotSupported, CodeMessageTooOld:
		return http.StatusUnprocessableEntity
	case CodeConnectionClosed, CodeSocketNotAvailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error codes. The ticket layer branches on these; CONNECTION_CLOSED is the one
// code that requires operator action (reconnect the device) instead of retry.
const (
	CodeConfiguration      = "CONFIGURATION_ERROR"
	CodeValidation         = "VALIDATION_ERROR"
	CodeConnectionClosed   = "CONNECTION_CLOSED"
	CodeSocketNotAvailable = "SOCKET_NOT_AVAILABLE"
	CodeInvalidRecipient   = "INVALID_RECIPIENT"
	CodeUnsupportedContent = "UNSUPPORTED_CONTENT"
	CodeMessageTooOld      = "MESSAGE_TOO_OLD"
	CodeMediaUpload        = "MEDIA_UPLOAD_ERROR"
	CodeSendMessage        = "SEND_MESSAGE_ERROR"
	CodeEditNotSupported   = "EDIT_NOT_SUPPORTED"
	CodeDeleteNotSupported = "DELETE_NOT_SUPPORTED"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeInitFailure        = "INIT_FAILURE"
)

func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func Configuration(message string) *Error {
	return New(CodeConfiguration, message)
}

func Validation(message string) *Error {
	return New(CodeValidation, message)
}

func ConnectionClosed(cause error) *Error {
	return Wrap(CodeConnectionClosed, "transport connection closed", cause)
}

func SocketNotAvailable(cause error) *Error {
	return Wrap(CodeSocketNotAvailable, "socket transport not available", cause)
}

func InvalidRecipient(recipient string, cause error) *Error {
	return Wrap(CodeInvalidRecipient, fmt.Sprintf("invalid recipient %q", recipient), cause)
}

func UnsupportedContent(channel, kind string) *Error {
	return New(CodeUnsupportedContent, fmt.Sprintf("channel %s does not support %s content", channel, kind))
}

func MessageTooOld(message string) *Error {
	return New(CodeMessageTooOld, message)
}

func MediaUpload(cause error) *Error {
	return Wrap(CodeMediaUpload, "media upload failed", cause)
}

func SendMessage(cause error) *Error {
	return Wrap(CodeSendMessage, "message delivery failed", cause)
}

func EditNotSupported(channel string) *Error {
	return New(CodeEditNotSupported, fmt.Sprintf("channel %s does not support editing messages", channel))
}

func DeleteNotSupported(channel string) *Error {
	return New(CodeDeleteNotSupported, fmt.Sprintf("channel %s does not support deleting messages", channel))
}

func SessionNotFound(recipientID string) *Error {
	return New(CodeSessionNotFound, fmt.Sprintf("no active session for recipient %s", recipientID))
}

func InitFailure(message string, cause error) *Error {
	return Wrap(CodeInitFailure, message, cause)
}

// CodeOf extracts the machine-readable code from any error in the chain, or
// empty string when err carries none.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code string) bool {
	return CodeOf(err) == code
}
