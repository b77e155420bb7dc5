package tts

import (
	"errors"
	"fmt"
)

// Common playback errors
var (
	// ErrEmptyText indicates there was nothing left to speak after normalization
	ErrEmptyText = errors.New("text is empty")

	// ErrNoVoice indicates no voice is selected
	ErrNoVoice = errors.New("no voice selected")

	// ErrClosed indicates the provider has been closed
	ErrClosed = errors.New("provider closed")

	// ErrInvalidProvider indicates an unknown provider kind
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrSegmentation indicates the segmenter failed for a session
	ErrSegmentation = errors.New("segmentation failed")
)

// User-facing messages.
const (
	msgNothingToRead = "Nothing to read from this chapter."
	msgSelectVoice   = "Please select a voice."
	msgVoicesFailed  = "Unable to load voices."
	msgDecodeFailed  = "Failed to decode streamed audio."
)

// TTSError represents a playback error with additional context
type TTSError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *TTSError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *TTSError) Unwrap() error {
	return e.Cause
}

// ErrorCode identifies specific error types
type ErrorCode string

const (
	// Engine errors
	ErrorCodeEngineFailure     ErrorCode = "ENGINE_FAILURE"
	ErrorCodeEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"

	// Audio errors
	ErrorCodeAudioDevice ErrorCode = "AUDIO_DEVICE"
	ErrorCodeAudioFormat ErrorCode = "AUDIO_FORMAT"

	// Catalog errors
	ErrorCodeVoicesUnavailable ErrorCode = "VOICES_UNAVAILABLE"

	// Input errors
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorCodeSegmentation ErrorCode = "SEGMENTATION"
)

// NewTTSError creates a new error with context
func NewTTSError(code ErrorCode, message string, cause error) *TTSError {
	return &TTSError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context to the error
func (e *TTSError) WithContext(key string, value interface{}) *TTSError {
	e.Context[key] = value
	return e
}

// IsFatal returns true if the provider cannot be used at all
func (e *TTSError) IsFatal() bool {
	switch e.Code {
	case ErrorCodeEngineUnavailable, ErrorCodeAudioDevice:
		return true
	default:
		return false
	}
}

// Message returns the text to show a user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var te *TTSError
	if errors.As(err, &te) && te.Message != "" {
		return te.Message
	}
	return err.Error()
}

func errNothingToRead() *TTSError {
	return NewTTSError(ErrorCodeInvalidInput, msgNothingToRead, ErrEmptyText)
}

func errSelectVoice() *TTSError {
	return NewTTSError(ErrorCodeInvalidInput, msgSelectVoice, ErrNoVoice)
}
