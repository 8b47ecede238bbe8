package models

import (
	"errors"
	"fmt"
)

// Application-wide standard errors
var (
	// External backend errors (классы ошибок внешнего API)
	ErrNotFound   = errors.New("resource not found")
	ErrValidation = errors.New("validation failed")
	ErrNetwork    = errors.New("network or server error")

	// General request errors
	ErrInvalidInput = errors.New("invalid input data")
	ErrClosed       = errors.New("session is closed")

	// Play session errors
	ErrSessionNotFound   = errors.New("play session not found")
	ErrStalePage         = errors.New("choice refers to a page that is not the current page")
	ErrChoiceOutOfRange  = errors.New("choice index out of range")
	ErrChoiceUnavailable = errors.New("choice is not available")
	ErrNoPendingRoll     = errors.New("no dice roll is pending")
	ErrRollPending       = errors.New("a dice roll must be resolved first")
	ErrSessionEnded      = errors.New("session has ended")
	ErrClassNotSelected  = errors.New("a class must be selected first")
	ErrClassAlreadyBound = errors.New("class selection is not expected now")
	ErrUnknownClass      = errors.New("unknown class")
	ErrHotspotNotFound   = errors.New("hotspot not found")
	ErrNoChoiceForTarget = errors.New("no choice on the page leads to the target page")

	// Story graph errors
	ErrEditorSessionNotFound = errors.New("editor session not found")
	ErrPageNotFound          = errors.New("page not found in story")
	ErrEdgeNotFound          = errors.New("edge not found")
	ErrDuplicateTarget       = errors.New("page already has a choice leading to this target")
	ErrEndingHasChoices      = errors.New("ending page cannot have choices")
	ErrSelfLoop              = errors.New("a page cannot link to itself")
)

// APIError ошибка внешнего бэкенда. Kind - один из ErrNotFound/ErrValidation/ErrNetwork,
// Message - необязательное человекочитаемое сообщение из ответа.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
	Kind       error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %v (status %d): %s", e.Op, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %v (status %d)", e.Op, e.Kind, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// UserMessage возвращает сообщение для интерфейса, если бэкенд его передал.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return ""
}
