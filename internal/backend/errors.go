package backend

import (
	"encoding/json"
	"errors"
	"fmt"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

// ServerMessage returns the backend-provided message carried by err, if any.
func ServerMessage(err error) (string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message, true
	}
	return "", false
}

func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
