package hubble

import "fmt"

// UnknownCode is the Code of an APIError whose response body did not carry
// a JSON object with both "code" and "message".
const UnknownCode = "unknown"

// APIError is returned by Post when the API answers with any status other
// than 200.
type APIError struct {
	// Status is the HTTP status code of the response.
	Status int
	// Code is the server-supplied error code, or UnknownCode.
	Code string
	// Message is the server-supplied message, or the raw response body.
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s: %s (%d)", ClientName, e.Code, e.Message, e.Status)
}
