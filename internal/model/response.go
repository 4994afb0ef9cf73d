package model

import "time"

// ErrorResponse is the standard envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
type ErrorDetail struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// TokenResponse is returned by the token issuance endpoint.
type TokenResponse struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
	Username  string    `json:"username"`
}

// StatusResponse reports service state.
type StatusResponse struct {
	Status          string         `json:"status"`
	SecurityEnabled bool           `json:"security_enabled"`
	APIVersions     []int          `json:"api_versions"`
	Resources       map[string]int `json:"resources,omitempty"`
}
