package adminserver

import "time"

// Response is the standard JSON response envelope. Every endpoint uses
// it except /metrics, which speaks the Prometheus text format.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "ok",
		Message:   "success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// ChangeAddressRequest is the body of POST /node/controller/change-address.
type ChangeAddressRequest struct {
	Address      string `json:"address"`
	UserSupplied bool   `json:"user_supplied"`
}

// ChangeAddressResponse is the body of a completed address change.
type ChangeAddressResponse struct {
	Outcome string `json:"outcome"`
	Node    string `json:"node"`
}

// AddressResponse is the body of GET /node/controller/address.
type AddressResponse struct {
	Address      string `json:"address"`
	UserSupplied bool   `json:"user_supplied"`
	Node         string `json:"node"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Node   string `json:"node"`
}
