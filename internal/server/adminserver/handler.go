package adminserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/minddrive/ns-server/internal/node/identity"
)

// NodeController is the part of the node identity service the admin
// interface drives.
type NodeController interface {
	AdjustAddress(ctx context.Context, addr string, userSupplied bool, onRename func()) (identity.Outcome, error)
	ResetAddress(ctx context.Context) error
	CurrentAddress() (addr string, userSupplied bool)
	NodeName() string
}

// Handler routes admin requests to the node controller.
type Handler struct {
	node   NodeController
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewHandler creates a Handler driving node.
func NewHandler(node NodeController, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		node:   node,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	h.mux.HandleFunc("GET /node/controller/address", h.handleGetAddress)
	h.mux.HandleFunc("POST /node/controller/change-address", h.handleChangeAddress)
	h.mux.HandleFunc("POST /node/controller/reset-address", h.handleResetAddress)

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status: "ok",
		Node:   h.node.NodeName(),
	})
}

func (h *Handler) handleGetAddress(w http.ResponseWriter, r *http.Request) {
	addr, userSupplied := h.node.CurrentAddress()
	h.writeJSON(w, r, http.StatusOK, AddressResponse{
		Address:      addr,
		UserSupplied: userSupplied,
		Node:         h.node.NodeName(),
	})
}

func (h *Handler) handleChangeAddress(w http.ResponseWriter, r *http.Request) {
	var req ChangeAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Address == "" {
		h.writeError(w, r, http.StatusBadRequest, "bad_request", "address is required")
		return
	}

	outcome, err := h.node.AdjustAddress(r.Context(), req.Address, req.UserSupplied, nil)
	switch {
	case errors.Is(err, identity.ErrNotStarted):
		h.writeError(w, r, http.StatusServiceUnavailable, "not_started", "node identity service not started")
		return
	case outcome == identity.OutcomeSaveFailed:
		// The layer already switched; the caller must know the address
		// was not persisted.
		h.logger.Error("address change not persisted", "error", err)
		h.writeError(w, r, http.StatusInternalServerError, outcome.String(), "address switched but not persisted")
		return
	case err != nil:
		h.logger.Error("address change failed", "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	h.writeJSON(w, r, http.StatusOK, ChangeAddressResponse{
		Outcome: outcome.String(),
		Node:    h.node.NodeName(),
	})
}

func (h *Handler) handleResetAddress(w http.ResponseWriter, r *http.Request) {
	err := h.node.ResetAddress(r.Context())
	switch {
	case errors.Is(err, identity.ErrNotStarted):
		h.writeError(w, r, http.StatusServiceUnavailable, "not_started", "node identity service not started")
		return
	case err != nil:
		h.logger.Error("address reset failed", "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	addr, userSupplied := h.node.CurrentAddress()
	h.writeJSON(w, r, http.StatusOK, AddressResponse{
		Address:      addr,
		UserSupplied: userSupplied,
		Node:         h.node.NodeName(),
	})
}

// writeJSON writes a JSON response with the standard envelope.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := GetRequestIDFromContext(r.Context())
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with the standard envelope.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	requestID := GetRequestIDFromContext(r.Context())
	response := NewErrorResponse(requestID, code, message)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
