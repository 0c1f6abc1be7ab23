// Package http exposes the service's HTTP surface: health, a development
// ingress for inbound messages, and the guarded search tool endpoints the
// reasoning engine calls back into.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rulescribe/rulescribe/internal/domain"
	"github.com/rulescribe/rulescribe/internal/port/messagequeue"
	"github.com/rulescribe/rulescribe/internal/port/searchtool"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// DocumentLister enumerates the documents the library serves.
type DocumentLister interface {
	ListDocuments(ctx context.Context) ([]string, error)
}

// Handlers carries the collaborators the HTTP surface needs.
type Handlers struct {
	Queue     messagequeue.Queue
	Tools     searchtool.Tools
	Documents DocumentLister
}

type errorResponse struct {
	Error string `json:"error"`
}

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// requireField writes a 400 error and returns false when value is empty.
func requireField(w http.ResponseWriter, value, fieldName string) bool {
	if value == "" {
		writeError(w, http.StatusBadRequest, fieldName+" is required")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeSearchError maps guard sentinels onto gateway status codes.
func writeSearchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSearchTimeout):
		writeError(w, http.StatusGatewayTimeout, "search timed out")
	case errors.Is(err, domain.ErrSearchFailed):
		writeError(w, http.StatusBadGateway, "search failed")
	default:
		slog.Error("unhandled search error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// HandleIngressMessage accepts an inbound user message and publishes it on
// the ingress stream. This is the development stand-in for the chat gateway.
func (h *Handlers) HandleIngressMessage(w http.ResponseWriter, r *http.Request) {
	msg, ok := readJSON[messagequeue.InboundMessage](w, r)
	if !ok {
		return
	}
	if !requireField(w, msg.UserID, "user_id") || !requireField(w, msg.Text, "text") {
		return
	}
	msg.SelectionRef = ""

	data, err := json.Marshal(msg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := h.Queue.Publish(r.Context(), messagequeue.SubjectIngressMessage, data); err != nil {
		slog.Error("ingress publish failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "message queue unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// HandleIngressSelection accepts a selection reply (an inline button tap
// relayed by the gateway) and publishes it on the selection stream.
func (h *Handlers) HandleIngressSelection(w http.ResponseWriter, r *http.Request) {
	msg, ok := readJSON[messagequeue.InboundMessage](w, r)
	if !ok {
		return
	}
	if !requireField(w, msg.UserID, "user_id") || !requireField(w, msg.SelectionRef, "selection_ref") {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := h.Queue.Publish(r.Context(), messagequeue.SubjectIngressSelection, data); err != nil {
		slog.Error("selection publish failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "message queue unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

type lookupRequest struct {
	Query string `json:"query"`
}

type searchRequest struct {
	DocumentRef string `json:"document_ref"`
	Keywords    string `json:"keywords"`
}

type extractRequest struct {
	DocumentRef string `json:"document_ref"`
}

type toolResponse struct {
	Result string `json:"result"`
}

// HandleToolLookup serves filename lookups to the reasoning engine, behind
// the guard's concurrency budget and cache.
func (h *Handlers) HandleToolLookup(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[lookupRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Query, "query") {
		return
	}

	result, err := h.Tools.LookupFilenames(r.Context(), req.Query)
	if err != nil {
		writeSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toolResponse{Result: result})
}

// HandleToolSearch serves in-document keyword searches.
func (h *Handlers) HandleToolSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[searchRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.DocumentRef, "document_ref") || !requireField(w, req.Keywords, "keywords") {
		return
	}

	result, err := h.Tools.SearchInDocument(r.Context(), req.DocumentRef, req.Keywords)
	if err != nil {
		writeSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toolResponse{Result: result})
}

// HandleToolExtract serves full-document extraction, for when repeated
// searches fail and the engine needs the whole text.
func (h *Handlers) HandleToolExtract(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[extractRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.DocumentRef, "document_ref") {
		return
	}

	result, err := h.Tools.ExtractDocument(r.Context(), req.DocumentRef)
	if err != nil {
		writeSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toolResponse{Result: result})
}

// HandleListDocuments returns every document in the library.
func (h *Handlers) HandleListDocuments(w http.ResponseWriter, r *http.Request) {
	names, err := h.Documents.ListDocuments(r.Context())
	if err != nil {
		slog.Error("document list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"documents": names})
}
