// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/totorinodavid/docvault/lib/blobstore"
	"github.com/totorinodavid/docvault/lib/docindex"
	"github.com/totorinodavid/docvault/lib/ingest"
)

// metadataHeader carries client metadata on uploads: a JSON object of
// string keys to arbitrary values.
const metadataHeader = "X-Docvault-Metadata"

// documentResponse is the JSON representation of an index record.
type documentResponse struct {
	Hash        string         `json:"hash"`
	Size        int64          `json:"size"`
	Filename    string         `json:"filename,omitempty"`
	ContentType string         `json:"content_type,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Duplicate   bool           `json:"duplicate"`
}

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

type handlerConfig struct {
	Ingestor *ingest.Ingestor
	Index    docindex.Index
	Store    *blobstore.Store
	Logger   *slog.Logger
}

type handler struct {
	ingestor *ingest.Ingestor
	index    docindex.Index
	store    *blobstore.Store
	logger   *slog.Logger
	mux      *http.ServeMux
}

func newHandler(cfg handlerConfig) *handler {
	h := &handler{
		ingestor: cfg.Ingestor,
		index:    cfg.Index,
		store:    cfg.Store,
		logger:   cfg.Logger,
		mux:      http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /documents", h.handleUpload)
	h.mux.HandleFunc("GET /documents/{hash}", h.handleGetRecord)
	h.mux.HandleFunc("GET /documents/{hash}/content", h.handleGetContent)
	h.mux.HandleFunc("GET /healthz", h.handleHealth)

	return h
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// handleUpload ingests the request body as a new document. Responds
// 201 for new content and 200 for a duplicate, both with the
// authoritative record.
func (h *handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	doc := ingest.Document{
		Filename:    r.URL.Query().Get("filename"),
		ContentType: r.Header.Get("Content-Type"),
	}

	if raw := r.Header.Get(metadataHeader); raw != "" {
		if err := json.Unmarshal([]byte(raw), &doc.Metadata); err != nil {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("%s is not a JSON object: %v", metadataHeader, err))
			return
		}
	}

	result, err := h.ingestor.Ingest(r.Context(), r.Body, doc)
	if err != nil {
		h.writeIngestError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, recordResponse(result.Record, result.Duplicate))
}

// handleGetRecord returns the index record for a hash.
func (h *handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	hash, ok := h.parseHashParam(w, r)
	if !ok {
		return
	}

	record, err := h.index.FindByHash(r.Context(), hash)
	if err != nil {
		if errors.Is(err, docindex.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("record lookup failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "index unavailable")
		return
	}

	writeJSON(w, http.StatusOK, recordResponse(record, false))
}

// handleGetContent streams the document payload.
func (h *handler) handleGetContent(w http.ResponseWriter, r *http.Request) {
	hash, ok := h.parseHashParam(w, r)
	if !ok {
		return
	}

	record, err := h.index.FindByHash(r.Context(), hash)
	if err != nil {
		if errors.Is(err, docindex.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("record lookup failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "index unavailable")
		return
	}

	reader, err := h.store.Open(hash)
	if err != nil {
		// Indexed but missing from disk: store/index drift that the
		// reconciler cannot repair (the record is authoritative).
		h.logger.Error("indexed blob missing from store",
			"hash", blobstore.FormatHash(hash),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "document content unavailable")
		return
	}
	defer reader.Close()

	contentType := record.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", record.Size))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("content stream interrupted",
			"hash", blobstore.FormatHash(hash),
			"error", err,
		)
	}
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseHashParam extracts and validates the {hash} path segment. On
// failure it writes the 400 response and returns ok=false.
func (h *handler) parseHashParam(w http.ResponseWriter, r *http.Request) (blobstore.Hash, bool) {
	hash, err := blobstore.ParseHash(r.PathValue("hash"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed document hash")
		return blobstore.Hash{}, false
	}
	return hash, true
}

// writeIngestError maps upload-path failures to status codes.
func (h *handler) writeIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, blobstore.ErrPayloadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "document exceeds the upload size limit")
	case errors.Is(err, os.ErrNotExist):
		h.logger.Error("upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "storage failure")
	default:
		h.logger.Error("upload failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "upload failed")
	}
}

func recordResponse(record docindex.Record, duplicate bool) documentResponse {
	return documentResponse{
		Hash:        blobstore.FormatHash(record.Hash),
		Size:        record.Size,
		Filename:    record.Filename,
		ContentType: record.ContentType,
		CreatedAt:   record.CreatedAt,
		Metadata:    record.Metadata,
		Duplicate:   duplicate,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
