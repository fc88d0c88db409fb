package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/logger"
)

// maxBodyBytes bounds a product batch request body.
const maxBodyBytes = 8 << 20

// CatalogWriter stores products and announces the change. *catalog.Importer
// implements it.
type CatalogWriter interface {
	Import(ctx context.Context, products []catalog.Product) error
	Delete(ctx context.Context, id string) error
}

// ProductReader looks up a stored product. *catalog.Store implements it.
type ProductReader interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
}

type Handler struct {
	writer CatalogWriter
	reader ProductReader
	logger *slog.Logger
}

func New(writer CatalogWriter, reader ProductReader) *Handler {
	return &Handler{
		writer: writer,
		reader: reader,
		logger: slog.Default().With("component", "ingestion-handler"),
	}
}

// Register mounts the ingestion routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/products", h.Ingest)
	mux.HandleFunc("GET /api/v1/products/{id}", h.Get)
	mux.HandleFunc("DELETE /api/v1/products/{id}", h.Delete)
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingestion.IngestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateIngestRequest(&req); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.writer.Import(ctx, req.Products); err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed", "error", err, "status_code", statusCode)
		h.writeError(w, statusCode, "ingestion failed")
		return
	}
	log.Info("products ingested", "count", len(req.Products))
	h.writeJSON(w, http.StatusAccepted, ingestion.IngestResponse{
		Accepted: len(req.Products),
		Status:   "stored",
	})
}

// Get returns the stored record, which may be newer than what searchers
// currently serve.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	p, err := h.reader.GetProduct(ctx, id)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		if statusCode == http.StatusNotFound {
			h.writeError(w, statusCode, "product not found")
			return
		}
		logger.FromContext(ctx).Error("get failed", "id", id, "error", err)
		h.writeError(w, statusCode, "lookup failed")
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if err := h.writer.Delete(ctx, id); err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		if statusCode == http.StatusNotFound {
			h.writeError(w, statusCode, "product not found")
			return
		}
		logger.FromContext(ctx).Error("delete failed", "id", id, "error", err)
		h.writeError(w, statusCode, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
