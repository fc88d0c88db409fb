package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/catalog"
	apperrors "github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	imported []catalog.Product
	deleted  []string
	err      error
}

func (f *fakeWriter) Import(_ context.Context, products []catalog.Product) error {
	if f.err != nil {
		return f.err
	}
	f.imported = append(f.imported, products...)
	return nil
}

func (f *fakeWriter) Delete(_ context.Context, id string) error {
	if id == "missing" {
		return fmt.Errorf("product %s: %w", id, apperrors.ErrProductNotFound)
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeWriter) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	for _, p := range f.imported {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("product %s: %w", id, apperrors.ErrProductNotFound)
}

func serve(h *Handler, method, path, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestIngestStoresValidBatch(t *testing.T) {
	w := &fakeWriter{}
	rec := serve(New(w, w), http.MethodPost, "/api/v1/products",
		`{"products":[{"id":"1","title":"Red Jacket","category":"women","rating":{"rate":4,"count":3}}]}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"accepted":1,"status":"stored"}`, rec.Body.String())
	require.Len(t, w.imported, 1)
	assert.Equal(t, 4.0, w.imported[0].Rate())
}

func TestIngestRejectsInvalidInput(t *testing.T) {
	w := &fakeWriter{}

	rec := serve(New(w, w), http.MethodPost, "/api/v1/products", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(New(w, w), http.MethodPost, "/api/v1/products", `{"products":[{"id":"1"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"products[0].title"`)
	assert.Empty(t, w.imported)
}

func TestIngestReportsStoreFailure(t *testing.T) {
	w := &fakeWriter{err: errors.New("connection refused")}
	rec := serve(New(w, w), http.MethodPost, "/api/v1/products", `{"products":[{"id":"1","title":"x"}]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"ingestion failed"}`, rec.Body.String())
}

func TestDelete(t *testing.T) {
	w := &fakeWriter{}

	rec := serve(New(w, w), http.MethodDelete, "/api/v1/products/42", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"42"}, w.deleted)

	rec = serve(New(w, w), http.MethodDelete, "/api/v1/products/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGet(t *testing.T) {
	w := &fakeWriter{imported: []catalog.Product{{ID: "7", Title: "Gold Ring"}}}

	rec := serve(New(w, w), http.MethodGet, "/api/v1/products/7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"7","title":"Gold Ring"}`, rec.Body.String())

	rec = serve(New(w, w), http.MethodGet, "/api/v1/products/8", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
