// Package ingestion defines the request and response types of the catalog
// ingestion API, which writes products and announces them to searchers.
package ingestion

import "github.com/Adithya-Monish-Kumar-K/storefront-search/internal/catalog"

// IngestRequest is the JSON body accepted by POST /api/v1/products.
type IngestRequest struct {
	Products []catalog.Product `json:"products"`
}

// IngestResponse is returned once the products are stored.
type IngestResponse struct {
	Accepted int    `json:"accepted"`
	Status   string `json:"status"`
}
