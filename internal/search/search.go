// Package search talks to the external embedding/ANN engine. The gateway
// treats the engine as a collaborator: one call per uncached query, bounded
// by the caller's deadline.
package search

import (
	"context"

	"github.com/uniclass/search-gateway/internal/models"
)

// Engine is the search collaborator contract.
type Engine interface {
	Search(ctx context.Context, query string, topK int) ([]models.SearchResult, error)
	Stats(ctx context.Context) (*IndexStats, error)
}

// IndexStats describes the engine's index, passed through on /info.
type IndexStats struct {
	TotalItems   int      `json:"total_items"`
	EmbeddingDim int      `json:"embedding_dim"`
	Tables       []string `json:"tables"`
}
