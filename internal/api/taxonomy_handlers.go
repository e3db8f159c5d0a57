package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerTaxonomyRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTaxonomy",
		Method:      http.MethodGet,
		Path:        "/api/v1/taxonomy",
		Summary:     "List taxonomy categories",
		Description: "Returns every resolvable category with its canonical path. Rule targets must name one of these.",
		Tags:        []string{"Taxonomy"},
	}, s.handleListTaxonomy)
}

// === DTOs ===

type CategoryResponse struct {
	Name string   `json:"name" doc:"Display name of the category"`
	Slug string   `json:"slug" doc:"Slug that resolves to this category"`
	Path []string `json:"path" doc:"Root-to-leaf canonical path"`
}

type TaxonomyResponse struct {
	Categories []CategoryResponse `json:"categories" doc:"Categories sorted by slug path"`
	Total      int                `json:"total" doc:"Number of categories"`
}

type TaxonomyOutput struct {
	Body TaxonomyResponse
}

// === Handlers ===

func (s *Server) handleListTaxonomy(_ context.Context, _ *struct{}) (*TaxonomyOutput, error) {
	entries := s.index.Entries()

	categories := make([]CategoryResponse, len(entries))
	for i, entry := range entries {
		categories[i] = CategoryResponse{
			Name: entry.Name,
			Slug: entry.Slug,
			Path: entry.Path,
		}
	}
	return &TaxonomyOutput{Body: TaxonomyResponse{
		Categories: categories,
		Total:      len(categories),
	}}, nil
}
