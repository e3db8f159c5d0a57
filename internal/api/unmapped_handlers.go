package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-pipeline/internal/errors"
)

func (s *Server) registerUnmappedRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listUnmapped",
		Method:      http.MethodGet,
		Path:        "/api/v1/unmapped",
		Summary:     "List unmapped categories",
		Description: "Returns the unmapped category review queue, optionally filtered by shop. Entries reflect the snapshot persisted by the most recent run of each shop.",
		Tags:        []string{"Unmapped"},
	}, s.handleListUnmapped)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearUnmapped",
		Method:      http.MethodDelete,
		Path:        "/api/v1/unmapped/{shop}/{category}",
		Summary:     "Clear an unmapped entry",
		Description: "Removes one reviewed entry from the queue. Creating a rule for the category does this implicitly; this endpoint is for dismissals.",
		Tags:        []string{"Unmapped"},
	}, s.handleClearUnmapped)
}

// === DTOs ===

type UnmappedSampleResponse struct {
	ProductName string `json:"product_name" doc:"Example product recorded under this category"`
	Brand       string `json:"brand,omitempty" doc:"Brand of the example product"`
}

type MappingAttemptResponse struct {
	Path       []string `json:"path,omitempty" doc:"Closest taxonomy path any tier produced"`
	Slug       string   `json:"slug,omitempty" doc:"Slug form of the closest path"`
	Status     string   `json:"status" doc:"Tier that produced the attempt"`
	Confidence float64  `json:"confidence" doc:"Confidence of the rejected attempt"`
	Notes      string   `json:"notes,omitempty" doc:"Why the attempt was rejected"`
}

type UnmappedEntryResponse struct {
	Shop             string                   `json:"shop" doc:"Shop the category came from"`
	OriginalCategory string                   `json:"original_category" doc:"Category string exactly as exported"`
	Count            int                      `json:"count" doc:"How many records hit this category"`
	Samples          []UnmappedSampleResponse `json:"samples,omitempty" doc:"Example products, capped"`
	FirstSeen        time.Time                `json:"first_seen" doc:"When the category first appeared"`
	BestAttempt      *MappingAttemptResponse  `json:"best_attempt,omitempty" doc:"Best below-threshold match, review hint"`
}

type ListUnmappedInput struct {
	Shop string `query:"shop" doc:"Only entries for this shop"`
}

type ListUnmappedResponse struct {
	Entries []UnmappedEntryResponse `json:"entries" doc:"Review queue, busiest categories first"`
}

type ListUnmappedOutput struct {
	Body ListUnmappedResponse
}

type ClearUnmappedInput struct {
	Shop     string `path:"shop" doc:"Shop the entry belongs to"`
	Category string `path:"category" doc:"Original category string of the entry"`
}

type MessageResponse struct {
	Message string `json:"message" doc:"Human-readable result"`
}

type MessageOutput struct {
	Body MessageResponse
}

// === Handlers ===

func (s *Server) handleListUnmapped(ctx context.Context, input *ListUnmappedInput) (*ListUnmappedOutput, error) {
	entries, err := s.store.ListUnmapped(ctx, input.Shop)
	if err != nil {
		return nil, err
	}

	resp := make([]UnmappedEntryResponse, len(entries))
	for i := range entries {
		resp[i] = mapUnmappedEntry(&entries[i])
	}
	return &ListUnmappedOutput{Body: ListUnmappedResponse{Entries: resp}}, nil
}

func (s *Server) handleClearUnmapped(ctx context.Context, input *ClearUnmappedInput) (*MessageOutput, error) {
	// The live queue and the persisted snapshot drift between runs; clear
	// both so the entry does not resurface on the next flush.
	cleared := s.engine.ClearUnmappedEntry(input.Shop, input.Category)

	if err := s.store.DeleteUnmapped(ctx, input.Shop, input.Category); err != nil {
		if !isNotFound(err) {
			return nil, err
		}
		if !cleared {
			return nil, domainerrors.NotFoundf("no unmapped entry for shop %s and category %q", input.Shop, input.Category)
		}
	}

	return &MessageOutput{Body: MessageResponse{Message: "unmapped entry cleared"}}, nil
}

// === Mappers ===

func mapUnmappedEntry(entry *domain.UnmappedCategory) UnmappedEntryResponse {
	resp := UnmappedEntryResponse{
		Shop:             entry.Shop,
		OriginalCategory: entry.OriginalCategory,
		Count:            entry.Count,
		FirstSeen:        entry.FirstSeen,
	}
	for _, sample := range entry.Samples {
		resp.Samples = append(resp.Samples, UnmappedSampleResponse{
			ProductName: sample.ProductName,
			Brand:       sample.Brand,
		})
	}
	if entry.BestAttempt != nil {
		resp.BestAttempt = &MappingAttemptResponse{
			Path:       entry.BestAttempt.Path,
			Slug:       entry.BestAttempt.Slug,
			Status:     string(entry.BestAttempt.Status),
			Confidence: entry.BestAttempt.Confidence,
			Notes:      entry.BestAttempt.Notes,
		}
	}
	return resp
}
