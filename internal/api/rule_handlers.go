package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-pipeline/internal/errors"
	"github.com/shelfwise/shelfwise-pipeline/internal/taxonomy"
)

func (s *Server) registerRuleRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createRule",
		Method:      http.MethodPost,
		Path:        "/api/v1/rules",
		Summary:     "Create a mapping rule",
		Description: "Adds a rule at the front of the shop's rule list. The target must name a taxonomy category; the rule maps to that category's full path. Matching unmapped entries are cleared.",
		Tags:        []string{"Rules"},
	}, s.handleCreateRule)

	huma.Register(s.api, huma.Operation{
		OperationID: "listRules",
		Method:      http.MethodGet,
		Path:        "/api/v1/rules/{shop}",
		Summary:     "List a shop's rules",
		Description: "Returns the shop's rules in priority order",
		Tags:        []string{"Rules"},
	}, s.handleListRules)
}

// === DTOs ===

type CreateRuleRequest struct {
	Shop        string  `json:"shop" minLength:"1" doc:"Shop the rule applies to"`
	Pattern     string  `json:"pattern" minLength:"1" doc:"Pattern to match against exported category strings"`
	PatternType string  `json:"pattern_type" enum:"exact,regex,synonym,fuzzy" doc:"Matching tier the rule participates in"`
	Target      string  `json:"target" minLength:"1" doc:"Taxonomy category name or slug the rule maps to"`
	Confidence  float64 `json:"confidence,omitempty" minimum:"0" maximum:"1" doc:"Recorded on the rule, defaults to 1.0"`
}

type CreateRuleInput struct {
	Body CreateRuleRequest
}

type RuleResponse struct {
	ID          string    `json:"id" doc:"Rule ID"`
	Shop        string    `json:"shop" doc:"Shop the rule applies to"`
	Pattern     string    `json:"pattern" doc:"Pattern matched against category strings"`
	PatternType string    `json:"pattern_type" doc:"Matching tier"`
	TargetPath  []string  `json:"target_path" doc:"Canonical taxonomy path the rule maps to"`
	TargetSlug  string    `json:"target_slug" doc:"Slug form of the target path"`
	Confidence  float64   `json:"confidence" doc:"Recorded confidence"`
	Provenance  string    `json:"provenance" doc:"system, admin, or learning"`
	CreatedAt   time.Time `json:"created_at" doc:"When the rule was created"`
	UsageCount  int       `json:"usage_count" doc:"Matches since creation"`
	Enabled     bool      `json:"enabled" doc:"Whether the rule participates in matching"`
}

type RuleOutput struct {
	Body RuleResponse
}

type ListRulesInput struct {
	Shop string `path:"shop" doc:"Shop whose rules to list"`
}

type ListRulesResponse struct {
	Rules []RuleResponse `json:"rules" doc:"Rules in priority order, front wins"`
}

type ListRulesOutput struct {
	Body ListRulesResponse
}

// === Handlers ===

func (s *Server) handleCreateRule(ctx context.Context, input *CreateRuleInput) (*RuleOutput, error) {
	target := strings.TrimSpace(input.Body.Target)
	path, ok := s.index.Lookup(target)
	if !ok {
		return nil, domainerrors.Validationf("unknown taxonomy category %q", target)
	}

	confidence := input.Body.Confidence
	if confidence == 0 {
		confidence = 1.0
	}

	rule, err := s.engine.AddMappingRule(domain.CategoryRule{
		Shop:        strings.TrimSpace(input.Body.Shop),
		Pattern:     strings.TrimSpace(input.Body.Pattern),
		PatternType: domain.PatternType(input.Body.PatternType),
		TargetPath:  path,
		Confidence:  confidence,
		Provenance:  domain.ProvenanceAdmin,
	})
	if err != nil {
		return nil, err
	}

	// A rule usually arrives because an operator just reviewed the matching
	// queue entry. Exact rules name the category outright; clear it.
	if rule.PatternType == domain.PatternExact {
		s.engine.ClearUnmappedEntry(rule.Shop, rule.Pattern)
		if err := s.store.DeleteUnmapped(ctx, rule.Shop, rule.Pattern); err != nil && !isNotFound(err) {
			s.logger.Warn("clearing resolved unmapped entry", "shop", rule.Shop, "category", rule.Pattern, "error", err)
		}
	}

	return &RuleOutput{Body: mapRuleResponse(&rule)}, nil
}

func (s *Server) handleListRules(_ context.Context, input *ListRulesInput) (*ListRulesOutput, error) {
	ruleSet := s.engine.Rules(input.Shop)

	resp := make([]RuleResponse, len(ruleSet))
	for i := range ruleSet {
		resp[i] = mapRuleResponse(&ruleSet[i])
	}
	return &ListRulesOutput{Body: ListRulesResponse{Rules: resp}}, nil
}

// === Mappers ===

func mapRuleResponse(rule *domain.CategoryRule) RuleResponse {
	return RuleResponse{
		ID:          rule.ID,
		Shop:        rule.Shop,
		Pattern:     rule.Pattern,
		PatternType: string(rule.PatternType),
		TargetPath:  rule.TargetPath,
		TargetSlug:  taxonomy.SlugifyPath(rule.TargetPath),
		Confidence:  rule.Confidence,
		Provenance:  string(rule.Provenance),
		CreatedAt:   rule.CreatedAt,
		UsageCount:  rule.UsageCount,
		Enabled:     rule.Enabled,
	}
}
