// Package mapping implements the multi-tier category classification engine:
// exact rules, regex rules, synonym lookup, then fuzzy similarity, with a
// broad keyword fallback and an unmapped-review queue feeding the learning
// loop.
package mapping

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-pipeline/internal/errors"
	"github.com/shelfwise/shelfwise-pipeline/internal/id"
	"github.com/shelfwise/shelfwise-pipeline/internal/rules"
	"github.com/shelfwise/shelfwise-pipeline/internal/taxonomy"
)

// blobPenalty scales fuzzy scores computed against the product name/brand
// blob. The blob is an indirect signal, a category string that resembles a
// product name should not beat one that resembles the category itself.
const blobPenalty = 0.8

// resolvedSynonym is a synonym entry whose canonical term resolved to a
// taxonomy path at load time.
type resolvedSynonym struct {
	canonical  string
	path       []string
	terms      []string // normalized, parallel to raw
	raw        []string
	confidence float64
}

type resolvedKeyword struct {
	keyword string
	path    []string
}

// fuzzyText is one index text prepared for similarity scans.
type fuzzyText struct {
	raw  string
	norm string
}

// fuzzyCandidate is the best scoring index text for one input pair. A zero
// Text means the scan found nothing; memoized either way.
type fuzzyCandidate struct {
	Text  string
	Score float64
}

// Engine classifies raw vendor category strings into taxonomy paths.
//
// Construction is two-phase: Load must complete before any matching call is
// legal, there is no lazy re-initialization. One engine serves every shop of
// a process; rules, usage counters, and the unmapped queue are guarded by a
// single mutex so admin calls can interleave with a running pipeline.
type Engine struct {
	cfg    Config
	index  *taxonomy.Index
	store  *rules.Store
	logger *slog.Logger

	// Read-only after Load.
	synonyms []resolvedSynonym
	keywords []resolvedKeyword
	texts    []fuzzyText

	mu        sync.Mutex
	shopRules map[string][]domain.CategoryRule
	regexps   map[string]*regexp.Regexp
	dirty     map[string]bool // shops with unpersisted usage counts
	unmapped  map[string]*domain.UnmappedCategory

	memo *lru.Cache[string, fuzzyCandidate]
}

// Load builds an engine from configuration, a category index, and a rule
// store. Every shop's rule set is loaded and its regex patterns compiled up
// front; synonym and keyword tables are resolved against the index, entries
// that do not resolve are skipped with a warning.
func Load(cfg Config, index *taxonomy.Index, store *rules.Store, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if index == nil {
		return nil, domainerrors.Validation("category index is required")
	}
	if store == nil {
		return nil, domainerrors.Validation("rule store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg:       cfg,
		index:     index,
		store:     store,
		logger:    logger,
		shopRules: make(map[string][]domain.CategoryRule),
		regexps:   make(map[string]*regexp.Regexp),
		dirty:     make(map[string]bool),
		unmapped:  make(map[string]*domain.UnmappedCategory),
	}

	memoSize := cfg.FuzzyMemoSize
	if memoSize <= 0 {
		memoSize = DefaultConfig().FuzzyMemoSize
	}
	memo, err := lru.New[string, fuzzyCandidate](memoSize)
	if err != nil {
		return nil, fmt.Errorf("creating fuzzy memo: %w", err)
	}
	e.memo = memo

	if err := e.loadSynonyms(); err != nil {
		return nil, err
	}
	e.resolveKeywords()
	e.prepareTexts()

	shops, err := store.Shops()
	if err != nil {
		return nil, fmt.Errorf("listing rule sets: %w", err)
	}
	for _, shop := range shops {
		ruleSet, err := store.Load(shop)
		if err != nil {
			return nil, fmt.Errorf("loading rules for %s: %w", shop, err)
		}
		e.shopRules[shop] = ruleSet
		e.compileRegexps(shop, ruleSet)
	}

	logger.Info("mapping engine loaded",
		"shops", len(shops),
		"categories", index.Size(),
		"synonyms", len(e.synonyms),
		"keywords", len(e.keywords),
	)

	return e, nil
}

func (e *Engine) loadSynonyms() error {
	entries, err := LoadSynonyms(e.cfg.SynonymsPath)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		path, ok := e.index.Lookup(entry.Canonical)
		if !ok {
			e.logger.Warn("synonym canonical not in taxonomy, skipping", "canonical", entry.Canonical)
			continue
		}
		rs := resolvedSynonym{
			canonical:  entry.Canonical,
			path:       path,
			confidence: entry.Confidence,
		}
		if rs.confidence == 0 {
			rs.confidence = e.cfg.SynonymConfidence
		}
		for _, term := range entry.Terms {
			norm := normalizeText(term)
			if norm == "" {
				continue
			}
			rs.terms = append(rs.terms, norm)
			rs.raw = append(rs.raw, term)
		}
		if len(rs.terms) == 0 {
			continue
		}
		e.synonyms = append(e.synonyms, rs)
	}

	return nil
}

func (e *Engine) resolveKeywords() {
	for _, kf := range keywordFallbacks {
		path, ok := e.index.LookupName(kf.Category)
		if !ok {
			e.logger.Warn("keyword fallback category not in taxonomy, skipping",
				"keyword", kf.Keyword,
				"category", kf.Category,
			)
			continue
		}
		e.keywords = append(e.keywords, resolvedKeyword{keyword: kf.Keyword, path: path})
	}
}

func (e *Engine) prepareTexts() {
	all := e.index.AllTexts()
	e.texts = make([]fuzzyText, 0, len(all))
	for _, t := range all {
		norm := normalizeText(t)
		if norm == "" {
			continue
		}
		e.texts = append(e.texts, fuzzyText{raw: t, norm: norm})
	}
}

// compileRegexps compiles regex rules case-insensitively. A pattern that
// fails to compile is skipped with a warning; it must never abort a run.
func (e *Engine) compileRegexps(shop string, ruleSet []domain.CategoryRule) {
	for _, r := range ruleSet {
		if r.PatternType != domain.PatternRegex {
			continue
		}
		if _, ok := e.regexps[r.ID]; ok {
			continue
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			e.logger.Warn("invalid regex rule, skipping",
				"shop", shop,
				"rule_id", r.ID,
				"pattern", r.Pattern,
				"error", err,
			)
			continue
		}
		e.regexps[r.ID] = re
	}
}

// MapCategory resolves one raw category string to a taxonomy path. Tiers run
// in order of decreasing trust and the first one to clear its threshold
// wins. When none does, the context is parked on the unmapped queue and the
// result falls back to a broad keyword guess, then to the literal Other
// category.
func (e *Engine) MapCategory(mc domain.MappingContext) domain.CategoryMappingResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	category := normalizeText(mc.OriginalCategory)
	blob := combinedText(mc)
	ruleSet := e.shopRules[mc.Shop]

	if res, ok := e.matchExact(mc.Shop, ruleSet, category); ok {
		return res
	}
	if res, ok := e.matchRegex(mc.Shop, ruleSet, mc.OriginalCategory); ok {
		return res
	}
	if res, ok := e.matchSynonym(category, blob); ok {
		return res
	}

	var attempt *domain.CategoryMappingResult
	if cand, found := e.bestFuzzy(category, blob); found {
		if path, ok := e.index.Lookup(cand.Text); ok {
			res := domain.CategoryMappingResult{
				Path:       path,
				Slug:       taxonomy.SlugifyPath(path),
				Status:     domain.MappingStatusFuzzyMatch,
				Confidence: cand.Score,
				Notes:      fmt.Sprintf("fuzzy match: %q ~ %q (%.0f%%)", mc.OriginalCategory, cand.Text, cand.Score*100),
			}
			if e.accepts(cand.Score, e.cfg.FuzzyThreshold) {
				return res
			}
			attempt = &res
		}
	}

	e.recordUnmapped(mc, attempt)

	if res, ok := e.keywordFallback(blob); ok {
		return res
	}

	return otherResult()
}

func (e *Engine) matchExact(shop string, ruleSet []domain.CategoryRule, category string) (domain.CategoryMappingResult, bool) {
	if category == "" || !e.accepts(e.cfg.ExactConfidence, e.cfg.ExactThreshold) {
		return domain.CategoryMappingResult{}, false
	}

	for i := range ruleSet {
		r := &ruleSet[i]
		if !r.Enabled || r.PatternType != domain.PatternExact {
			continue
		}
		if normalizeText(r.Pattern) != category {
			continue
		}

		e.touchRule(shop, r)
		return domain.CategoryMappingResult{
			Path:       clonePath(r.TargetPath),
			Slug:       taxonomy.SlugifyPath(r.TargetPath),
			Status:     ruleStatus(r),
			Confidence: e.cfg.ExactConfidence,
			RuleID:     r.ID,
			Notes:      "exact rule match: " + r.Pattern,
		}, true
	}

	return domain.CategoryMappingResult{}, false
}

func (e *Engine) matchRegex(shop string, ruleSet []domain.CategoryRule, raw string) (domain.CategoryMappingResult, bool) {
	if raw == "" || !e.accepts(e.cfg.RegexConfidence, e.cfg.RegexThreshold) {
		return domain.CategoryMappingResult{}, false
	}

	for i := range ruleSet {
		r := &ruleSet[i]
		if !r.Enabled || r.PatternType != domain.PatternRegex {
			continue
		}
		re, ok := e.regexps[r.ID]
		if !ok {
			// Failed to compile at load.
			continue
		}
		if !re.MatchString(raw) {
			continue
		}

		e.touchRule(shop, r)
		return domain.CategoryMappingResult{
			Path:       clonePath(r.TargetPath),
			Slug:       taxonomy.SlugifyPath(r.TargetPath),
			Status:     ruleStatus(r),
			Confidence: e.cfg.RegexConfidence,
			RuleID:     r.ID,
			Notes:      "regex rule match: " + r.Pattern,
		}, true
	}

	return domain.CategoryMappingResult{}, false
}

// matchSynonym scans the synonym table against the raw category and the
// combined blob. Among all hits the highest confidence wins; ties keep the
// first entry encountered.
func (e *Engine) matchSynonym(category, blob string) (domain.CategoryMappingResult, bool) {
	var best *resolvedSynonym
	var bestTerm string
	var bestConf float64

	for i := range e.synonyms {
		syn := &e.synonyms[i]
		for ti, term := range syn.terms {
			if !strings.Contains(category, term) && !strings.Contains(blob, term) {
				continue
			}
			if best == nil || syn.confidence > bestConf {
				best = syn
				bestTerm = syn.raw[ti]
				bestConf = syn.confidence
			}
			break
		}
	}

	if best == nil || !e.accepts(bestConf, e.cfg.SynonymThreshold) {
		return domain.CategoryMappingResult{}, false
	}

	return domain.CategoryMappingResult{
		Path:       clonePath(best.path),
		Slug:       taxonomy.SlugifyPath(best.path),
		Status:     domain.MappingStatusOK,
		Confidence: bestConf,
		Notes:      fmt.Sprintf("synonym %q -> %s", bestTerm, best.canonical),
	}, true
}

// bestFuzzy finds the highest scoring index text for the given inputs.
// Scores against the product blob carry the blobPenalty. Results are
// memoized, vendor files repeat the same category for hundreds of rows.
func (e *Engine) bestFuzzy(category, blob string) (fuzzyCandidate, bool) {
	if category == "" && blob == "" {
		return fuzzyCandidate{}, false
	}

	key := category + "\x00" + blob
	if hit, ok := e.memo.Get(key); ok {
		return hit, hit.Text != ""
	}

	var best fuzzyCandidate
	for _, t := range e.texts {
		if category != "" {
			if s := stringSimilarity(category, t.norm); s > best.Score {
				best = fuzzyCandidate{Text: t.raw, Score: s}
			}
		}
		if blob != "" && blob != category {
			if s := stringSimilarity(blob, t.norm) * blobPenalty; s > best.Score {
				best = fuzzyCandidate{Text: t.raw, Score: s}
			}
		}
	}

	e.memo.Add(key, best)
	return best, best.Text != ""
}

func (e *Engine) keywordFallback(blob string) (domain.CategoryMappingResult, bool) {
	if blob == "" {
		return domain.CategoryMappingResult{}, false
	}

	for _, kw := range e.keywords {
		if !strings.Contains(blob, kw.keyword) {
			continue
		}
		return domain.CategoryMappingResult{
			Path:       clonePath(kw.path),
			Slug:       taxonomy.SlugifyPath(kw.path),
			Status:     domain.MappingStatusFallbackParent,
			Confidence: keywordFallbackConfidence,
			Notes:      fmt.Sprintf("keyword fallback: %q", kw.keyword),
		}, true
	}

	return domain.CategoryMappingResult{}, false
}

// otherResult is the terminal fallback: the literal Other category.
func otherResult() domain.CategoryMappingResult {
	path := []string{"Other"}
	return domain.CategoryMappingResult{
		Path:       path,
		Slug:       taxonomy.SlugifyPath(path),
		Status:     domain.MappingStatusUnmapped,
		Confidence: 0,
		Notes:      "no tier produced a match",
	}
}

// accepts reports whether a result clears both the tier threshold and the
// global confidence floor.
func (e *Engine) accepts(confidence, threshold float64) bool {
	return confidence >= threshold && confidence >= e.cfg.MinConfidence
}

// touchRule bumps a rule's usage counter. Counters persist lazily, via
// FlushUsage, not on every match. Caller holds e.mu.
func (e *Engine) touchRule(shop string, r *domain.CategoryRule) {
	r.UsageCount++
	e.dirty[shop] = true
}

// ruleStatus maps rule provenance to the product-facing status: rules an
// admin created by hand surface as manual overrides.
func ruleStatus(r *domain.CategoryRule) domain.MappingStatus {
	if r.Provenance == domain.ProvenanceAdmin {
		return domain.MappingStatusManualOverride
	}
	return domain.MappingStatusOK
}

// AddMappingRule records a learned or admin-created rule at the front of the
// shop's rule list, so it outranks older generic rules, and persists the
// shop's full rule set. Missing id, provenance, and timestamp are filled in;
// the usage counter starts at zero and the rule is active immediately.
func (e *Engine) AddMappingRule(rule domain.CategoryRule) (domain.CategoryRule, error) {
	if rule.Shop == "" {
		return domain.CategoryRule{}, domainerrors.Validation("rule shop is required")
	}
	if strings.TrimSpace(rule.Pattern) == "" {
		return domain.CategoryRule{}, domainerrors.Validation("rule pattern is required")
	}
	if len(rule.TargetPath) == 0 {
		return domain.CategoryRule{}, domainerrors.Validation("rule target path is required")
	}
	switch rule.PatternType {
	case domain.PatternExact, domain.PatternRegex, domain.PatternSynonym, domain.PatternFuzzy:
	default:
		return domain.CategoryRule{}, domainerrors.Validationf("unknown pattern type %q", rule.PatternType)
	}

	var re *regexp.Regexp
	if rule.PatternType == domain.PatternRegex {
		var err error
		re, err = regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			return domain.CategoryRule{}, domainerrors.Wrapf(err, domainerrors.CodeValidation, "invalid regex pattern %q", rule.Pattern)
		}
	}

	if rule.ID == "" {
		ruleID, err := id.Generate("rule")
		if err != nil {
			return domain.CategoryRule{}, err
		}
		rule.ID = ruleID
	}
	if rule.Provenance == "" {
		rule.Provenance = domain.ProvenanceLearning
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	rule.UsageCount = 0
	rule.Enabled = true

	e.mu.Lock()
	defer e.mu.Unlock()

	ruleSet := append([]domain.CategoryRule{rule}, e.shopRules[rule.Shop]...)
	if err := e.store.Save(rule.Shop, ruleSet); err != nil {
		return domain.CategoryRule{}, fmt.Errorf("persisting rules for %s: %w", rule.Shop, err)
	}
	e.shopRules[rule.Shop] = ruleSet
	if re != nil {
		e.regexps[rule.ID] = re
	}
	// The save above carried any pending usage counts along.
	delete(e.dirty, rule.Shop)

	e.logger.Info("mapping rule added",
		"shop", rule.Shop,
		"rule_id", rule.ID,
		"pattern", rule.Pattern,
		"type", rule.PatternType,
		"target", taxonomy.SlugifyPath(rule.TargetPath),
		"provenance", rule.Provenance,
	)

	return rule, nil
}

// Rules returns a copy of the shop's current rule list in priority order.
func (e *Engine) Rules(shop string) []domain.CategoryRule {
	e.mu.Lock()
	defer e.mu.Unlock()

	ruleSet := e.shopRules[shop]
	out := make([]domain.CategoryRule, len(ruleSet))
	copy(out, ruleSet)
	for i := range out {
		out[i].TargetPath = clonePath(out[i].TargetPath)
	}
	return out
}

// FlushUsage persists rule sets whose usage counters changed since the last
// save. The pipeline calls this at run finalization rather than after every
// match.
func (e *Engine) FlushUsage() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for shop := range e.dirty {
		if err := e.store.Save(shop, e.shopRules[shop]); err != nil {
			errs = append(errs, fmt.Errorf("persisting usage counts for %s: %w", shop, err))
			continue
		}
		delete(e.dirty, shop)
	}
	return domainerrors.Join(errs...)
}

// combinedText folds category, name, brand, and hints into one lower-cased
// blob for the synonym, fuzzy, and keyword passes.
func combinedText(mc domain.MappingContext) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{mc.OriginalCategory, mc.ProductName, mc.Brand, mc.Hints} {
		if norm := normalizeText(p); norm != "" {
			parts = append(parts, norm)
		}
	}
	return strings.Join(parts, " ")
}

func clonePath(path []string) []string {
	out := make([]string, len(path))
	copy(out, path)
	return out
}
