// Package normalizer converts raw vendor export records into canonical
// products. The pipeline drives implementations batch by batch; shop-specific
// quirks live behind the Normalizer interface, the pipeline never sees them.
package normalizer

import (
	"context"
	"iter"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
)

// RawRecord is one vendor-specific product record as parsed from an input
// file. Shape varies per shop; normalizers pick out what they recognize.
type RawRecord map[string]any

// Config tunes one normalization pass.
type Config struct {
	// EnableValidation runs schema validation on every canonical product.
	EnableValidation bool

	// StrictMapping turns a non-confident category mapping into a record
	// error instead of letting the product through with a fallback category.
	StrictMapping bool

	// Verbose enables per-record debug logging.
	Verbose bool

	// SourceFile is stamped onto every product and error for traceability.
	SourceFile string

	// LineOffset shifts result line numbers when the caller feeds a batch
	// sliced out of a larger file.
	LineOffset int
}

// Result is the outcome of normalizing one raw record: either a product or
// a list of errors with the offending record attached for the rejects
// report.
type Result struct {
	Product *domain.CanonicalProduct `json:"product,omitempty"`
	Errors  []string                 `json:"errors,omitempty"`
	Raw     RawRecord                `json:"raw,omitempty"`
	Line    int                      `json:"line,omitempty"` // 1-based record position in the source file
}

// Success reports whether the record normalized cleanly.
func (r Result) Success() bool {
	return r.Product != nil
}

// Normalizer turns a batch of raw vendor records into a lazy sequence of
// per-record results. Implementations must keep going past individual bad
// records; only context cancellation stops the sequence early.
type Normalizer interface {
	// Name identifies the implementation in logs and audit trails.
	Name() string

	// Version is stamped into each product's audit block.
	Version() string

	Normalize(ctx context.Context, records []RawRecord, cfg Config) iter.Seq[Result]
}
