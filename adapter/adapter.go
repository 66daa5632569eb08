// Package adapter defines the Reporter boundary (§6): "an external
// `post(report_doc)` consumed by the orchestrator; its behavior is opaque."
//
// Adapters publish the batch report document to a downstream system. The
// orchestrator entry point owns adapter lifecycle; callers provide
// configuration only.
package adapter

import (
	"context"

	"github.com/lattice-iac/conductor/report"
)

// Adapter publishes a batch report document to a downstream system.
// Implementations must be safe for single-use per run.
type Adapter interface {
	// Publish sends the report document to the downstream system. Must
	// respect context cancellation and deadlines.
	Publish(ctx context.Context, doc *report.Document) error

	// Close releases adapter resources.
	Close() error
}
