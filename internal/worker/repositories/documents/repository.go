package documents

import (
	"context"

	"github.com/dmitrijs2005/absnotary/internal/worker/models"
)

// Repository persists documents. Get returns common.ErrNotFound when no
// document exists for the id. Update applies only the non-nil fields of the
// patch and returns the post-update record.
type Repository interface {
	Get(ctx context.Context, id string) (*models.Document, error)
	Create(ctx context.Context, doc *models.Document) (*models.Document, error)
	Update(ctx context.Context, id string, patch models.DocumentUpdate) (*models.Document, error)

	// BeginProcessing atomically moves a PENDING document to PROCESSING.
	// It reports false when the document was not PENDING, which lets
	// concurrent dispatches race safely: only one wins the transition.
	BeginProcessing(ctx context.Context, id string) (bool, error)
}
