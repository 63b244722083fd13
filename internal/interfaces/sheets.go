package interfaces

import (
	"context"

	"github.com/ternarybob/scriba/internal/models"
)

// SheetClient talks to the tabular data source web app. Every call is a
// simple request/response over HTTP; there is no batching transaction.
// Transport failures are retried with backoff inside the client.
type SheetClient interface {
	// GetRow fetches one row by its 1-based row number.
	GetRow(ctx context.Context, row int) (*models.SheetRow, error)

	// ListRows fetches rows from start to end inclusive. end <= 0 means
	// through the last populated row.
	ListRows(ctx context.Context, start, end int) ([]models.SheetRow, error)

	// UpdateCell writes a value into one cell.
	UpdateCell(ctx context.Context, row int, column, value string) error

	// HighlightCell colors one cell. Best-effort and fire-and-forget from
	// the caller's perspective: failures are logged, never returned.
	HighlightCell(row int, column, color string)

	// HighlightRange colors several cells in one row. Same best-effort
	// contract as HighlightCell.
	HighlightRange(row int, columns []string, color string)
}
