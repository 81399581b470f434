package interfaces

import (
	"context"

	"github.com/ternarybob/earnings/internal/models"
)

// DocumentFetcher downloads a period's documents into local storage.
// It never fails outright: missing, forbidden or unreachable documents are
// logged and left out of the returned map.
type DocumentFetcher interface {
	Fetch(ctx context.Context, ticker, year, quarter string, period models.ReleasePeriod, irSite string) models.FetchedDocuments

	// FetchURL downloads one custom URL for ad-hoc analysis
	FetchURL(ctx context.Context, ticker, rawURL string, docType models.DocumentType) (*models.FetchedDocument, error)
}
