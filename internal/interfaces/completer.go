package interfaces

import (
	"context"

	"github.com/ternarybob/earnings/internal/models"
)

// CompletionRequest is an ordered list of content parts sent to an analysis model
type CompletionRequest struct {
	Parts []models.ContentPart
	Model string // Empty selects the provider default
}

// CompletionResponse carries generated text and which model produced it
type CompletionResponse struct {
	Text     string
	Provider string
	Model    string
}

// Completer is the single LLM client interface used by the pipeline.
// An accepted call that produces no text returns an EmptyResponse pipeline error;
// transport or auth failures return a Service pipeline error.
type Completer interface {
	Complete(ctx context.Context, request *CompletionRequest) (*CompletionResponse, error)
}
