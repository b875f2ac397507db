package ai

import (
	"context"

	"resumelift/internal/types"
)

// AIProvider interface for different AI implementations
// All methods return token usage information - callers can ignore it if not needed
type AIProvider interface {
	ParseResume(ctx context.Context, input types.ParseResumeInput) (types.ParsedResume, *TokenUsage, error)
	ScoreResume(ctx context.Context, input types.ScoreResumeInput) (types.ScoreResult, *TokenUsage, error)
	RewriteResume(ctx context.Context, input types.RewriteResumeInput) (types.RewriteResumeOutput, *TokenUsage, error)
	GetModelInfo(ctx context.Context) *ModelInfo
	Close() error
}
