package ai

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/http"
	"strings"
	"time"

	"resumelift/internal/config"
	liftErrors "resumelift/internal/errors"
	"resumelift/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// GeminiProvider implements AIProvider for Google Gemini
type GeminiProvider struct {
	client         *genai.Client
	httpClient     *http.Client
	config         *config.OperationAIConfig
	circuitBreaker *AICircuitBreaker
	modelBreaker   *ModelCircuitBreaker
	logger         *liftErrors.Logger
}

// Ensure GeminiProvider implements AIProvider
var _ AIProvider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a new Gemini provider instance for a specific operation
func NewGeminiProvider(cfg *config.OperationAIConfig, operationType string, logger *liftErrors.Logger) (*GeminiProvider, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, liftErrors.NewAIError(liftErrors.ErrCodeAIServiceFailed,
			"Failed to create Gemini client", err)
	}

	// Initialize circuit breaker with operation-specific configuration
	circuitBreaker := NewAICircuitBreaker(operationType, cfg, logger)
	modelBreaker := NewModelCircuitBreaker(operationType, cfg, logger)

	return &GeminiProvider{
		client: client,
		httpClient: &http.Client{
			Timeout: *cfg.Timeout,
		},
		config:         cfg,
		circuitBreaker: circuitBreaker,
		modelBreaker:   modelBreaker,
		logger:         logger,
	}, nil
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

// GetModelInfo checks the readiness and availability of the configured model
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	modelInfo := &ModelInfo{
		Name:      g.config.Model,
		Available: false,
	}

	// Create a timeout context for the model check
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Get model information from Gemini API with circuit breaker
	model, err := g.modelBreaker.ExecuteModel(func() (*genai.Model, error) {
		return g.client.Models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: %v", err)

		g.logger.Warn("Model availability check failed",
			"model", g.config.Model,
			"provider", g.config.Provider,
			"error", err.Error())
		return modelInfo
	}

	// Model is available, populate info
	modelInfo.Available = true
	if model.DisplayName != "" {
		modelInfo.DisplayName = model.DisplayName
	}
	if model.Version != "" {
		modelInfo.Version = model.Version
	}

	g.logger.Debug("Model availability check successful",
		"model", g.config.Model,
		"provider", g.config.Provider,
		"display_name", modelInfo.DisplayName,
		"version", modelInfo.Version)

	return modelInfo
}

// decodeDataURI splits a base64 data URI into its MIME type and raw bytes.
// Resume uploads travel through the workflow as data URIs, so this is the
// boundary where they become binary document parts for the model.
func decodeDataURI(dataURI string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURI, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URI")
	}

	mimeType, payload, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return "", nil, fmt.Errorf("data URI is not base64 encoded")
	}
	if mimeType == "" {
		return "", nil, fmt.Errorf("data URI has no MIME type")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 payload: %w", err)
	}

	return mimeType, data, nil
}

// buildResumeContents builds the request contents: the user prompt followed by
// the resume document as an inline binary part.
func buildResumeContents(userPrompt, resumeDataURI string) ([]*genai.Content, error) {
	mimeType, data, err := decodeDataURI(resumeDataURI)
	if err != nil {
		return nil, liftErrors.NewValidationError(liftErrors.ErrCodeInvalidFormat,
			"Resume data URI is malformed", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromText(userPrompt),
		genai.NewPartFromBytes(data, mimeType),
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil
}

// executeWithRetry executes an AI operation with retry logic and exponential backoff
func (g *GeminiProvider) executeWithRetry(ctx context.Context, operation string, fn func() (*genai.GenerateContentResponse, error)) (*genai.GenerateContentResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= *g.config.MaxRetries; attempt++ {
		if attempt > 0 {
			// Log retry attempt
			g.logger.Warn("Retrying AI operation",
				"operation", operation,
				"attempt", attempt,
				"max_retries", *g.config.MaxRetries,
				"error", lastErr.Error())

			// Exponential backoff with jitter to prevent thundering herd
			baseDelay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			// Use crypto/rand for secure random jitter
			jitterMax := big.NewInt(int64(float64(baseDelay) * 0.1))
			jitterBig, _ := rand.Int(rand.Reader, jitterMax)
			jitter := time.Duration(jitterBig.Int64())
			// Cap maximum backoff at 30 seconds
			backoff := min(baseDelay+jitter, 30*time.Second)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				g.logger.Info("AI operation succeeded after retry",
					"operation", operation,
					"successful_attempt", attempt+1,
					"total_attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err

		// Don't retry on certain errors (auth, invalid input, etc.)
		if !g.isRetryableError(err) {
			g.logger.Debug("Error is not retryable, stopping retry attempts",
				"operation", operation,
				"error", err.Error())
			break
		}
	}

	// Log final failure
	g.logger.LogError(lastErr, "AI operation failed after all retry attempts",
		"operation", operation,
		"total_attempts", *g.config.MaxRetries+1)

	return nil, fmt.Errorf("operation '%s' failed after %d retries: %w", operation, *g.config.MaxRetries, lastErr)
}

// isRetryableError determines if an error should trigger a retry
func (g *GeminiProvider) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Check for network errors (timeouts, connection issues)
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true // Retry on timeouts
		}
		// Consider other network errors retryable (e.g., connection refused)
		return true
	}

	// Check for Google API errors (HTTP status codes)
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	return false
}

// executeAIOperation is a generic helper to run AI operations with common tracing, circuit breaker, and parsing logic.
func executeAIOperation[Out any](
	g *GeminiProvider,
	ctx context.Context,
	operationName string,
	contents []*genai.Content,
	systemPrompt string,
	genaiConfig *genai.GenerateContentConfig,
	spanAttributes ...attribute.KeyValue,
) (Out, *TokenUsage, error) {
	var output Out
	tracer := otel.Tracer("resumelift.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini."+operationName)
	defer span.End()

	// Set base attributes
	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
		attribute.Float64("ai.temperature", float64(*g.config.Temperature)),
	)
	span.SetAttributes(spanAttributes...)

	if *g.config.UseSystemPrompts && systemPrompt != "" {
		genaiConfig.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	result, err := g.circuitBreaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return g.executeWithRetry(ctx, operationName, func() (*genai.GenerateContentResponse, error) {
			return g.client.Models.GenerateContent(ctx, g.config.Model, contents, genaiConfig)
		})
	})

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return output, nil, liftErrors.NewAIError(liftErrors.ErrCodeAIServiceFailed, "Failed to generate content for "+operationName, err)
	}

	if err := json.Unmarshal([]byte(result.Text()), &output); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return output, nil, liftErrors.NewAIError("AI_RESPONSE_PARSE_FAILED", "Failed to parse AI response for "+operationName, err)
	}

	tokenUsage := extractTokenUsage(result)
	if tokenUsage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", tokenUsage.InputTokens),
			attribute.Int64("ai.tokens.output", tokenUsage.OutputTokens),
			attribute.Int64("ai.tokens.total", tokenUsage.TotalTokens),
		)
	}

	span.SetAttributes(attribute.Bool("success", true))
	return output, tokenUsage, nil
}

// ParseResume implements AIProvider interface for structured resume extraction
func (g *GeminiProvider) ParseResume(ctx context.Context, input types.ParseResumeInput) (types.ParsedResume, *TokenUsage, error) {
	systemPrompt := g.getSystemPrompt("parse")
	userPrompt := g.getUserPrompt("parse")
	genaiConfig := g.buildParseSchema()

	contents, err := buildResumeContents(userPrompt, input.ResumeDataURI)
	if err != nil {
		return types.ParsedResume{}, nil, err
	}

	output, tokenUsage, err := executeAIOperation[types.ParsedResume](
		g,
		ctx,
		"parse_resume",
		contents,
		systemPrompt,
		genaiConfig,
		attribute.Int("input.resume_length", len(input.ResumeDataURI)),
	)

	if err != nil {
		return types.ParsedResume{}, nil, err
	}

	// Add operation-specific success metrics to the span created by the helper
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.Int("output.skills_count", len(output.Skills)),
			attribute.Int("output.experience_count", len(output.Experience)),
			attribute.Int("output.education_count", len(output.Education)),
		)
	}

	return output, tokenUsage, nil
}

// ScoreResume implements AIProvider interface for resume scoring
func (g *GeminiProvider) ScoreResume(ctx context.Context, input types.ScoreResumeInput) (types.ScoreResult, *TokenUsage, error) {
	systemPrompt := g.getSystemPrompt("score")
	userPrompt := g.getUserPrompt("score")
	genaiConfig := g.buildScoreSchema()

	contents, err := buildResumeContents(userPrompt, input.ResumeDataURI)
	if err != nil {
		return types.ScoreResult{}, nil, err
	}

	output, tokenUsage, err := executeAIOperation[types.ScoreResult](
		g,
		ctx,
		"score_resume",
		contents,
		systemPrompt,
		genaiConfig,
		attribute.Int("input.resume_length", len(input.ResumeDataURI)),
	)

	if err != nil {
		return types.ScoreResult{}, nil, err
	}

	// Add operation-specific success metrics to the span created by the helper
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.Int("score.overall", output.OverallScore),
			attribute.Int("score.ats_compatibility", output.ATSCompatibility),
		)
	}

	return output, tokenUsage, nil
}

// RewriteResume implements AIProvider interface for interview-informed rewriting
func (g *GeminiProvider) RewriteResume(ctx context.Context, input types.RewriteResumeInput) (types.RewriteResumeOutput, *TokenUsage, error) {
	systemPrompt := g.getSystemPrompt("rewrite")
	userPrompt := fmt.Sprintf(g.getUserPrompt("rewrite"), input.InterviewSummary)
	genaiConfig := g.buildRewriteSchema()

	contents, err := buildResumeContents(userPrompt, input.ResumeDataURI)
	if err != nil {
		return types.RewriteResumeOutput{}, nil, err
	}

	output, tokenUsage, err := executeAIOperation[types.RewriteResumeOutput](
		g,
		ctx,
		"rewrite_resume",
		contents,
		systemPrompt,
		genaiConfig,
		attribute.Int("input.resume_length", len(input.ResumeDataURI)),
		attribute.Int("input.summary_length", len(input.InterviewSummary)),
	)

	if err != nil {
		return types.RewriteResumeOutput{}, nil, err
	}

	// Add operation-specific success metrics to the span created by the helper
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.Int("output.rewritten_length", len(output.RewrittenResume)),
		)
	}

	return output, tokenUsage, nil
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (g *GeminiProvider) GetCircuitBreakerStats() map[string]any {
	stats := map[string]any{
		"ai_operations":    g.circuitBreaker.GetStats(),
		"model_operations": g.modelBreaker.GetModelStats(),
	}

	// Overall health - both breakers must be healthy
	aiHealthy := g.circuitBreaker.IsHealthy()
	modelHealthy := g.modelBreaker.IsModelHealthy()
	stats["overall_healthy"] = aiHealthy && modelHealthy

	return stats
}

// Close implements AIProvider interface
func (g *GeminiProvider) Close() error {
	// Gemini client doesn't have a Close method in current single-shot usage
	return nil
}

// buildParseSchema creates the schema for parse requests
func (g *GeminiProvider) buildParseSchema() *genai.GenerateContentConfig {
	genaiConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"skills": {
					Type:  genai.TypeArray,
					Items: &genai.Schema{Type: genai.TypeString},
				},
				"experience": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"title":       {Type: genai.TypeString},
							"company":     {Type: genai.TypeString},
							"dates":       {Type: genai.TypeString},
							"description": {Type: genai.TypeString},
						},
						Required: []string{"title", "company", "dates", "description"},
					},
				},
				"education": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"institution": {Type: genai.TypeString},
							"degree":      {Type: genai.TypeString},
							"dates":       {Type: genai.TypeString},
						},
						Required: []string{"institution", "degree", "dates"},
					},
				},
			},
			Required: []string{"skills", "experience", "education"},
		},
	}

	// Apply temperature configuration if set
	if *g.config.Temperature > 0 {
		genaiConfig.Temperature = g.config.Temperature
	}

	return genaiConfig
}

// buildScoreSchema creates the schema for score requests
func (g *GeminiProvider) buildScoreSchema() *genai.GenerateContentConfig {
	genaiConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"overallScore": {Type: genai.TypeInteger},
				"categoryScores": {
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"content":      {Type: genai.TypeInteger},
						"formatting":   {Type: genai.TypeInteger},
						"keywords":     {Type: genai.TypeInteger},
						"experience":   {Type: genai.TypeInteger},
						"skills":       {Type: genai.TypeInteger},
						"education":    {Type: genai.TypeInteger},
						"achievements": {Type: genai.TypeInteger},
					},
					Required: []string{"content", "formatting", "keywords", "experience", "skills", "education", "achievements"},
				},
				"strengths": {
					Type:  genai.TypeArray,
					Items: &genai.Schema{Type: genai.TypeString},
				},
				"improvements": {
					Type:  genai.TypeArray,
					Items: &genai.Schema{Type: genai.TypeString},
				},
				"atsCompatibility": {Type: genai.TypeInteger},
				"recommendations": {
					Type:  genai.TypeArray,
					Items: &genai.Schema{Type: genai.TypeString},
				},
				"industryAlignment": {Type: genai.TypeString},
			},
			Required: []string{"overallScore", "categoryScores", "strengths", "improvements", "atsCompatibility", "recommendations", "industryAlignment"},
		},
	}

	// Apply temperature configuration if set
	if *g.config.Temperature > 0 {
		genaiConfig.Temperature = g.config.Temperature
	}

	return genaiConfig
}

// buildRewriteSchema creates the schema for rewrite requests
func (g *GeminiProvider) buildRewriteSchema() *genai.GenerateContentConfig {
	genaiConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"rewrittenResume": {Type: genai.TypeString},
			},
			Required: []string{"rewrittenResume"},
		},
	}

	// Apply temperature configuration if set
	if *g.config.Temperature > 0 {
		genaiConfig.Temperature = g.config.Temperature
	}

	return genaiConfig
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// extractTokenUsage extracts token usage information from Gemini API response
func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}

// getSystemPrompt returns the appropriate system prompt
func (g *GeminiProvider) getSystemPrompt(promptType string) string {
	loadedPrompts := config.GetPromptsForOperation(promptType)
	configSystemPrompts := &g.config.CustomPrompts.SystemPrompts

	switch promptType {
	case "parse":
		return resolvePrompt(
			loadedPrompts.SystemPrompts.ParseResume,
			configSystemPrompts.ParseResume,
			DefaultSystemPrompts.ParseResume,
		)
	case "score":
		return resolvePrompt(
			loadedPrompts.SystemPrompts.ScoreResume,
			configSystemPrompts.ScoreResume,
			DefaultSystemPrompts.ScoreResume,
		)
	case "rewrite":
		return resolvePrompt(
			loadedPrompts.SystemPrompts.RewriteResume,
			configSystemPrompts.RewriteResume,
			DefaultSystemPrompts.RewriteResume,
		)
	default:
		return ""
	}
}

// getUserPrompt returns the appropriate user prompt template
func (g *GeminiProvider) getUserPrompt(promptType string) string {
	loadedPrompts := config.GetPromptsForOperation(promptType)
	configUserPrompts := &g.config.CustomPrompts.UserPrompts

	switch promptType {
	case "parse":
		return resolvePrompt(
			loadedPrompts.UserPrompts.ParseResume,
			configUserPrompts.ParseResume,
			DefaultUserPrompts.ParseResume,
		)
	case "score":
		return resolvePrompt(
			loadedPrompts.UserPrompts.ScoreResume,
			configUserPrompts.ScoreResume,
			DefaultUserPrompts.ScoreResume,
		)
	case "rewrite":
		return resolvePrompt(
			loadedPrompts.UserPrompts.RewriteResume,
			configUserPrompts.RewriteResume,
			DefaultUserPrompts.RewriteResume,
		)
	default:
		return ""
	}
}

// resolvePrompt selects the correct prompt string based on a clear priority order:
// 1. A prompt loaded from a file.
// 2. A prompt defined directly in the configuration.
// 3. A hardcoded default prompt.
func resolvePrompt(loadedFromFile, fromConfig, fromDefault string) string {
	if loadedFromFile != "" {
		return loadedFromFile
	}
	if fromConfig != "" {
		return fromConfig
	}
	return fromDefault
}
