package common

import (
	"context"
	"fmt"
	"os"

	"resumelift/internal/ai"
	"resumelift/internal/errors"
)

// CreateInputFunc defines how to create the specific AI input from the resume
// data URI and any extra text file contents.
type CreateInputFunc[Input any] func(resumeDataURI string, extra []string) (Input, error)

// LogDetailsFunc defines how to log the start of an operation.
type LogDetailsFunc[Input any] func(input Input, cfg CommandConfig)

// AIOperationFunc is a generic function signature for any AI operation with context and token usage.
type AIOperationFunc[Input, Output any] func(context.Context, Input) (Output, *ai.TokenUsage, error)

// RunAICommand encapsulates the common logic for resume-based CLI commands.
// The first argument is the resume document, read and encoded as a data URI;
// any remaining arguments are read as plain text files.
func RunAICommand[Input, Output any](
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	args []string,
	createInput CreateInputFunc[Input],
	aiOperation AIOperationFunc[Input, Output],
	logDetails LogDetailsFunc[Input],
) error {
	if len(args) == 0 {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"A resume file argument is required", nil)
	}

	// Pass the logger when creating helpers
	fileProcessor := NewFileProcessor(logger)
	outputHandler := NewOutputHandler(logger)

	resumeDataURI, err := fileProcessor.ReadFileAsDataURI(args[0], cmdConfig.MaxFileSize)
	if err != nil {
		return err
	}

	var extra []string
	if len(args) > 1 {
		extra, err = fileProcessor.ValidateAndReadFiles(args[1:]...)
		if err != nil {
			return err
		}
	}

	input, err := createInput(resumeDataURI, extra)
	if err != nil {
		return fmt.Errorf("failed to create input from file contents: %w", err)
	}

	logDetails(input, cmdConfig)

	result, tokenUsage, err := aiOperation(ctx, input)
	if err != nil {
		return err
	}

	// Report token usage
	if tokenUsage != nil {
		if logger != nil {
			logger.Info("AI token usage", "input_tokens", tokenUsage.InputTokens, "output_tokens", tokenUsage.OutputTokens, "total_tokens", tokenUsage.TotalTokens)
		} else {
			fmt.Fprintf(os.Stderr, "AI token usage: input=%d, output=%d, total=%d\n", tokenUsage.InputTokens, tokenUsage.OutputTokens, tokenUsage.TotalTokens)
		}
	}

	return outputHandler.HandleOutput(result, cmdConfig)
}
