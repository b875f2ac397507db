package cli

import (
	"context"
	"fmt"

	"resumelift/internal/ai"
	"resumelift/internal/common"
	"resumelift/internal/types"

	"github.com/spf13/cobra"
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [resume-file] [interview-summary-file]",
	Short: "Rewrite a resume using interview insights",
	Long: `Rewrite a resume using AI. The command takes the path to the resume
file and optionally a plain text file with interview notes or a conversation
summary; the rewrite works the new details into the resume while preserving
factual accuracy.`,
	Args: cobra.RangeArgs(1, 2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if rewriteConfig.OutputFormat == "" {
			rewriteConfig.OutputFormat = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(rewriteConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runRewrite,
}

var rewriteConfig common.CommandConfig

func init() {
	rewriteCmd.Flags().StringVarP(&rewriteConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	rewriteCmd.Flags().StringVar(&rewriteConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")

	_ = rewriteCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return common.GetSupportedFormats(cfg.App.SupportedFormats), cobra.ShellCompDirectiveNoFileComp
	})
}

func runRewrite(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())
	rewriteConfig.MaxFileSize = cfg.App.MaxFileSize

	rewriteAIConfig := cfg.GetRewriteConfig()
	aiService, err := ai.NewService(&rewriteAIConfig, "rewrite", logger)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}

	createInput := func(resumeDataURI string, extra []string) (types.RewriteResumeInput, error) {
		input := types.RewriteResumeInput{
			ResumeDataURI: resumeDataURI,
		}
		if len(extra) > 0 {
			input.InterviewSummary = extra[0]
		}
		return input, nil
	}

	logDetails := func(input types.RewriteResumeInput, cfg common.CommandConfig) {
		logger.Info("Starting resume rewrite",
			"resume_chars", len(input.ResumeDataURI),
			"summary_chars", len(input.InterviewSummary),
			"output_format", cfg.OutputFormat)
	}

	rewriteOperation := func(ctx context.Context, input types.RewriteResumeInput) (types.RewriteResumeOutput, *ai.TokenUsage, error) {
		return aiService.Provider.RewriteResume(ctx, input)
	}

	err = common.RunAICommand(
		cmd.Context(),
		logger,
		rewriteConfig,
		args,
		createInput,
		rewriteOperation,
		logDetails,
	)

	if err != nil {
		return fmt.Errorf("failed to rewrite resume: %w", err)
	}
	logger.Info("Resume rewrite completed successfully")
	return nil
}
