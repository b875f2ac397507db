package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// loadPromptsFromFiles loads custom prompts from external files if file paths are specified
func (c *Config) loadPromptsFromFiles() error {
	// Initialize loaded prompts exactly once
	loadedPromptsOnce.Do(func() {
		loadedPrompts = AllLoadedPrompts{}
	})

	// Load global prompts
	if err := c.loadSystemPromptsFromFiles(&c.AI.CustomPrompts.SystemPrompts, &loadedPrompts.Global.SystemPrompts); err != nil {
		return fmt.Errorf("failed to load global system prompts: %w", err)
	}
	if err := c.loadUserPromptsFromFiles(&c.AI.CustomPrompts.UserPrompts, &loadedPrompts.Global.UserPrompts); err != nil {
		return fmt.Errorf("failed to load global user prompts: %w", err)
	}

	// Load operation-specific prompts
	if err := c.loadSystemPromptsFromFiles(&c.AI.Parse.CustomPrompts.SystemPrompts, &loadedPrompts.Parse.SystemPrompts); err != nil {
		return fmt.Errorf("failed to load parse system prompts: %w", err)
	}
	if err := c.loadUserPromptsFromFiles(&c.AI.Parse.CustomPrompts.UserPrompts, &loadedPrompts.Parse.UserPrompts); err != nil {
		return fmt.Errorf("failed to load parse user prompts: %w", err)
	}

	if err := c.loadSystemPromptsFromFiles(&c.AI.Score.CustomPrompts.SystemPrompts, &loadedPrompts.Score.SystemPrompts); err != nil {
		return fmt.Errorf("failed to load score system prompts: %w", err)
	}
	if err := c.loadUserPromptsFromFiles(&c.AI.Score.CustomPrompts.UserPrompts, &loadedPrompts.Score.UserPrompts); err != nil {
		return fmt.Errorf("failed to load score user prompts: %w", err)
	}

	if err := c.loadSystemPromptsFromFiles(&c.AI.Rewrite.CustomPrompts.SystemPrompts, &loadedPrompts.Rewrite.SystemPrompts); err != nil {
		return fmt.Errorf("failed to load rewrite system prompts: %w", err)
	}
	if err := c.loadUserPromptsFromFiles(&c.AI.Rewrite.CustomPrompts.UserPrompts, &loadedPrompts.Rewrite.UserPrompts); err != nil {
		return fmt.Errorf("failed to load rewrite user prompts: %w", err)
	}

	return nil
}

// loadSystemPromptsFromFiles loads system prompts from files if file paths are specified
func (c *Config) loadSystemPromptsFromFiles(prompts *SystemPrompts, target *LoadedSystemPrompts) error {
	if prompts.ParseResumeFile != "" {
		content, err := c.loadPromptFromFile(prompts.ParseResumeFile, "system", "parseResume")
		if err != nil {
			return err
		}
		target.ParseResume = content
	}

	if prompts.ScoreResumeFile != "" {
		content, err := c.loadPromptFromFile(prompts.ScoreResumeFile, "system", "scoreResume")
		if err != nil {
			return err
		}
		target.ScoreResume = content
	}

	if prompts.RewriteResumeFile != "" {
		content, err := c.loadPromptFromFile(prompts.RewriteResumeFile, "system", "rewriteResume")
		if err != nil {
			return err
		}
		target.RewriteResume = content
	}

	return nil
}

// loadUserPromptsFromFiles loads user prompts from files if file paths are specified
func (c *Config) loadUserPromptsFromFiles(prompts *UserPrompts, target *LoadedUserPrompts) error {
	if prompts.ParseResumeFile != "" {
		content, err := c.loadPromptFromFile(prompts.ParseResumeFile, "user", "parseResume")
		if err != nil {
			return err
		}
		target.ParseResume = content
	}

	if prompts.ScoreResumeFile != "" {
		content, err := c.loadPromptFromFile(prompts.ScoreResumeFile, "user", "scoreResume")
		if err != nil {
			return err
		}
		target.ScoreResume = content
	}

	if prompts.RewriteResumeFile != "" {
		content, err := c.loadPromptFromFile(prompts.RewriteResumeFile, "user", "rewriteResume")
		if err != nil {
			return err
		}
		target.RewriteResume = content
	}

	return nil
}

// loadPromptFromFile loads a prompt from a file with proper error handling and logging
func (c *Config) loadPromptFromFile(filePath, promptType, operation string) (string, error) {
	// Resolve relative paths
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s %s prompt file '%s': %w", promptType, operation, filePath, err)
	}

	// Check if file exists
	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return "", fmt.Errorf("%s %s prompt file not found: %s", promptType, operation, absPath)
	}

	// Read file content
	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s %s prompt file '%s': %w", promptType, operation, absPath, err)
	}

	// Validate content is not empty
	trimmedContent := strings.TrimSpace(string(content))
	if trimmedContent == "" {
		return "", fmt.Errorf("%s %s prompt file '%s' is empty", promptType, operation, absPath)
	}

	log.Printf("[CONFIG] Successfully loaded %s %s prompt from file: %s (%d characters)",
		promptType, operation, absPath, len(trimmedContent))

	return trimmedContent, nil
}

// validatePromptFiles validates that prompt files exist and are readable before loading
func (c *Config) validatePromptFiles() error {
	var validationErrors []string

	// Helper function to validate a file path
	validateFile := func(filePath, promptType, operation string) {
		if filePath == "" {
			return // No file specified, skip validation
		}

		absPath, err := filepath.Abs(filePath)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid path for %s %s prompt: %s", promptType, operation, filePath))
			return
		}

		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("%s %s prompt file not found: %s", promptType, operation, absPath))
		}
	}

	// Validate global prompt files
	validateFile(c.AI.CustomPrompts.SystemPrompts.ParseResumeFile, "system", "parseResume")
	validateFile(c.AI.CustomPrompts.SystemPrompts.ScoreResumeFile, "system", "scoreResume")
	validateFile(c.AI.CustomPrompts.SystemPrompts.RewriteResumeFile, "system", "rewriteResume")
	validateFile(c.AI.CustomPrompts.UserPrompts.ParseResumeFile, "user", "parseResume")
	validateFile(c.AI.CustomPrompts.UserPrompts.ScoreResumeFile, "user", "scoreResume")
	validateFile(c.AI.CustomPrompts.UserPrompts.RewriteResumeFile, "user", "rewriteResume")

	// Validate operation-specific prompt files
	validateFile(c.AI.Parse.CustomPrompts.SystemPrompts.ParseResumeFile, "parse system", "parseResume")
	validateFile(c.AI.Parse.CustomPrompts.UserPrompts.ParseResumeFile, "parse user", "parseResume")
	validateFile(c.AI.Score.CustomPrompts.SystemPrompts.ScoreResumeFile, "score system", "scoreResume")
	validateFile(c.AI.Score.CustomPrompts.UserPrompts.ScoreResumeFile, "score user", "scoreResume")
	validateFile(c.AI.Rewrite.CustomPrompts.SystemPrompts.RewriteResumeFile, "rewrite system", "rewriteResume")
	validateFile(c.AI.Rewrite.CustomPrompts.UserPrompts.RewriteResumeFile, "rewrite user", "rewriteResume")

	if len(validationErrors) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}

	return nil
}
