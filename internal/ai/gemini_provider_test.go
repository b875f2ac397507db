package ai

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestDecodeDataURI(t *testing.T) {
	pdfBytes := []byte("%PDF-1.4 fake document body")
	validURI := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdfBytes)

	tests := []struct {
		name         string
		dataURI      string
		expectError  bool
		expectedMIME string
	}{
		{
			name:         "valid pdf data URI",
			dataURI:      validURI,
			expectedMIME: "application/pdf",
		},
		{
			name:         "valid plain text data URI",
			dataURI:      "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("resume text")),
			expectedMIME: "text/plain",
		},
		{
			name:        "missing data prefix",
			dataURI:     "application/pdf;base64,AAAA",
			expectError: true,
		},
		{
			name:        "not base64 encoded",
			dataURI:     "data:text/plain,hello",
			expectError: true,
		},
		{
			name:        "missing mime type",
			dataURI:     "data:;base64,AAAA",
			expectError: true,
		},
		{
			name:        "invalid base64 payload",
			dataURI:     "data:application/pdf;base64,!!not-base64!!",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mimeType, data, err := decodeDataURI(tt.dataURI)

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if mimeType != tt.expectedMIME {
				t.Errorf("Expected MIME type '%s', got '%s'", tt.expectedMIME, mimeType)
			}
			if len(data) == 0 {
				t.Error("Expected decoded payload, got empty bytes")
			}
		})
	}
}

func TestDecodeDataURIRoundTrip(t *testing.T) {
	original := []byte("John Doe\nSenior Engineer\nSkills: Go, SQL")
	uri := "data:text/plain;base64," + base64.StdEncoding.EncodeToString(original)

	_, data, err := decodeDataURI(uri)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(data) != string(original) {
		t.Errorf("Decoded payload mismatch: got %q", data)
	}
}

func TestBuildResumeContentsRejectsMalformedURI(t *testing.T) {
	_, err := buildResumeContents("prompt", "not-a-data-uri")
	if err == nil {
		t.Fatal("Expected error for malformed data URI")
	}
}

func TestResolvePrompt(t *testing.T) {
	tests := []struct {
		name     string
		loaded   string
		config   string
		fallback string
		expected string
	}{
		{
			name:     "file content wins",
			loaded:   "from-file",
			config:   "from-config",
			fallback: "default",
			expected: "from-file",
		},
		{
			name:     "config beats default",
			config:   "from-config",
			fallback: "default",
			expected: "from-config",
		},
		{
			name:     "default as last resort",
			fallback: "default",
			expected: "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := resolvePrompt(tt.loaded, tt.config, tt.fallback)
			if result != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

func TestDefaultRewritePromptHasSummaryPlaceholder(t *testing.T) {
	if !strings.Contains(DefaultUserPrompts.RewriteResume, "%s") {
		t.Error("Rewrite user prompt must carry a placeholder for the interview summary")
	}
}

func TestExtractTokenUsageNil(t *testing.T) {
	if usage := extractTokenUsage(nil); usage != nil {
		t.Error("Expected nil token usage for nil response")
	}
}
