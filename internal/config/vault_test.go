package config

import (
	"testing"

	"resumelift/internal/errors"

	"github.com/stretchr/testify/assert"
)

func newTestLogger() *errors.Logger {
	logger, _ := errors.New("debug")
	return logger
}

// Test parseVersionValue function
func TestParseVersionValue(t *testing.T) {
	tests := []struct {
		name        string
		input       interface{}
		path        string
		expected    int64
		expectError bool
	}{
		{
			name:     "int64 value",
			input:    int64(42),
			path:     "test/path",
			expected: 42,
		},
		{
			name:     "float64 value",
			input:    float64(42.0),
			path:     "test/path",
			expected: 42,
		},
		{
			name:     "string value",
			input:    "42",
			path:     "test/path",
			expected: 42,
		},
		{
			name:        "invalid string value",
			input:       "not-a-number",
			path:        "test/path",
			expectError: true,
		},
		{
			name:        "unsupported type",
			input:       []string{"42"},
			path:        "test/path",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseVersionValue(tt.input, tt.path)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

// Test applyGeminiKeyToConfig function
func TestApplyGeminiKeyToConfig(t *testing.T) {
	config := &Config{
		AI: AIConfig{
			Parse:   OperationAIConfig{},
			Score:   OperationAIConfig{},
			Rewrite: OperationAIConfig{},
		},
	}

	geminiKey := "test-gemini-key"
	applyGeminiKeyToConfig(config, geminiKey)

	assert.Equal(t, geminiKey, config.AI.APIKey)
	assert.Equal(t, geminiKey, config.AI.Parse.APIKey)
	assert.Equal(t, geminiKey, config.AI.Score.APIKey)
	assert.Equal(t, geminiKey, config.AI.Rewrite.APIKey)
}

func TestApplyGeminiKeyToConfigWithExistingKeys(t *testing.T) {
	existingParseKey := "existing-parse-key"
	config := &Config{
		AI: AIConfig{
			Parse:   OperationAIConfig{APIKey: existingParseKey},
			Score:   OperationAIConfig{},
			Rewrite: OperationAIConfig{},
		},
	}

	geminiKey := "test-gemini-key"
	applyGeminiKeyToConfig(config, geminiKey)

	assert.Equal(t, geminiKey, config.AI.APIKey)
	assert.Equal(t, existingParseKey, config.AI.Parse.APIKey) // Should not overwrite existing
	assert.Equal(t, geminiKey, config.AI.Score.APIKey)
	assert.Equal(t, geminiKey, config.AI.Rewrite.APIKey)
}

// Test loadSingleCertificate function
func TestLoadSingleCertificate(t *testing.T) {
	logger := newTestLogger()

	tests := []struct {
		name     string
		tlsData  *VaultSecret
		key      string
		expected int
		content  string
	}{
		{
			name: "certificate present",
			tlsData: &VaultSecret{
				Data: map[string]any{"cert": "PEM CONTENT"},
			},
			key:      "cert",
			expected: 1,
			content:  "PEM CONTENT",
		},
		{
			name: "certificate missing",
			tlsData: &VaultSecret{
				Data: map[string]any{},
			},
			key:      "cert",
			expected: 0,
		},
		{
			name: "certificate empty",
			tlsData: &VaultSecret{
				Data: map[string]any{"cert": ""},
			},
			key:      "cert",
			expected: 0,
		},
		{
			name: "certificate wrong type",
			tlsData: &VaultSecret{
				Data: map[string]any{"cert": 42},
			},
			key:      "cert",
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var target string
			count := loadSingleCertificate(tt.tlsData, tt.key, &target, "test cert", logger)

			assert.Equal(t, tt.expected, count)
			assert.Equal(t, tt.content, target)
		})
	}
}

// Test validateTLSDeprecatedFields function
func TestValidateTLSDeprecatedFields(t *testing.T) {
	logger := newTestLogger()

	tests := []struct {
		name        string
		data        map[string]any
		expectError bool
	}{
		{
			name:        "no deprecated fields",
			data:        map[string]any{"cert": "a", "key": "b"},
			expectError: false,
		},
		{
			name:        "deprecated cert_file",
			data:        map[string]any{"cert_file": "/path"},
			expectError: true,
		},
		{
			name:        "deprecated key_file",
			data:        map[string]any{"key_file": "/path"},
			expectError: true,
		},
		{
			name:        "deprecated ca_file",
			data:        map[string]any{"ca_file": "/path"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTLSDeprecatedFields(&VaultSecret{Data: tt.data}, logger)

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "no longer supported")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// Test NewVaultClient when disabled
func TestNewVaultClientDisabled(t *testing.T) {
	client, err := NewVaultClient(VaultConfig{Enabled: false}, nil)

	assert.NoError(t, err)
	assert.Nil(t, client)
}

// Test resolveVaultToken precedence
func TestResolveVaultToken(t *testing.T) {
	t.Run("direct token wins", func(t *testing.T) {
		token, err := resolveVaultToken(VaultConfig{Token: "direct-token"}, nil)

		assert.NoError(t, err)
		assert.Equal(t, "direct-token", token)
	})

	t.Run("missing token is an error", func(t *testing.T) {
		_, err := resolveVaultToken(VaultConfig{}, nil)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "vault token is required")
	})
}
