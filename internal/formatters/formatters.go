package formatters

import (
	"encoding/json"
	"fmt"
	"strings"

	"resumelift/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	// Register default formatters
	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "ParsedResume", &ParseTextFormatter{})
	registry.RegisterFormatter("markdown", "ParsedResume", &ParseMarkdownFormatter{})
	registry.RegisterFormatter("text", "ScoreResult", &ScoreTextFormatter{})
	registry.RegisterFormatter("markdown", "ScoreResult", &ScoreMarkdownFormatter{})
	registry.RegisterFormatter("text", "RewriteResumeOutput", &RewriteTextFormatter{})
	registry.RegisterFormatter("markdown", "RewriteResumeOutput", &RewriteMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	// Try specific formatter first
	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.ParsedResume:
		return "ParsedResume"
	case types.ScoreResult:
		return "ScoreResult"
	case types.RewriteResumeOutput:
		return "RewriteResumeOutput"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// ParseTextFormatter handles text formatting for parsed resumes
type ParseTextFormatter struct{}

func (ptf *ParseTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.ParsedResume)
	if !ok {
		return "", fmt.Errorf("expected ParsedResume, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== SKILLS ===\n")
	if len(result.Skills) > 0 {
		for _, skill := range result.Skills {
			output.WriteString(fmt.Sprintf("- %s\n", skill))
		}
	} else {
		output.WriteString("None found.\n")
	}
	output.WriteString("\n")

	output.WriteString("=== EXPERIENCE ===\n")
	if len(result.Experience) > 0 {
		for i, exp := range result.Experience {
			output.WriteString(fmt.Sprintf("%d. %s, %s (%s)\n", i+1, exp.Title, exp.Company, exp.Dates))
			if exp.Description != "" {
				output.WriteString("   ")
				output.WriteString(exp.Description)
				output.WriteString("\n")
			}
		}
	} else {
		output.WriteString("None found.\n")
	}
	output.WriteString("\n")

	output.WriteString("=== EDUCATION ===\n")
	if len(result.Education) > 0 {
		for i, edu := range result.Education {
			output.WriteString(fmt.Sprintf("%d. %s, %s (%s)\n", i+1, edu.Degree, edu.Institution, edu.Dates))
		}
	} else {
		output.WriteString("None found.\n")
	}

	return output.String(), nil
}

func (ptf *ParseTextFormatter) SupportedType() string {
	return "ParsedResume"
}

// ParseMarkdownFormatter handles markdown formatting for parsed resumes
type ParseMarkdownFormatter struct{}

func (pmf *ParseMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.ParsedResume)
	if !ok {
		return "", fmt.Errorf("expected ParsedResume, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# Parsed Resume\n\n")

	output.WriteString("## Skills\n\n")
	if len(result.Skills) > 0 {
		for _, skill := range result.Skills {
			output.WriteString(fmt.Sprintf("- %s\n", skill))
		}
	} else {
		output.WriteString("_None found._\n")
	}
	output.WriteString("\n")

	output.WriteString("## Experience\n\n")
	if len(result.Experience) > 0 {
		for _, exp := range result.Experience {
			output.WriteString(fmt.Sprintf("### %s, %s\n\n", exp.Title, exp.Company))
			if exp.Dates != "" {
				output.WriteString(fmt.Sprintf("**Dates:** %s\n\n", exp.Dates))
			}
			if exp.Description != "" {
				output.WriteString(exp.Description)
				output.WriteString("\n\n")
			}
		}
	} else {
		output.WriteString("_None found._\n\n")
	}

	output.WriteString("## Education\n\n")
	if len(result.Education) > 0 {
		for _, edu := range result.Education {
			output.WriteString(fmt.Sprintf("- %s, %s (%s)\n", edu.Degree, edu.Institution, edu.Dates))
		}
	} else {
		output.WriteString("_None found._\n")
	}

	return output.String(), nil
}

func (pmf *ParseMarkdownFormatter) SupportedType() string {
	return "ParsedResume"
}

// ScoreTextFormatter handles text formatting for score results
type ScoreTextFormatter struct{}

func (stf *ScoreTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.ScoreResult)
	if !ok {
		return "", fmt.Errorf("expected ScoreResult, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== RESUME SCORE ===\n\n")
	output.WriteString(fmt.Sprintf("Overall Score: %d/100\n", result.OverallScore))
	output.WriteString(fmt.Sprintf("ATS Compatibility: %d/100\n\n", result.ATSCompatibility))

	output.WriteString("=== CATEGORY SCORES ===\n")
	writeCategoryScores(&output, result.CategoryScores, "%s: %d/100\n")
	output.WriteString("\n")

	if len(result.Strengths) > 0 {
		output.WriteString("=== STRENGTHS ===\n")
		for _, strength := range result.Strengths {
			output.WriteString(fmt.Sprintf("- %s\n", strength))
		}
		output.WriteString("\n")
	}

	if len(result.Improvements) > 0 {
		output.WriteString("=== IMPROVEMENTS ===\n")
		for _, improvement := range result.Improvements {
			output.WriteString(fmt.Sprintf("- %s\n", improvement))
		}
		output.WriteString("\n")
	}

	if len(result.Recommendations) > 0 {
		output.WriteString("=== RECOMMENDATIONS ===\n")
		for i, recommendation := range result.Recommendations {
			output.WriteString(fmt.Sprintf("%d. %s\n", i+1, recommendation))
		}
		output.WriteString("\n")
	}

	output.WriteString("=== INDUSTRY ALIGNMENT ===\n")
	output.WriteString(result.IndustryAlignment)
	output.WriteString("\n")

	return output.String(), nil
}

func (stf *ScoreTextFormatter) SupportedType() string {
	return "ScoreResult"
}

// ScoreMarkdownFormatter handles markdown formatting for score results
type ScoreMarkdownFormatter struct{}

func (smf *ScoreMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.ScoreResult)
	if !ok {
		return "", fmt.Errorf("expected ScoreResult, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# Resume Score\n\n")
	output.WriteString(fmt.Sprintf("**Overall Score:** %d/100\n\n", result.OverallScore))
	output.WriteString(fmt.Sprintf("**ATS Compatibility:** %d/100\n\n", result.ATSCompatibility))

	output.WriteString("## Category Scores\n\n")
	writeCategoryScores(&output, result.CategoryScores, "- **%s:** %d/100\n")
	output.WriteString("\n")

	if len(result.Strengths) > 0 {
		output.WriteString("## Strengths\n\n")
		for _, strength := range result.Strengths {
			output.WriteString(fmt.Sprintf("- %s\n", strength))
		}
		output.WriteString("\n")
	}

	if len(result.Improvements) > 0 {
		output.WriteString("## Improvements\n\n")
		for _, improvement := range result.Improvements {
			output.WriteString(fmt.Sprintf("- %s\n", improvement))
		}
		output.WriteString("\n")
	}

	if len(result.Recommendations) > 0 {
		output.WriteString("## Recommendations\n\n")
		for i, recommendation := range result.Recommendations {
			output.WriteString(fmt.Sprintf("%d. %s\n", i+1, recommendation))
		}
		output.WriteString("\n")
	}

	output.WriteString("## Industry Alignment\n\n")
	output.WriteString(result.IndustryAlignment)
	output.WriteString("\n")

	return output.String(), nil
}

func (smf *ScoreMarkdownFormatter) SupportedType() string {
	return "ScoreResult"
}

func writeCategoryScores(output *strings.Builder, scores types.CategoryScores, format string) {
	categories := []struct {
		name  string
		value int
	}{
		{"Content", scores.Content},
		{"Formatting", scores.Formatting},
		{"Keywords", scores.Keywords},
		{"Experience", scores.Experience},
		{"Skills", scores.Skills},
		{"Education", scores.Education},
		{"Achievements", scores.Achievements},
	}
	for _, category := range categories {
		output.WriteString(fmt.Sprintf(format, category.name, category.value))
	}
}

// RewriteTextFormatter handles text formatting for rewritten resumes
type RewriteTextFormatter struct{}

func (rtf *RewriteTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.RewriteResumeOutput)
	if !ok {
		return "", fmt.Errorf("expected RewriteResumeOutput, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== REWRITTEN RESUME ===\n\n")
	output.WriteString(result.RewrittenResume)
	output.WriteString("\n")

	return output.String(), nil
}

func (rtf *RewriteTextFormatter) SupportedType() string {
	return "RewriteResumeOutput"
}

// RewriteMarkdownFormatter handles markdown formatting for rewritten resumes
type RewriteMarkdownFormatter struct{}

func (rmf *RewriteMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.RewriteResumeOutput)
	if !ok {
		return "", fmt.Errorf("expected RewriteResumeOutput, got %T", data)
	}

	// The rewritten resume is already markdown; pass it through
	return result.RewrittenResume + "\n", nil
}

func (rmf *RewriteMarkdownFormatter) SupportedType() string {
	return "RewriteResumeOutput"
}

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()
