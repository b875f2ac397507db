package common

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"resumelift/internal/errors"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return path
}

func TestReadFileAsDataURI(t *testing.T) {
	fp := NewFileProcessor(nil)

	path := writeTempFile(t, "resume.txt", "John Doe\nSoftware Engineer")

	dataURI, err := fp.ReadFileAsDataURI(path, 0)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	prefix := "data:text/plain;base64,"
	if !strings.HasPrefix(dataURI, prefix) {
		t.Fatalf("Expected data URI prefix %q, got %q", prefix, dataURI)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURI, prefix))
	if err != nil {
		t.Fatalf("Data URI payload is not valid base64: %v", err)
	}
	if string(decoded) != "John Doe\nSoftware Engineer" {
		t.Errorf("Decoded content mismatch: %q", decoded)
	}
}

func TestReadFileAsDataURIMarkdownMIME(t *testing.T) {
	fp := NewFileProcessor(nil)

	path := writeTempFile(t, "resume.md", "# John Doe")

	dataURI, err := fp.ReadFileAsDataURI(path, 0)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.HasPrefix(dataURI, "data:text/markdown;base64,") {
		t.Errorf("Expected markdown MIME type, got %q", dataURI)
	}
}

func TestReadFileAsDataURIUnsupportedType(t *testing.T) {
	fp := NewFileProcessor(nil)

	path := writeTempFile(t, "resume.png", "not a resume")

	_, err := fp.ReadFileAsDataURI(path, 0)
	if err == nil {
		t.Fatal("Expected error for unsupported file type")
	}

	appErr, ok := err.(*errors.AppError)
	if !ok {
		t.Fatalf("Expected *errors.AppError, got %T", err)
	}
	if appErr.Code != errors.ErrCodeUnsupportedFile {
		t.Errorf("Expected code %s, got %s", errors.ErrCodeUnsupportedFile, appErr.Code)
	}
}

func TestReadFileAsDataURISizeLimit(t *testing.T) {
	fp := NewFileProcessor(nil)

	path := writeTempFile(t, "resume.txt", strings.Repeat("x", 64))

	if _, err := fp.ReadFileAsDataURI(path, 32); err == nil {
		t.Fatal("Expected error for file exceeding size limit")
	}

	// At exactly the limit the file is accepted
	if _, err := fp.ReadFileAsDataURI(path, 64); err != nil {
		t.Errorf("Expected no error at the size limit, got: %v", err)
	}
}

func TestReadFileAsDataURIMissingFile(t *testing.T) {
	fp := NewFileProcessor(nil)

	_, err := fp.ReadFileAsDataURI(filepath.Join(t.TempDir(), "missing.pdf"), 0)
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestValidateAndReadFiles(t *testing.T) {
	fp := NewFileProcessor(nil)

	first := writeTempFile(t, "summary.txt", "summary content")
	second := writeTempFile(t, "notes.md", "notes content")

	contents, err := fp.ValidateAndReadFiles(first, second)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(contents) != 2 {
		t.Fatalf("Expected 2 contents, got %d", len(contents))
	}
	if contents[0] != "summary content" || contents[1] != "notes content" {
		t.Errorf("Unexpected contents: %v", contents)
	}
}
