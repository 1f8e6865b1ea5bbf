package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryManifest, "malformed manifest").
			WithSeverity(SeverityFatal).
			WithContext("file", "_book.yaml").
			Build()

		if err.Category() != CategoryManifest {
			t.Errorf("expected category %s, got %s", CategoryManifest, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		if err.Message() != "malformed manifest" {
			t.Errorf("expected message 'malformed manifest', got %s", err.Message())
		}

		file, exists := err.Context().GetString("file")
		if !exists || file != "_book.yaml" {
			t.Errorf("expected context file=_book.yaml, got %v", file)
		}
	})

	t.Run("Error detection", func(t *testing.T) {
		err := ManifestError("test error").Build()

		if !HasCategory(err, CategoryManifest) {
			t.Error("expected error to have manifest category")
		}
		if !err.IsFatal() {
			t.Error("expected manifest error to be fatal")
		}
	})

	t.Run("Render errors are warnings", func(t *testing.T) {
		err := RenderError("unparseable notebook").WithContext("path", "intro.ipynb").Build()
		if err.IsFatal() {
			t.Error("render errors must not abort the build")
		}
		if GetSeverity(err) != SeverityWarning {
			t.Errorf("expected warning severity, got %s", GetSeverity(err))
		}
	})

	t.Run("Wrapping preserves cause", func(t *testing.T) {
		cause := fmt.Errorf("open failed")
		err := WrapError(cause, CategoryFileSystem, "read chapter").Build()

		if !errors.Is(err, cause) {
			t.Error("expected wrapped cause to be reachable via errors.Is")
		}
		if errors.Unwrap(err) != cause {
			t.Error("expected Unwrap to return cause")
		}
	})

	t.Run("Unclassified defaults", func(t *testing.T) {
		plain := errors.New("plain")
		if GetCategory(plain) != CategoryInternal {
			t.Errorf("expected internal category for plain errors, got %s", GetCategory(plain))
		}
		if GetSeverity(plain) != SeverityError {
			t.Errorf("expected error severity for plain errors, got %s", GetSeverity(plain))
		}
	})
}
