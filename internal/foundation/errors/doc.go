// Package errors provides foundational, type-safe error primitives used across bookbuilder.
//
// This package contains classified error types and helpers for robust error handling,
// including a fluent builder API for constructing ClassifiedError values with context.
//
// Key features:
//   - ErrorCategory: Broad error classification (manifest, reference, render, filesystem, ...)
//   - ErrorSeverity: Impact level (fatal, error, warning, info)
//   - ClassifiedError: Structured error with category, severity, and context
//   - ErrorBuilder: Fluent API for creating classified errors
//
// Example usage:
//
//	err := errors.ReferenceError("chapter does not resolve").
//		WithContext("path", chapterPath).
//		Build()
package errors
