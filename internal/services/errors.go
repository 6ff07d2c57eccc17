package services

import (
	"errors"
	"fmt"

	"github.com/tsuyoshi-3110/dslab571/internal/domain"
)

var (
	// ErrValidation matches every ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrEditorCapabilityRequired rejects mutations attempted without editor rights.
	ErrEditorCapabilityRequired = errors.New("editor capability required")
	// ErrItemNotFound reports a missing catalog item.
	ErrItemNotFound = errors.New("catalog item not found")
	// ErrCategoryNotFound reports a missing category.
	ErrCategoryNotFound = errors.New("category not found")
)

// ValidationError describes rejected editor input. It is raised before any external
// call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TranslationError records one failed target language. It is logged, never returned
// to callers of a save.
type TranslationError struct {
	Lang domain.Language
	Err  error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translate %s: %v", e.Lang, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// StorageError wraps a failed upload or persistence step.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
