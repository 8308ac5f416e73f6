package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTemporary    = errors.New("temporary failure")
)

// Resolution pipeline failure kinds. Each component degrades locally on its
// own kind; only generation and timeout failures reach the resolver.
var (
	ErrTierLookup      = errors.New("tier lookup failure")
	ErrClassification  = errors.New("classification failure")
	ErrOptimization    = errors.New("optimization failure")
	ErrRetrieval       = errors.New("retrieval failure")
	ErrGeneration      = errors.New("generation failure")
	ErrInvalidStrategy = errors.New("invalid strategy")
	ErrTimeout         = errors.New("timeout")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
