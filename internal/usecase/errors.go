package usecase

import (
	"errors"
	"fmt"

	"torrentsession/internal/domain"
)

var (
	ErrEngine   = errors.New("engine error")
	ErrCreation = errors.New("transfer creation failed")
)

// ErrInvalidSource is a creation error raised before the engine is called.
var ErrInvalidSource = fmt.Errorf("%w: invalid transfer source", ErrCreation)

func wrapEngine(id domain.TransferID, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: transfer %d: %w", ErrEngine, id, err)
}

func wrapCreation(src domain.TransferSource, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: source %q: %w", ErrCreation, src.String(), err)
}

func notFound(id domain.TransferID) error {
	return fmt.Errorf("%w: transfer %d", domain.ErrNotFound, id)
}
