package pipeline

import (
	"context"

	"github.com/pkg/errors"

	"github.com/nvr-ai/ingredient-vision/images"
	"github.com/nvr-ai/ingredient-vision/inference"
	"github.com/nvr-ai/ingredient-vision/models/postprocess"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	// KindInvalidImage means the photo was empty, zero-sized or undecodable.
	KindInvalidImage Kind = "invalid_image"
	// KindModelLoad means the detector could not be loaded. It stays until Model.Retry.
	KindModelLoad Kind = "model_load"
	// KindInference means the detector failed or produced malformed output.
	KindInference Kind = "inference"
	// KindUnknownClass means the detector reported a class the label table does not have.
	KindUnknownClass Kind = "unknown_class"
	// KindCancelled means the caller stopped waiting for the run.
	KindCancelled Kind = "cancelled"
)

// Error is the single failure signal returned by a pipeline run.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a pipeline error, or "" when err did not come from a pipeline.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return ""
}

// classify wraps err with the kind matching its cause.
func classify(err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}

	kind := KindInference
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = KindCancelled
	case errors.Is(err, images.ErrInvalidImage):
		kind = KindInvalidImage
	case errors.Is(err, inference.ErrModelLoad):
		kind = KindModelLoad
	case errors.Is(err, postprocess.ErrUnknownClass):
		kind = KindUnknownClass
	}
	return &Error{Kind: kind, Err: err}
}
