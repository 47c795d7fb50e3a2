//go:build !gocv

package detectors

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/ingredient-vision/inference"
)

// NewOpenCV is unavailable without the gocv build tag.
func NewOpenCV(cfg Config) (inference.Runtime, error) {
	return nil, errors.Wrap(inference.ErrModelLoad, "opencv engine requires building with -tags gocv")
}
