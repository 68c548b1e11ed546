package imaging

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/adverant/nexus/idverify/internal/errors"
	"github.com/adverant/nexus/idverify/internal/logging"
	"github.com/adverant/nexus/idverify/internal/storage"
)

var tracer = otel.Tracer("github.com/adverant/nexus/idverify/internal/imaging")

// SkewCorrector writes a level copy of each raw image to the processed store
// under the same name.
type SkewCorrector struct {
	raw       storage.ImageStore
	processed storage.ImageStore
	logger    *logging.Logger
}

func NewSkewCorrector(raw, processed storage.ImageStore) *SkewCorrector {
	return &SkewCorrector{
		raw:       raw,
		processed: processed,
		logger:    logging.NewLogger("SkewCorrector"),
	}
}

// Correct de-skews filename. A level image is copied byte for byte.
func (s *SkewCorrector) Correct(ctx context.Context, filename string) error {
	ctx, span := tracer.Start(ctx, "imaging.Correct")
	defer span.End()

	data, err := s.raw.Get(ctx, filename)
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NewImageReadError(filename, err)
	}
	if err != nil {
		return apperrors.NewStorageFailedError("read raw image", err)
	}

	img, _, err := Decode(data)
	if err != nil {
		return apperrors.NewImageReadError(filename, err)
	}

	angle := SkewAngle(Invert(Grayscale(img)))
	span.SetAttributes(attribute.Float64("skew.angle", angle))

	out := data
	if angle != 0 {
		out, err = Encode(Rotate(img, angle), filename)
		if err != nil {
			return apperrors.NewImageReadError(filename, err)
		}
	}

	if err := s.processed.Put(ctx, filename, out); err != nil {
		return apperrors.NewStorageFailedError("write processed image", err)
	}

	s.logger.Debug("Skew corrected", "filename", filename, "angle", angle, "rotated", angle != 0)
	return nil
}
