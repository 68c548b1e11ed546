package processor

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/adverant/nexus/idverify/internal/errors"
	"github.com/adverant/nexus/idverify/internal/logging"
)

// NameIdentifier picks person names out of OCR fragments
type NameIdentifier struct {
	ner    NERProvider
	logger *logging.Logger
}

func NewNameIdentifier(ner NERProvider) *NameIdentifier {
	return &NameIdentifier{
		ner:    ner,
		logger: logging.NewLogger("NameIdentifier"),
	}
}

// Identify runs NER on each fragment on its own and keeps every PERSON
// entity of exactly two space-separated tokens, in fragment order. A text
// seen twice is scored once and keeps its first fragment.
func (n *NameIdentifier) Identify(ctx context.Context, fragments []Fragment) ([]Candidate, error) {
	ctx, span := tracer.Start(ctx, "processor.Identify")
	defer span.End()

	seen := make(map[string]bool, len(fragments))
	var candidates []Candidate

	for _, f := range fragments {
		if seen[f.Text] {
			continue
		}
		seen[f.Text] = true

		entities, err := n.ner.Entities(ctx, f.Text)
		if err != nil {
			return nil, apperrors.NewNERFailedError(n.ner.Name(), err)
		}

		for _, e := range entities {
			if e.Label != LabelPerson {
				continue
			}
			if len(strings.Split(e.Text, " ")) != 2 {
				n.logger.Debug("Skipping person entity", "entity", e.Text, "reason", "not two tokens")
				continue
			}
			candidates = append(candidates, Candidate{Name: e.Text, Fragment: f})
		}
	}

	span.SetAttributes(attribute.Int("ner.candidates", len(candidates)))

	if len(candidates) == 0 {
		return nil, apperrors.NewNoNameFoundError(len(fragments))
	}
	return candidates, nil
}
