package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jdkato/prose/v2"

	"github.com/adverant/nexus/idverify/internal/clients"
	"github.com/adverant/nexus/idverify/internal/config"
)

// LabelPerson is the entity label for people
const LabelPerson = "PERSON"

// ProseNER runs the prose entity extractor in process. Its bundled model
// needs sentence context and rarely tags a bare name line, so it suits
// custom models trained on document fragments.
type ProseNER struct {
	model *prose.Model
}

var (
	proseOnce sync.Once
	proseInst *ProseNER
)

// SharedProseNER returns the process-wide prose provider. modelPath points
// at a model saved with prose's Model.Write; empty uses the bundled one.
func SharedProseNER(modelPath string) *ProseNER {
	proseOnce.Do(func() {
		p := &ProseNER{}
		if modelPath != "" {
			p.model = prose.ModelFromDisk(modelPath)
		} else if doc, err := prose.NewDocument(""); err == nil {
			// the bundled weights are decoded once here, not per document
			p.model = doc.Model
		}
		proseInst = p
	})
	return proseInst
}

func (p *ProseNER) Name() string { return "prose" }

func (p *ProseNER) Entities(ctx context.Context, text string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts []prose.DocOpt
	if p.model != nil {
		opts = append(opts, prose.UsingModel(p.model))
	}

	doc, err := prose.NewDocument(text, opts...)
	if err != nil {
		return nil, fmt.Errorf("prose: %w", err)
	}

	ents := doc.Entities()
	out := make([]Entity, 0, len(ents))
	for _, e := range ents {
		out = append(out, Entity{Text: e.Text, Label: e.Label})
	}
	return out, nil
}

// SpacyNER calls a spaCy entity service over HTTP
type SpacyNER struct {
	client *clients.NERClient
}

func NewSpacyNER(client *clients.NERClient) *SpacyNER {
	return &SpacyNER{client: client}
}

func (s *SpacyNER) Name() string { return "spacy" }

func (s *SpacyNER) Entities(ctx context.Context, text string) ([]Entity, error) {
	ents, err := s.client.Extract(ctx, text)
	if err != nil {
		return nil, err
	}
	out := make([]Entity, 0, len(ents))
	for _, e := range ents {
		out = append(out, Entity{Text: e.Name, Label: e.Label})
	}
	return out, nil
}

// NewNERProvider builds the configured provider. The spaCy service must
// answer its health check.
func NewNERProvider(ctx context.Context, cfg config.NERConfig) (NERProvider, error) {
	switch cfg.Provider {
	case "prose":
		return SharedProseNER(cfg.ModelPath), nil
	case "spacy":
		client := clients.NewNERClient(cfg.SpacyURL)

		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := client.HealthCheck(checkCtx); err != nil {
			return nil, fmt.Errorf("spacy entity service at %s: %w", cfg.SpacyURL, err)
		}
		return NewSpacyNER(client), nil
	default:
		return nil, fmt.Errorf("unknown NER provider %q", cfg.Provider)
	}
}
