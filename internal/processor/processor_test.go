package processor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/adverant/nexus/idverify/internal/errors"
	"github.com/adverant/nexus/idverify/internal/storage"
)

type fakeOCR struct {
	lines []OCRLine
	err   error
	calls int
}

func (f *fakeOCR) Name() string { return "fake-ocr" }

func (f *fakeOCR) Recognize(ctx context.Context, img *image.Gray) ([]OCRLine, error) {
	f.calls++
	return f.lines, f.err
}

// fakeNER labels every text listed in persons as one PERSON entity
type fakeNER struct {
	persons map[string][]string
	err     error
	seen    []string
}

func (f *fakeNER) Name() string { return "fake-ner" }

func (f *fakeNER) Entities(ctx context.Context, text string) ([]Entity, error) {
	f.seen = append(f.seen, text)
	if f.err != nil {
		return nil, f.err
	}
	var out []Entity
	for _, p := range f.persons[text] {
		out = append(out, Entity{Text: p, Label: LabelPerson})
	}
	out = append(out, Entity{Text: text, Label: "GPE"})
	return out, nil
}

type fakeCorrector struct {
	raw, processed storage.ImageStore
	err            error
}

func (f *fakeCorrector) Correct(ctx context.Context, filename string) error {
	if f.err != nil {
		return f.err
	}
	data, err := f.raw.Get(ctx, filename)
	if err != nil {
		return err
	}
	return f.processed.Put(ctx, filename, data)
}

var (
	box1 = BoundingBox{{1, 1}, {2, 1}, {2, 2}, {1, 2}}
	box2 = BoundingBox{{10, 10}, {20, 10}, {20, 20}, {10, 20}}
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < 8; i++ {
		img.Set(i, i, color.White)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newStore(t *testing.T) *storage.FileStore {
	t.Helper()
	s, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func newExtractor(t *testing.T, ocr OCRProvider, ner NERProvider) (*Extractor, *storage.FileStore) {
	t.Helper()
	raw, processed := newStore(t), newStore(t)
	require.NoError(t, raw.Put(context.Background(), "doc.png", pngBytes(t)))

	e, err := NewExtractor(
		&fakeCorrector{raw: raw, processed: processed},
		NewTextLocator(processed, ocr, DefaultConfidenceThreshold),
		NewNameIdentifier(ner),
	)
	require.NoError(t, err)
	return e, processed
}

func TestCleanText(t *testing.T) {
	tests := map[string]string{
		"j0hn SMITH!":     "Jhn Smith",
		"J0hn":            "Jhn",
		"JANE DOE":        "Jane Doe",
		"o'neil-SMITH":    "Oneilsmith",
		"  maria  garcía": "  Maria  García",
		"1234 !!":         " ",
		"":                "",
	}
	for in, want := range tests {
		require.Equal(t, want, CleanText(in), "input %q", in)
	}
}

func TestLocateFiltersByConfidence(t *testing.T) {
	ctx := context.Background()
	processed := newStore(t)
	require.NoError(t, processed.Put(ctx, "doc.png", pngBytes(t)))

	ocr := &fakeOCR{lines: []OCRLine{
		{Box: box1, Text: "J0hn", Confidence: 0.9},
		{Box: box2, Text: "Sm1th", Confidence: 0.1},
		{Box: box2, Text: "Edge", Confidence: 0.25},
		{Box: box2, Text: "1234", Confidence: 0.99},
	}}

	fragments, err := NewTextLocator(processed, ocr, DefaultConfidenceThreshold).Locate(ctx, "doc.png")
	require.NoError(t, err)
	require.Equal(t, []Fragment{{Text: "Jhn", Box: box1, Confidence: 0.9, Index: 0}}, fragments)
	for _, f := range fragments {
		require.Greater(t, f.Confidence, 0.25)
	}
}

func TestLocateKeepsDuplicateTexts(t *testing.T) {
	ctx := context.Background()
	processed := newStore(t)
	require.NoError(t, processed.Put(ctx, "doc.png", pngBytes(t)))

	ocr := &fakeOCR{lines: []OCRLine{
		{Box: box1, Text: "Jane Doe", Confidence: 0.9},
		{Box: box2, Text: "JANE DOE", Confidence: 0.8},
	}}

	fragments, err := NewTextLocator(processed, ocr, DefaultConfidenceThreshold).Locate(ctx, "doc.png")
	require.NoError(t, err)
	require.Len(t, fragments, 2)
	require.Equal(t, box1, fragments[0].Box)
	require.Equal(t, box2, fragments[1].Box)
}

func TestLocateErrors(t *testing.T) {
	ctx := context.Background()
	processed := newStore(t)
	require.NoError(t, processed.Put(ctx, "bad.png", []byte("garbage")))
	require.NoError(t, processed.Put(ctx, "doc.png", pngBytes(t)))

	locator := NewTextLocator(processed, &fakeOCR{}, DefaultConfidenceThreshold)

	_, err := locator.Locate(ctx, "bad.png")
	require.True(t, apperrors.HasCode(err, apperrors.ErrorImageRead))

	_, err = locator.Locate(ctx, "missing.png")
	require.True(t, apperrors.HasCode(err, apperrors.ErrorImageRead))

	failing := NewTextLocator(processed, &fakeOCR{err: errors.New("model load failed")}, DefaultConfidenceThreshold)
	_, err = failing.Locate(ctx, "doc.png")
	require.True(t, apperrors.HasCode(err, apperrors.ErrorOCRFailed))
	require.ErrorContains(t, err, "model load failed")
}

func TestIdentifyKeepsTwoTokenPersons(t *testing.T) {
	ner := &fakeNER{persons: map[string][]string{
		"Holder": {"John", "John Smith", "John Michael Smith"},
	}}
	fragments := []Fragment{{Text: "Holder", Box: box1, Confidence: 0.9}}

	candidates, err := NewNameIdentifier(ner).Identify(context.Background(), fragments)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "John Smith", candidates[0].Name)
	require.Equal(t, box1, candidates[0].Fragment.Box)
}

func TestIdentifyOrderAndProvenance(t *testing.T) {
	ner := &fakeNER{persons: map[string][]string{
		"Jane Doe":   {"Jane Doe"},
		"Mark Twain": {"Mark Twain"},
	}}
	fragments := []Fragment{
		{Text: "Passport", Box: box2, Index: 0},
		{Text: "Jane Doe", Box: box1, Index: 1},
		{Text: "Mark Twain", Box: box2, Index: 2},
		{Text: "Jane Doe", Box: box2, Index: 3},
	}

	candidates, err := NewNameIdentifier(ner).Identify(context.Background(), fragments)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	require.Equal(t, "Jane Doe", candidates[0].Name)
	require.Equal(t, 1, candidates[0].Fragment.Index)
	require.Equal(t, box1, candidates[0].Fragment.Box)
	require.Equal(t, "Mark Twain", candidates[1].Name)
	require.Equal(t, []string{"Passport", "Jane Doe", "Mark Twain"}, ner.seen, "duplicate text is scored once")
}

func TestIdentifyErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewNameIdentifier(&fakeNER{}).Identify(ctx, []Fragment{{Text: "Republic"}})
	require.True(t, apperrors.HasCode(err, apperrors.ErrorNoNameFound))

	_, err = NewNameIdentifier(&fakeNER{}).Identify(ctx, nil)
	require.True(t, apperrors.HasCode(err, apperrors.ErrorNoNameFound))

	_, err = NewNameIdentifier(&fakeNER{err: errors.New("boom")}).Identify(ctx, []Fragment{{Text: "X"}})
	require.True(t, apperrors.HasCode(err, apperrors.ErrorNERFailed))
}

func TestExtractSingleCandidate(t *testing.T) {
	ocr := &fakeOCR{lines: []OCRLine{
		{Box: box2, Text: "IDENTITY CARD", Confidence: 0.95},
		{Box: box1, Text: "Jane Doe", Confidence: 0.9},
	}}
	ner := &fakeNER{persons: map[string][]string{"Jane Doe": {"Jane Doe"}}}

	e, _ := newExtractor(t, ocr, ner)
	result, err := e.Run(context.Background(), "doc.png")
	require.NoError(t, err)
	require.Equal(t, &ExtractionResult{
		FullName:  "Jane Doe",
		FirstName: "Jane",
		LastName:  "Doe",
		Box:       BoundingBox{{1, 1}, {2, 1}, {2, 2}, {1, 2}},
	}, result)
}

func TestExtractUsesCandidateOwnBox(t *testing.T) {
	// the same name twice; the first fragment's box must win
	ocr := &fakeOCR{lines: []OCRLine{
		{Box: box1, Text: "maria garcia", Confidence: 0.9},
		{Box: box2, Text: "MARIA GARCIA", Confidence: 0.9},
	}}
	ner := &fakeNER{persons: map[string][]string{"Maria Garcia": {"Maria Garcia"}}}

	e, _ := newExtractor(t, ocr, ner)
	result, err := e.Run(context.Background(), "doc.png")
	require.NoError(t, err)
	require.Equal(t, box1, result.Box)
	require.Equal(t, "Maria", result.FirstName)
	require.Equal(t, "Garcia", result.LastName)
	require.Equal(t, 100, Score(result.FullName, "Maria Garcia"))
}

func TestExtractNoCandidates(t *testing.T) {
	ocr := &fakeOCR{lines: []OCRLine{{Box: box1, Text: "REPUBLIC", Confidence: 0.9}}}

	e, _ := newExtractor(t, ocr, &fakeNER{})
	_, err := e.Run(context.Background(), "doc.png")
	require.Error(t, err)
	require.True(t, errors.Is(err, &apperrors.ProcessingError{Code: apperrors.ErrorNoNameFound}))
}

func TestExtractPropagatesCorrectorError(t *testing.T) {
	raw, processed := newStore(t), newStore(t)
	e, err := NewExtractor(
		&fakeCorrector{raw: raw, processed: processed, err: apperrors.NewImageReadError("doc.png", nil)},
		NewTextLocator(processed, &fakeOCR{}, DefaultConfidenceThreshold),
		NewNameIdentifier(&fakeNER{}),
	)
	require.NoError(t, err)

	_, err = e.Run(context.Background(), "doc.png")
	require.True(t, apperrors.HasCode(err, apperrors.ErrorImageRead))
}

func TestNewExtractorRequiresStages(t *testing.T) {
	_, err := NewExtractor(nil, nil, nil)
	require.Error(t, err)
}

func TestScore(t *testing.T) {
	require.Equal(t, 100, Score("Jane Doe", "Jane Doe"))
	require.Equal(t, 100, Score("", ""))
	require.Equal(t, 0, Score("", "Jane"))
	require.Equal(t, 75, Score("Jane Doe", "John Doe"))
	require.Equal(t, 88, Score("Jane Doe", "jane Doe"), "case sensitive, 87.5 rounds to even")
	require.Equal(t, 94, Score("Jane Doe", "Jane  Doe"), "whitespace sensitive")
	require.Equal(t, 83, Score("Maria Garcia", "Mario Garcai"))
	require.Equal(t, Score("Jane Doe", "John Doe"), Score("John Doe", "Jane Doe"))

	got := Score("Jane Doe", "John Doe")
	require.Greater(t, got, 0)
	require.Less(t, got, 100)
}
