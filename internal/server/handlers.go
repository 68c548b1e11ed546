package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	apperrors "github.com/adverant/nexus/idverify/internal/errors"
	"github.com/adverant/nexus/idverify/internal/logging"
	"github.com/adverant/nexus/idverify/internal/processor"
	"github.com/adverant/nexus/idverify/internal/storage"
)

const (
	maxDocumentSize = 50 * 1024 * 1024
	auditTimeout    = 5 * time.Second
)

type verificationResponse struct {
	FirstName       string                `json:"first_name"`
	LastName        string                `json:"last_name"`
	BoundingBox     processor.BoundingBox `json:"bonding_box_cords"`
	SimilarityScore int                   `json:"similarity_score"`
}

type answerResponse struct {
	Question string `json:"question"`
	Response string `json:"response"`
}

type documentResponse struct {
	JobID    string `json:"job_id"`
	Filename string `json:"filename"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	start := time.Now()
	log := s.logger.With("request_id", requestID, "http_request_id", middleware.GetReqID(r.Context()))

	data, name, err := readUpload(w, r, s.cfg.MaxUploadSize)
	if err != nil {
		writeError(w, requestID, err)
		return
	}

	if !slices.Contains(s.cfg.AllowedFormats, strings.ToLower(filepath.Ext(name))) {
		writeError(w, requestID, apperrors.NewUnsupportedFormatError(name, s.cfg.AllowedFormats))
		return
	}

	firstName := strings.TrimSpace(r.FormValue("first_name"))
	lastName := strings.TrimSpace(r.FormValue("last_name"))
	if firstName == "" || lastName == "" {
		writeError(w, requestID, apperrors.NewInvalidRequestError("name_pairs should have 'first_name' and 'last_name' as keys"))
		return
	}
	claimed := titleCase(firstName) + " " + titleCase(lastName)

	filename := requestID + "_" + sanitizeFilename(name)
	if err := s.deps.Raw.Put(r.Context(), filename, data); err != nil {
		log.Error("Failed to store upload", "filename", filename, "error", err)
		writeError(w, requestID, apperrors.NewStorageFailedError("put raw", err))
		return
	}

	log.Info("Verifying document", "filename", filename, "bytes", len(data))

	result, err := s.deps.Verifier.Run(r.Context(), filename)
	rec := &storage.VerificationRecord{
		RequestID:   requestID,
		Filename:    filename,
		ClaimedName: claimed,
	}
	if err != nil {
		log.Warn("Verification failed", "filename", filename, "error", err)
		var pe *apperrors.ProcessingError
		if errors.As(err, &pe) {
			rec.ErrorCode = string(pe.Code)
			rec.ErrorDetails = pe.Details
		} else {
			rec.ErrorCode = "INTERNAL_ERROR"
		}
		rec.Duration = time.Since(start)
		s.audit(log, rec)

		writeError(w, requestID, err)
		return
	}

	score := processor.Score(result.FullName, claimed)

	rec.ExtractedName = result.FullName
	rec.Box = flattenBox(result.Box)
	rec.SimilarityScore = score
	rec.Duration = time.Since(start)
	s.audit(log, rec)

	log.Info("Verification complete", "filename", filename, "similarity_score", score, "duration_ms", rec.Duration.Milliseconds())

	writeJson(w, http.StatusOK, verificationResponse{
		FirstName:       result.FirstName,
		LastName:        result.LastName,
		BoundingBox:     result.Box,
		SimilarityScore: score,
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	if s.deps.Answerer == nil {
		writeError(w, requestID, apperrors.NewUnavailableError("question answering"))
		return
	}

	question := r.FormValue("question")
	if strings.TrimSpace(question) == "" {
		writeError(w, requestID, apperrors.NewInvalidRequestError("question is required"))
		return
	}

	answer, err := s.deps.Answerer.Ask(r.Context(), question)
	if err != nil {
		s.logger.Warn("Question answering failed", "request_id", requestID, "error", err)
		writeError(w, requestID, err)
		return
	}

	writeJson(w, http.StatusOK, answerResponse{
		Question: question,
		Response: answer,
	})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	if s.deps.Queue == nil {
		writeError(w, requestID, apperrors.NewUnavailableError("document indexing"))
		return
	}

	data, name, err := readUpload(w, r, maxDocumentSize)
	if err != nil {
		writeError(w, requestID, err)
		return
	}

	if strings.ToLower(filepath.Ext(name)) != ".pdf" {
		writeError(w, requestID, apperrors.NewUnsupportedFormatError(name, []string{".pdf"}))
		return
	}

	filename := requestID + "_" + sanitizeFilename(name)
	if err := s.deps.Raw.Put(r.Context(), filename, data); err != nil {
		s.logger.Error("Failed to store document", "filename", filename, "error", err)
		writeError(w, requestID, apperrors.NewStorageFailedError("put raw", err))
		return
	}

	jobID, err := s.deps.Queue.EnqueueIndex(r.Context(), filename)
	if err != nil {
		s.logger.Error("Failed to enqueue document", "filename", filename, "error", err)
		writeError(w, requestID, apperrors.NewIndexingFailedError(filename, err))
		return
	}

	writeJson(w, http.StatusAccepted, documentResponse{
		JobID:    jobID,
		Filename: filename,
	})
}

// audit records rec without failing the request
func (s *Server) audit(log *logging.Logger, rec *storage.VerificationRecord) {
	if s.deps.Audit == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	if err := s.deps.Audit.RecordVerification(ctx, rec); err != nil {
		log.Warn("Failed to record verification", "error", err)
	}
}

// readUpload reads the multipart "file" field, capped at limit bytes
func readUpload(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, string, error) {
	// multipart overhead on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, limit+64*1024)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, "", apperrors.NewTooLargeError(limit)
		}
		return nil, "", apperrors.NewInvalidRequestError("No file part in the request")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", apperrors.NewInvalidRequestError("No file part in the request")
	}
	defer file.Close()

	if header.Size > limit {
		return nil, "", apperrors.NewTooLargeError(limit)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", apperrors.NewInvalidRequestError("Could not read uploaded file")
	}

	return data, header.Filename, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeFilename reduces a client filename to a safe basename
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, "._")

	if name == "" {
		return "upload"
	}
	return name
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest: "mary-JANE" becomes "Mary-Jane".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToTitle(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

func flattenBox(box processor.BoundingBox) []int64 {
	out := make([]int64, 0, 8)
	for _, p := range box {
		out = append(out, int64(p[0]), int64(p[1]))
	}
	return out
}
