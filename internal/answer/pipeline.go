// Package answer implements the retrieval-and-answer decision pipeline:
// retrieve context for a question, decide whether invoking the language
// model is worthwhile, thread the session's conversation history into the
// prompt, and hand back the generated answer together with the exact
// records it was grounded on.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/travel-rag/backend/internal/metrics"
	"github.com/travel-rag/backend/internal/retrieval"
	"github.com/travel-rag/backend/internal/session"
	"github.com/travel-rag/backend/internal/storage/models"
	"github.com/travel-rag/backend/pkg/logger"
)

// FallbackAnswer is returned without invoking the model when retrieval
// finds nothing. With no context the model cannot ground an answer, so
// calling it would spend tokens on a likely hallucination.
const FallbackAnswer = "I don't have information about that in my database. Please try asking about the attractions I know."

const systemPrompt = `You are a helpful travel assistant specializing in tourist attractions.
Use the following context to answer the question. The context contains information about various tourist attractions including their names, locations, and descriptions.

Context:
%s

Instructions:
- Answer based ONLY on the information provided in the context above
- If the context doesn't contain relevant information, say "I don't have information about that in my database"
- Be concise and helpful
- Use the conversation history to understand context and pronouns`

const (
	statusAnswered     = "answered"
	statusShortCircuit = "short_circuit"
	statusError        = "error"
)

// GenerationRequest carries everything the language model needs for one
// answer: the grounding instruction, the replayed transcript, and the
// current question.
type GenerationRequest struct {
	SystemPrompt string
	History      []session.Turn
	Question     string
}

// Generator is the language-model oracle. A failed generation is fatal to
// the current call; implementations must not retry or fabricate output.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// Audit receives one record per answer attempt, including failed ones.
// Failed attempts are audit rows only; they never become session turns.
type Audit interface {
	InsertAnswerRecord(record *models.AnswerRecord) error
	InsertAnswerSource(source *models.AnswerSource) error
}

// Outcome is what a caller gets back: the answer text plus the literal
// retrieval output, in rank order, suitable for citation. SourceRecords
// is empty on the short-circuit path.
type Outcome struct {
	AnswerText    string
	SourceRecords []retrieval.Record
}

type Pipeline struct {
	gateway   retrieval.Gateway
	generator Generator
	sessions  *session.Store
	audit     Audit
	k         int
}

// NewPipeline builds a pipeline with a fixed retrieval fan-out; k is set
// once at construction and never overridden per call. Audit may be nil.
func NewPipeline(gateway retrieval.Gateway, generator Generator, sessions *session.Store, audit Audit, k int) *Pipeline {
	if k <= 0 {
		k = 5
	}
	return &Pipeline{
		gateway:   gateway,
		generator: generator,
		sessions:  sessions,
		audit:     audit,
		k:         k,
	}
}

// Answer runs one question through the pipeline. The question text is
// used verbatim for retrieval; history shapes only the generation prompt.
// History is appended solely after a successful generation, so a failure
// at any stage leaves the transcript exactly as it was.
func (p *Pipeline) Answer(ctx context.Context, question, sessionID string) (*Outcome, error) {
	startTime := time.Now()
	answerID := uuid.New().String()

	logger.Info("Answering question",
		zap.String("answer_id", answerID),
		zap.String("session_id", sessionID),
		zap.String("question", question),
	)

	sess := p.sessions.GetOrCreate(sessionID)
	sess.AcquireAnswer()
	defer sess.ReleaseAnswer()

	history := sess.History()

	records, err := p.gateway.Search(ctx, question, p.k)
	if err != nil {
		p.recordAttempt(answerID, sessionID, question, "", statusError, nil, err, startTime)
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	if len(records) == 0 {
		logger.Info("No records retrieved, skipping generation",
			zap.String("answer_id", answerID),
		)
		metrics.ShortCircuitTotal.Inc()
		p.recordAttempt(answerID, sessionID, question, FallbackAnswer, statusShortCircuit, records, nil, startTime)

		sess.AppendExchange(question, FallbackAnswer)

		return &Outcome{
			AnswerText:    FallbackAnswer,
			SourceRecords: records,
		}, nil
	}

	req := GenerationRequest{
		SystemPrompt: fmt.Sprintf(systemPrompt, contextBlock(records)),
		History:      history,
		Question:     question,
	}

	answerText, err := p.generator.Generate(ctx, req)
	if err != nil {
		p.recordAttempt(answerID, sessionID, question, "", statusError, records, err, startTime)
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	sess.AppendExchange(question, answerText)

	p.recordAttempt(answerID, sessionID, question, answerText, statusAnswered, records, nil, startTime)

	logger.Info("Question answered",
		zap.String("answer_id", answerID),
		zap.Int("sources", len(records)),
		zap.Duration("latency", time.Since(startTime)),
	)

	return &Outcome{
		AnswerText:    answerText,
		SourceRecords: records,
	}, nil
}

// ClearSession removes the session's history. Reports whether anything
// existed to clear.
func (p *Pipeline) ClearSession(sessionID string) bool {
	return p.sessions.Clear(sessionID)
}

// History returns the session's transcript in append order.
func (p *Pipeline) History(sessionID string) []session.Turn {
	return p.sessions.GetOrCreate(sessionID).History()
}

// Sessions lists active session ids.
func (p *Pipeline) Sessions() []string {
	return p.sessions.ListIDs()
}

// ClearAllSessions drops every transcript.
func (p *Pipeline) ClearAllSessions() {
	p.sessions.ClearAll()
}

// contextBlock joins record contents in retrieval rank order, separated
// by blank lines. Whitespace-only content passes through untouched.
func contextBlock(records []retrieval.Record) string {
	parts := make([]string, len(records))
	for i, r := range records {
		parts[i] = r.Content
	}
	return strings.Join(parts, "\n\n")
}

func (p *Pipeline) recordAttempt(answerID, sessionID, question, answerText, status string, records []retrieval.Record, cause error, startTime time.Time) {
	latency := time.Since(startTime)
	metrics.QuestionDuration.Observe(latency.Seconds())
	metrics.QuestionTotal.WithLabelValues(status).Inc()

	if p.audit == nil {
		return
	}

	record := &models.AnswerRecord{
		ID:          answerID,
		SessionID:   sessionID,
		Question:    question,
		Answer:      answerText,
		Status:      status,
		SourceCount: len(records),
		LatencyMS:   int(latency.Milliseconds()),
		CreatedAt:   time.Now(),
	}
	if cause != nil {
		record.ErrorMessage = cause.Error()
	}

	if err := p.audit.InsertAnswerRecord(record); err != nil {
		logger.Warn("Failed to write answer audit record", zap.Error(err))
		return
	}

	for i, r := range records {
		err := p.audit.InsertAnswerSource(&models.AnswerSource{
			AnswerID: answerID,
			Rank:     i + 1,
			PlaceID:  r.Metadata.PlaceID,
			Name:     r.Metadata.Name,
		})
		if err != nil {
			logger.Warn("Failed to write answer source", zap.Error(err))
		}
	}
}
