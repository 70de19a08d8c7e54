package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/travel-rag/backend/internal/retrieval"
	"github.com/travel-rag/backend/internal/session"
	"github.com/travel-rag/backend/internal/storage/models"
)

type stubGateway struct {
	records []retrieval.Record
	err     error
	calls   int
	lastK   int
	lastQ   string
}

func (g *stubGateway) Search(_ context.Context, query string, k int) ([]retrieval.Record, error) {
	g.calls++
	g.lastK = k
	g.lastQ = query
	return g.records, g.err
}

type stubGenerator struct {
	answer   string
	err      error
	calls    int
	requests []GenerationRequest
}

func (g *stubGenerator) Generate(_ context.Context, req GenerationRequest) (string, error) {
	g.calls++
	g.requests = append(g.requests, req)
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

type memoryAudit struct {
	records []models.AnswerRecord
	sources []models.AnswerSource
}

func (a *memoryAudit) InsertAnswerRecord(r *models.AnswerRecord) error {
	a.records = append(a.records, *r)
	return nil
}

func (a *memoryAudit) InsertAnswerSource(s *models.AnswerSource) error {
	a.sources = append(a.sources, *s)
	return nil
}

func record(placeID, name, content string) retrieval.Record {
	return retrieval.Record{
		Content:  content,
		Metadata: retrieval.Metadata{PlaceID: placeID, Name: name},
	}
}

func TestAnswerShortCircuitsOnEmptyRetrieval(t *testing.T) {
	gateway := &stubGateway{records: nil}
	generator := &stubGenerator{answer: "should never appear"}
	sessions := session.NewStore()
	pipeline := NewPipeline(gateway, generator, sessions, nil, 5)

	outcome, err := pipeline.Answer(context.Background(), "anything about mars", "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if generator.calls != 0 {
		t.Fatalf("generator must not run when retrieval is empty, got %d calls", generator.calls)
	}
	if outcome.AnswerText != FallbackAnswer {
		t.Errorf("got answer %q, want the fallback", outcome.AnswerText)
	}
	if len(outcome.SourceRecords) != 0 {
		t.Errorf("expected no source records, got %d", len(outcome.SourceRecords))
	}

	turns := sessions.GetOrCreate("s1").History()
	if len(turns) != 2 {
		t.Fatalf("expected the fallback exchange in history, got %d turns", len(turns))
	}
	if turns[1].Content != FallbackAnswer {
		t.Errorf("assistant turn = %q, want the fallback", turns[1].Content)
	}
}

func TestAnswerGeneratesFromRetrievedContext(t *testing.T) {
	records := []retrieval.Record{
		record("p1", "Space Needle", "Name: Space Needle\nDescription: observation tower"),
		record("p2", "Pike Place Market", "Name: Pike Place Market\nDescription: public market"),
		record("p3", "Chihuly Garden", "Name: Chihuly Garden\nDescription: glass art"),
	}
	gateway := &stubGateway{records: records}
	generator := &stubGenerator{answer: "The Space Needle is an observation tower."}
	sessions := session.NewStore()
	audit := &memoryAudit{}
	pipeline := NewPipeline(gateway, generator, sessions, audit, 5)

	outcome, err := pipeline.Answer(context.Background(), "What is the Space Needle?", "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if generator.calls != 1 {
		t.Fatalf("expected exactly one generation, got %d", generator.calls)
	}
	if gateway.lastQ != "What is the Space Needle?" {
		t.Errorf("retrieval query = %q, want the question verbatim", gateway.lastQ)
	}
	if gateway.lastK != 5 {
		t.Errorf("retrieval k = %d, want 5", gateway.lastK)
	}

	prompt := generator.requests[0].SystemPrompt
	wantOrder := "observation tower"
	if !strings.Contains(prompt, wantOrder) {
		t.Errorf("system prompt missing record content %q", wantOrder)
	}
	if strings.Index(prompt, "observation tower") > strings.Index(prompt, "public market") {
		t.Error("record contents must appear in retrieval rank order")
	}

	if len(outcome.SourceRecords) != 3 {
		t.Fatalf("expected 3 source records, got %d", len(outcome.SourceRecords))
	}
	for i, rec := range outcome.SourceRecords {
		if rec != records[i] {
			t.Errorf("source record %d altered: got %+v", i, rec)
		}
	}

	turns := sessions.GetOrCreate("s1").History()
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns after one answer, got %d", len(turns))
	}

	if len(audit.records) != 1 || audit.records[0].Status != "answered" {
		t.Fatalf("expected one answered audit record, got %+v", audit.records)
	}
	if len(audit.sources) != 3 || audit.sources[0].Rank != 1 || audit.sources[2].PlaceID != "p3" {
		t.Fatalf("audit sources wrong: %+v", audit.sources)
	}
}

func TestAnswerThreadsHistoryIntoFollowUps(t *testing.T) {
	gateway := &stubGateway{records: []retrieval.Record{record("p1", "Space Needle", "tower content")}}
	generator := &stubGenerator{answer: "It is 184 meters tall."}
	sessions := session.NewStore()
	pipeline := NewPipeline(gateway, generator, sessions, nil, 5)

	if _, err := pipeline.Answer(context.Background(), "Tell me about the Space Needle", "s1"); err != nil {
		t.Fatalf("first answer failed: %v", err)
	}
	if _, err := pipeline.Answer(context.Background(), "How tall is it?", "s1"); err != nil {
		t.Fatalf("second answer failed: %v", err)
	}

	if len(generator.requests) != 2 {
		t.Fatalf("expected 2 generations, got %d", len(generator.requests))
	}

	first := generator.requests[0]
	if len(first.History) != 0 {
		t.Errorf("first generation should see empty history, got %d turns", len(first.History))
	}

	second := generator.requests[1]
	if len(second.History) != 2 {
		t.Fatalf("follow-up should see the first exchange, got %d turns", len(second.History))
	}
	if second.History[0].Role != session.RoleHuman || second.History[0].Content != "Tell me about the Space Needle" {
		t.Errorf("history[0] = %+v", second.History[0])
	}
	if second.History[1].Role != session.RoleAssistant {
		t.Errorf("history[1] role = %q", second.History[1].Role)
	}
	if second.Question != "How tall is it?" {
		t.Errorf("follow-up question = %q", second.Question)
	}
}

func TestAnswerGenerationFailureLeavesHistoryUntouched(t *testing.T) {
	gateway := &stubGateway{records: []retrieval.Record{record("p1", "Space Needle", "tower content")}}
	generator := &stubGenerator{err: errors.New("model overloaded")}
	sessions := session.NewStore()
	audit := &memoryAudit{}
	pipeline := NewPipeline(gateway, generator, sessions, audit, 5)

	_, err := pipeline.Answer(context.Background(), "What is the Space Needle?", "s1")
	if err == nil {
		t.Fatal("expected the generation error to surface")
	}

	if turns := sessions.GetOrCreate("s1").History(); len(turns) != 0 {
		t.Fatalf("history must stay empty after a failed generation, got %d turns", len(turns))
	}

	if len(audit.records) != 1 || audit.records[0].Status != "error" {
		t.Fatalf("expected one error audit record, got %+v", audit.records)
	}
	if audit.records[0].ErrorMessage == "" {
		t.Error("error audit record should carry the cause")
	}
}

func TestAnswerRetrievalFailurePropagates(t *testing.T) {
	gateway := &stubGateway{err: retrieval.ErrIndexUnavailable}
	generator := &stubGenerator{answer: "unused"}
	sessions := session.NewStore()
	pipeline := NewPipeline(gateway, generator, sessions, nil, 5)

	_, err := pipeline.Answer(context.Background(), "anything", "s1")
	if !errors.Is(err, retrieval.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable in the chain, got %v", err)
	}

	if generator.calls != 0 {
		t.Error("generator must not run when retrieval fails")
	}
	if turns := sessions.GetOrCreate("s1").History(); len(turns) != 0 {
		t.Errorf("history must stay empty after a retrieval failure, got %d turns", len(turns))
	}
}

func TestNewPipelineDefaultsFanOut(t *testing.T) {
	gateway := &stubGateway{records: []retrieval.Record{record("p1", "x", "y")}}
	pipeline := NewPipeline(gateway, &stubGenerator{answer: "ok"}, session.NewStore(), nil, 0)

	if _, err := pipeline.Answer(context.Background(), "q", "s"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gateway.lastK != 5 {
		t.Errorf("default fan-out = %d, want 5", gateway.lastK)
	}
}

func TestAnswerConversationScenario(t *testing.T) {
	answered := "The Space Needle is a 184m observation tower in Seattle."
	gateway := &stubGateway{records: []retrieval.Record{record("p1", "Space Needle", "tower content")}}
	generator := &stubGenerator{answer: answered}
	sessions := session.NewStore()
	pipeline := NewPipeline(gateway, generator, sessions, nil, 5)

	outcome, err := pipeline.Answer(context.Background(), "What is the Space Needle?", "trip-planning")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.AnswerText != answered {
		t.Errorf("answer = %q", outcome.AnswerText)
	}

	turns := pipeline.History("trip-planning")
	if len(turns) != 2 {
		t.Fatalf("expected exactly 2 turns, got %d", len(turns))
	}
	if turns[0].Content != "What is the Space Needle?" || turns[1].Content != answered {
		t.Errorf("transcript wrong: %+v", turns)
	}

	if !pipeline.ClearSession("trip-planning") {
		t.Fatal("expected the session to exist before clearing")
	}
	if len(pipeline.History("trip-planning")) != 0 {
		t.Fatal("cleared session should restart empty")
	}
}
