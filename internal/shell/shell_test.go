package shell

import (
	"context"
	"strings"
	"testing"

	"github.com/travel-rag/backend/internal/answer"
	"github.com/travel-rag/backend/internal/retrieval"
	"github.com/travel-rag/backend/internal/session"
)

type fixedGateway struct {
	records []retrieval.Record
}

func (g *fixedGateway) Search(_ context.Context, _ string, _ int) ([]retrieval.Record, error) {
	return g.records, nil
}

type fixedGenerator struct {
	answer string
}

func (g *fixedGenerator) Generate(_ context.Context, _ answer.GenerationRequest) (string, error) {
	return g.answer, nil
}

func namedRecord(name string) retrieval.Record {
	return retrieval.Record{
		Content:  "content " + name,
		Metadata: retrieval.Metadata{PlaceID: name, Name: name, City: "Seattle", State: "WA"},
	}
}

func testPipeline(records []retrieval.Record, answerText string) *answer.Pipeline {
	return answer.NewPipeline(
		&fixedGateway{records: records},
		&fixedGenerator{answer: answerText},
		session.NewStore(),
		nil,
		5,
	)
}

func TestRunQuit(t *testing.T) {
	var out strings.Builder
	sh := New(testPipeline(nil, ""), "s1", strings.NewReader("quit\n"), &out)

	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "Goodbye!") {
		t.Errorf("missing farewell:\n%s", out.String())
	}
}

func TestRunAnswersAndNumbersTurns(t *testing.T) {
	records := []retrieval.Record{namedRecord("Space Needle")}
	input := "What is the Space Needle?\nHow tall is it?\nexit\n"

	var out strings.Builder
	sh := New(testPipeline(records, "It is a tower."), "s1", strings.NewReader(input), &out)

	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := out.String()
	if strings.Count(text, "It is a tower.") != 2 {
		t.Errorf("expected two answers:\n%s", text)
	}
	if !strings.Contains(text, "[1]> ") || !strings.Contains(text, "[2]> ") || !strings.Contains(text, "[3]> ") {
		t.Errorf("turn numbering wrong:\n%s", text)
	}
}

func TestRunControlCommandsDoNotAdvanceTurns(t *testing.T) {
	records := []retrieval.Record{namedRecord("Space Needle")}
	input := "history\n\nWhat is it?\nquit\n"

	var out strings.Builder
	sh := New(testPipeline(records, "An answer."), "s1", strings.NewReader(input), &out)

	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := out.String()
	// history, the blank line and the question all show prompt [1];
	// only the answered question advances to [2].
	if strings.Count(text, "[1]> ") != 3 {
		t.Errorf("control commands must not consume turn numbers:\n%s", text)
	}
	if !strings.Contains(text, "No conversation history yet.") {
		t.Errorf("history on empty session wrong:\n%s", text)
	}
}

func TestRunClearResetsHistory(t *testing.T) {
	records := []retrieval.Record{namedRecord("Space Needle")}
	input := "First question\nclear\nhistory\nquit\n"

	var out strings.Builder
	sh := New(testPipeline(records, "Answer."), "s1", strings.NewReader(input), &out)

	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "Conversation history cleared.") {
		t.Errorf("clear feedback missing:\n%s", text)
	}
	if !strings.Contains(text, "No conversation history yet.") {
		t.Errorf("history should be empty after clear:\n%s", text)
	}
}

func TestRunCapsSourcePreview(t *testing.T) {
	records := []retrieval.Record{
		namedRecord("One"),
		namedRecord("Two"),
		namedRecord("Three"),
		namedRecord("Four"),
		namedRecord("Five"),
	}

	var out strings.Builder
	sh := New(testPipeline(records, "Answer."), "s1", strings.NewReader("question\nquit\n"), &out)

	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "[3] Three") {
		t.Errorf("third source missing:\n%s", text)
	}
	if strings.Contains(text, "[4] Four") {
		t.Errorf("preview must stop at three sources:\n%s", text)
	}
}

func TestAskOncePrintsDetailedSources(t *testing.T) {
	records := []retrieval.Record{namedRecord("Space Needle")}

	var out strings.Builder
	sh := New(testPipeline(records, "A tower."), "s1", strings.NewReader(""), &out)

	if err := sh.AskOnce(context.Background(), "What is it?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "A tower.") {
		t.Errorf("answer missing:\n%s", text)
	}
	if !strings.Contains(text, "Source 1: Space Needle") {
		t.Errorf("detailed sources missing:\n%s", text)
	}
}
