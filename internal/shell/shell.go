package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/travel-rag/backend/internal/answer"
	"github.com/travel-rag/backend/internal/citation"
	"github.com/travel-rag/backend/internal/session"
)

// previewSources caps how many sources the compact preview shows after
// each answer.
const previewSources = 3

// Shell is the line-oriented conversational front end. It reads
// questions from in, answers them through the pipeline within a single
// session, and prints answers with a compact source preview to out.
type Shell struct {
	pipeline  *answer.Pipeline
	sessionID string
	in        io.Reader
	out       io.Writer
}

func New(pipeline *answer.Pipeline, sessionID string, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		pipeline:  pipeline,
		sessionID: sessionID,
		in:        in,
		out:       out,
	}
}

// Run drives the interactive loop until EOF or a quit command. Turns
// are numbered; control commands and blank lines do not consume a turn
// number.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, "Travel attraction assistant. Ask about attractions, or type 'quit' to exit.")
	fmt.Fprintln(s.out, "Commands: quit, exit, clear, history")
	fmt.Fprintln(s.out)

	scanner := bufio.NewScanner(s.in)
	turn := 0

	for {
		fmt.Fprintf(s.out, "[%d]> ", turn+1)
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "quit", "exit":
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		case "clear":
			s.pipeline.ClearSession(s.sessionID)
			fmt.Fprintln(s.out, "Conversation history cleared.")
			continue
		case "history":
			s.printHistory()
			continue
		}

		turn++
		if err := s.answerOnce(ctx, line); err != nil {
			fmt.Fprintf(s.out, "Error: %v\n\n", err)
		}
	}
}

// AskOnce answers a single question and prints the full source listing.
// Used by the non-interactive ask command.
func (s *Shell) AskOnce(ctx context.Context, question string) error {
	outcome, err := s.pipeline.Answer(ctx, question, s.sessionID)
	if err != nil {
		return err
	}

	fmt.Fprintln(s.out, outcome.AnswerText)
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, citation.FormatDetailed(outcome.SourceRecords))
	return nil
}

func (s *Shell) answerOnce(ctx context.Context, question string) error {
	outcome, err := s.pipeline.Answer(ctx, question, s.sessionID)
	if err != nil {
		return err
	}

	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, outcome.AnswerText)

	if len(outcome.SourceRecords) > 0 {
		preview := outcome.SourceRecords
		if len(preview) > previewSources {
			preview = preview[:previewSources]
		}
		fmt.Fprintln(s.out)
		fmt.Fprintln(s.out, "Sources:")
		fmt.Fprintln(s.out, citation.FormatCompact(preview))
	}
	fmt.Fprintln(s.out)

	return nil
}

func (s *Shell) printHistory() {
	turns := s.pipeline.History(s.sessionID)
	if len(turns) == 0 {
		fmt.Fprintln(s.out, "No conversation history yet.")
		return
	}

	for _, t := range turns {
		label := "You"
		if t.Role == session.RoleAssistant {
			label = "Assistant"
		}
		fmt.Fprintf(s.out, "%s: %s\n", label, t.Content)
	}
}
