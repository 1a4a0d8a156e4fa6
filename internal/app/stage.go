package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/randomtoy/oraculum/internal/domain"
	"github.com/randomtoy/oraculum/internal/ports"
	"github.com/randomtoy/oraculum/internal/prompts"
)

// stageRunner executes one pipeline stage: render the stage template against
// the accumulated context, call the model, parse the response per the
// stage's shape. Every error it returns carries a *domain.Failure.
type stageRunner struct {
	prompts *prompts.Store
	llm     ports.Completer
	logger  *slog.Logger
}

func (r *stageRunner) run(ctx context.Context, def domain.StageDefinition, sc *domain.SessionContext, tariff domain.Tariff) (domain.StageOutput, error) {
	data := promptData(sc)

	system, err := r.prompts.Render(prompts.PersonaTemplate, data)
	if err != nil {
		return domain.StageOutput{}, domain.NewFailure(domain.FailureTemplate, err)
	}
	prompt, err := r.prompts.Render(def.Template, data)
	if err != nil {
		return domain.StageOutput{}, domain.NewFailure(domain.FailureTemplate, err)
	}

	r.logger.DebugContext(ctx, "stage prompt rendered",
		"stage", def.Name, "prompt_len", len(prompt), "context_entries", sc.Len())

	raw, err := r.llm.Complete(ctx, ports.LLMRequest{
		Model:  tariff.Model,
		System: system,
		Prompt: prompt,
		Params: ports.GenerationParams{
			Temperature: tariff.Temperature,
			MaxTokens:   tariff.MaxTokens,
		},
	})
	if err != nil {
		return domain.StageOutput{}, err
	}

	out := domain.StageOutput{Stage: def.Name, Raw: raw, Text: raw}
	switch def.Shape {
	case domain.ShapeQuestionList:
		layout, lerr := domain.LayoutFor(sc.Spread.Type)
		if lerr != nil {
			return domain.StageOutput{}, domain.NewFailure(domain.FailureParse, lerr)
		}
		questions := parseQuestions(raw, layout.MaxQuestions)
		if len(questions) == 0 {
			return domain.StageOutput{}, domain.NewFailure(domain.FailureParse,
				fmt.Errorf("stage %s: no valid questions in response", def.Name))
		}
		out.Questions = questions
	case domain.ShapeInterpretation:
		out.Text = parseInterpretation(raw)
	}

	return out, nil
}

// promptData builds the placeholder map for template rendering: the profile
// and spread, plus one key per recorded stage output. A template that names
// a stage not yet in the context fails to render, which keeps any ordering
// gap from silently producing a half-empty prompt.
func promptData(sc *domain.SessionContext) map[string]any {
	layout, _ := domain.LayoutFor(sc.Spread.Type)
	data := map[string]any{
		"name":          sc.Profile.Name,
		"age":           sc.Profile.Age,
		"question":      sc.Profile.Question,
		"date":          time.Now().Format("2 January 2006"),
		"spread_name":   sc.Spread.Name,
		"cards":         formatCards(sc.Spread.Cards),
		"max_questions": layout.MaxQuestions,
	}
	for _, entry := range sc.Entries() {
		data[entry.Stage] = entry.Text
	}
	return data
}

func formatCards(cards []domain.DrawnCard) string {
	var b strings.Builder
	for i, c := range cards {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s: %s (%s)\n", c.PositionLabel, c.Name, c.Orientation)
		fmt.Fprintf(&b, "  Keywords: %s\n", strings.Join(c.Keywords, ", "))
		if len(c.Light) > 0 {
			fmt.Fprintf(&b, "  Light: %s\n", strings.Join(c.Light, " / "))
		}
		if len(c.Shadow) > 0 {
			fmt.Fprintf(&b, "  Shadow: %s\n", strings.Join(c.Shadow, " / "))
		}
		fmt.Fprintf(&b, "  Meaning: %s", c.Short)
	}
	return b.String()
}

// formatAnswers renders the clarifying Q&A exchange for the context entry.
func formatAnswers(questions, answers []string) string {
	var b strings.Builder
	for i, q := range questions {
		answer := ""
		if i < len(answers) {
			answer = answers[i]
		}
		fmt.Fprintf(&b, "Question %d: %s\nAnswer: %s\n\n", i+1, q, answer)
	}
	return strings.TrimSpace(b.String())
}
