package domain

// Profile carries what the querent told us about themselves.
type Profile struct {
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Question string `json:"question"`
}

// OutputShape declares how a stage's LLM response is parsed.
type OutputShape string

const (
	ShapeFreeText       OutputShape = "free_text"
	ShapeQuestionList   OutputShape = "question_list"
	ShapeInterpretation OutputShape = "interpretation"
)

// StageDefinition describes one step of the interpretation pipeline.
type StageDefinition struct {
	Name     string
	Label    string
	Template string
	Shape    OutputShape
	// UserVisible marks stages whose output is shown to the user rather
	// than only folded into the context.
	UserVisible bool
}

// AnswersStage is the reserved context entry name for the user's answers to
// the clarifying questions. It is not itself a pipeline stage.
const AnswersStage = "user_answers"

// InterpretationStages returns the ordered pipeline. Each stage is one LLM
// call; its prompt depends on every prior output, so the order is fixed.
func InterpretationStages() []StageDefinition {
	return []StageDefinition{
		{Name: "card_meanings", Label: "Reading the cards", Template: "card_meanings", Shape: ShapeFreeText},
		{Name: "situation_analysis", Label: "Considering your situation", Template: "situation_analysis", Shape: ShapeFreeText},
		{Name: "clarifying_questions", Label: "Preparing questions for you", Template: "clarifying_questions", Shape: ShapeQuestionList, UserVisible: true},
		{Name: "context_integration", Label: "Weaving in your answers", Template: "context_integration", Shape: ShapeFreeText},
		{Name: "deep_synthesis", Label: "Connecting the threads", Template: "deep_synthesis", Shape: ShapeFreeText},
		{Name: "final_reading", Label: "Writing your reading", Template: "final_reading", Shape: ShapeInterpretation, UserVisible: true},
	}
}

// StageOutput is one entry of the session context: a stage's raw LLM
// response and its parsed form.
type StageOutput struct {
	Stage     string   `json:"stage"`
	Raw       string   `json:"raw"`
	Text      string   `json:"text"`
	Questions []string `json:"questions,omitempty"`
}

// SessionContext is the accumulating state of one reading. It grows
// monotonically: each stage appends one entry, nothing is ever removed or
// edited. Exactly one in-flight orchestrator run owns it.
type SessionContext struct {
	Profile Profile
	Spread  Spread

	entries []StageOutput
}

func NewSessionContext(profile Profile, spread Spread) *SessionContext {
	return &SessionContext{Profile: profile, Spread: spread}
}

// Append records a stage output. Duplicate stage names are rejected: the
// pipeline never runs a stage twice.
func (c *SessionContext) Append(out StageOutput) error {
	for _, e := range c.entries {
		if e.Stage == out.Stage {
			return ErrDuplicateStage
		}
	}
	c.entries = append(c.entries, out)
	return nil
}

// Entries returns a copy of the accumulated outputs, in append order.
func (c *SessionContext) Entries() []StageOutput {
	out := make([]StageOutput, len(c.entries))
	copy(out, c.entries)
	return out
}

// Output returns the entry for a stage name, if recorded.
func (c *SessionContext) Output(stage string) (StageOutput, bool) {
	for _, e := range c.entries {
		if e.Stage == stage {
			return e, true
		}
	}
	return StageOutput{}, false
}

// Len reports how many entries have been recorded.
func (c *SessionContext) Len() int { return len(c.entries) }

// SessionState is the orchestrator's state machine position.
type SessionState string

const (
	StatePending         SessionState = "pending"
	StateAuthorizing     SessionState = "authorizing"
	StateRunning         SessionState = "running"
	StateAwaitingAnswers SessionState = "awaiting_answers"
	StateFinalizing      SessionState = "finalizing"
	StateCompleted       SessionState = "completed"
	StateFailed          SessionState = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s SessionState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ProgressEvent is emitted after each successful stage.
type ProgressEvent struct {
	StageIndex  int    `json:"stage_index"`
	TotalStages int    `json:"total_stages"`
	Label       string `json:"label"`
	Percent     int    `json:"percent"`
}

// QA pairs a clarifying question with the user's answer.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SessionOutcome is the terminal value of a reading: the interpretation on
// success, or a failure classification with a user-facing message. Raw
// backend errors never appear here.
type SessionOutcome struct {
	Completed      bool        `json:"completed"`
	Interpretation string      `json:"interpretation,omitempty"`
	Exchanged      []QA        `json:"exchanged,omitempty"`
	FailureKind    FailureKind `json:"failure_kind,omitempty"`
	Message        string      `json:"message,omitempty"`
	Balance        int         `json:"balance"`
}
