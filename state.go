package sqlflow

import (
	"log/slog"

	"github.com/nexxia-ai/sqlflow/ai"
)

// Stage identifies one node of the pipeline state machine.
type Stage string

const (
	StageTranslateInput  Stage = "translate_input"
	StagePreSafetyCheck  Stage = "pre_safety_check"
	StageSchemaExtract   Stage = "schema_extract"
	StageContextCheck    Stage = "context_check"
	StageGenerate        Stage = "generate"
	StagePostSafetyCheck Stage = "post_safety_check"
	StageSQLCheck        Stage = "sql_check"
	StageRunQuery        Stage = "run_query"
	StageTranslateAnswer Stage = "translate_answer"
	StageEnd             Stage = "end"
)

// Candidate is one generated SQL statement plus its natural-language
// description. A retry produces a brand-new Candidate; there is no
// incremental repair of a previous one.
type Candidate struct {
	Description string `json:"description"`
	SQLCode     string `json:"sql_code"`
}

// State is the single mutable record threaded through every stage of one
// pipeline run. It is owned by the run and discarded when the run ends.
type State struct {
	// Transcript is the append-only conversation log. The last assistant
	// entry doubles as the user-facing error message when the run fails.
	Transcript []ai.Message

	// Iterations counts generation attempts
	Iterations int

	// Err marks the current branch as failed; downstream stages on the
	// branch are skipped
	Err bool

	// Candidate holds the latest generated SQL, nil before the first
	// generation attempt
	Candidate *Candidate

	// Rows and Columns hold the result set of a SELECT, nil when no query ran
	Rows    [][]any
	Columns []string

	// NoRowsFound distinguishes "query ran, zero rows" from "query not run"
	NoRowsFound bool

	// TranslatedQuestion is the user question rewritten into English
	TranslatedQuestion string

	// SchemaText is the rendered database schema, computed once per run
	SchemaText string

	// Answer is the final human-readable answer in the user's language
	Answer string

	// log carries the run-scoped logger so stages tag entries with the run ID
	log *slog.Logger
}

func (s *State) appendUser(text string) {
	s.Transcript = append(s.Transcript, ai.UserMessage{Role: ai.UserRole, Content: text})
}

func (s *State) appendAssistant(text string) {
	s.Transcript = append(s.Transcript, ai.AIMessage{Role: ai.AssistantRole, Content: text})
}

// LastMessage returns the newest transcript entry, or empty values for an
// empty transcript.
func (s *State) LastMessage() (ai.MessageRole, string) {
	if len(s.Transcript) == 0 {
		return "", ""
	}
	return s.Transcript[len(s.Transcript)-1].Value()
}

// Decision is the outcome of the retry/termination check.
type Decision string

const (
	DecisionExecute   Decision = "execute"
	DecisionRetry     Decision = "retry"
	DecisionTerminate Decision = "terminate"
)

// decide resolves the only cycle in the pipeline graph: proceed when the
// branch is clean, retry generation while attempts remain, give up once the
// iteration budget is spent.
func decide(errFlag bool, iterations, maxIterations int) Decision {
	if !errFlag {
		return DecisionExecute
	}
	if iterations >= maxIterations {
		return DecisionTerminate
	}
	return DecisionRetry
}

// nextStage is the pure transition function of the state machine. All
// branching lives here; the stage functions only mutate state.
func nextStage(stage Stage, s *State, maxIterations int) Stage {
	switch stage {
	case StageTranslateInput:
		return StagePreSafetyCheck

	case StagePreSafetyCheck:
		if s.Err {
			return StageEnd
		}
		return StageSchemaExtract

	case StageSchemaExtract:
		return StageContextCheck

	case StageContextCheck:
		if s.Err {
			return StageEnd
		}
		return StageGenerate

	case StageGenerate:
		return StagePostSafetyCheck

	case StagePostSafetyCheck:
		switch decide(s.Err, s.Iterations, maxIterations) {
		case DecisionExecute:
			return StageSQLCheck
		case DecisionRetry:
			return StageGenerate
		default:
			return StageEnd
		}

	case StageSQLCheck:
		switch decide(s.Err, s.Iterations, maxIterations) {
		case DecisionExecute:
			return StageRunQuery
		case DecisionRetry:
			return StageGenerate
		default:
			return StageEnd
		}

	case StageRunQuery:
		return StageTranslateAnswer

	case StageTranslateAnswer:
		return StageEnd

	default:
		return StageEnd
	}
}
