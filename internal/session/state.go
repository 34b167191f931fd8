package session

import "github.com/coral-ai/proctor/internal/model"

// State tracks the progress of one exam attempt. It lives for the duration
// of a room session and is never persisted itself; only the derived
// transcript and completion status leave the process.
type State struct {
	Exam         *model.Exam
	SubmissionID string
	StudentName  string

	// CurrentQuestionIndex is the cursor into Exam.Questions. It only
	// moves forward.
	CurrentQuestionIndex int

	// QuestionsAsked counts distinct questions presented; repeats granted
	// through the another-chance sub-dialog do not increment it.
	QuestionsAsked int

	DataReceived  bool
	ExamCompleted bool

	// NeedsAnotherChance means the current question is re-presented
	// verbatim instead of advancing.
	NeedsAnotherChance bool

	// WaitingForChanceResponse means the last agent utterance was the
	// yes/no chance offer; the next utterance is that answer, not an
	// exam answer.
	WaitingForChanceResponse bool

	// CurrentQuestionText holds the exact prompt last spoken as a
	// question, reused when granting another chance.
	CurrentQuestionText string
}

// NewState returns the initial state for a fresh room session.
func NewState() *State {
	return &State{}
}

// Phase is the derived state-machine phase, used for logging.
type Phase string

const (
	PhaseAwaitingData   Phase = "awaiting_data"
	PhasePresenting     Phase = "presenting"
	PhaseChanceDecision Phase = "awaiting_chance_decision"
	PhaseCompleted      Phase = "completed"
)

// Phase derives the state-machine phase from the flags.
func (s *State) Phase() Phase {
	switch {
	case s.ExamCompleted:
		return PhaseCompleted
	case s.WaitingForChanceResponse:
		return PhaseChanceDecision
	case s.DataReceived && s.Exam != nil:
		return PhasePresenting
	default:
		return PhaseAwaitingData
	}
}
