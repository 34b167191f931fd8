// Package session implements the exam progression state machine.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coral-ai/proctor/internal/i18n"
	"github.com/coral-ai/proctor/internal/model"
	"github.com/coral-ai/proctor/internal/transcript"
)

// Voice is the speech side of the transport adapter. Say delivers a spoken
// line to the student; SendData sends a structured message on the data
// channel.
type Voice interface {
	Say(ctx context.Context, text string, interruptible bool) error
	SendData(ctx context.Context, msg any) error
}

// Repository is the exam/submission store consumed by the controller.
type Repository interface {
	FetchExam(ctx context.Context, examID string) (*model.Exam, error)
	FetchPersonalizedQuestions(ctx context.Context, examID, submissionID string) ([]model.ExamQuestion, error)
	SaveTranscript(ctx context.Context, examID, submissionID string, entries []model.TranscriptEntry) error
}

// Archiver keeps a local copy of finalized transcripts so a failed remote
// write is recoverable.
type Archiver interface {
	Save(ctx context.Context, examID string, remoteSaved bool, entries []model.TranscriptEntry) error
}

// Delays are the pacing pauses between spoken lines. Tests set them to zero.
type Delays struct {
	BeforeFirstQuestion time.Duration
	BeforeChanceRepeat  time.Duration
	BeforeAdvance       time.Duration
}

// DefaultDelays returns the natural conversation pacing.
func DefaultDelays() Delays {
	return Delays{
		BeforeFirstQuestion: 2 * time.Second,
		BeforeChanceRepeat:  time.Second,
		BeforeAdvance:       1500 * time.Millisecond,
	}
}

// Controller drives one exam session. Event handlers run to completion
// under a single mutex, so no two handlers interleave on the same state.
type Controller struct {
	mu      sync.Mutex
	state   *State
	history *History
	repo    Repository
	voice   Voice
	archive Archiver
	delays  Delays
	sleep   func(ctx context.Context, d time.Duration)
	now     func() time.Time
}

// NewController wires a controller for a fresh session. archive may be nil.
func NewController(repo Repository, voice Voice, archive Archiver, delays Delays) *Controller {
	return &Controller{
		state:   NewState(),
		history: NewHistory(),
		repo:    repo,
		voice:   voice,
		archive: archive,
		delays:  delays,
		sleep:   sleepCtx,
		now:     time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// History exposes the dialog history so the transport can append user turns.
func (c *Controller) History() *History {
	return c.history
}

// DataReceived reports whether exam data has arrived. Used by the watchdog.
func (c *Controller) DataReceived() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.DataReceived
}

// Completed reports whether the exam has finished.
func (c *Controller) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ExamCompleted
}

// HandleDataMessage processes a structured message from the data channel.
// Malformed JSON and unknown message types are logged and dropped.
func (c *Controller) HandleDataMessage(ctx context.Context, raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var msg model.InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Error("failed to parse data message", "error", err)
		return
	}
	if msg.Type != model.MessageTypeQuestions {
		slog.Warn("ignoring unknown message type", "type", msg.Type)
		return
	}
	if c.state.DataReceived {
		// A second exam-selection message never resets a running exam.
		slog.Warn("exam data already received, ignoring", "exam_id", msg.Data.ExamID)
		return
	}

	exam := c.resolveExam(ctx, msg.Data)
	if exam == nil {
		c.say(ctx, i18n.T(ctx, "NoQuestionsLoaded"), false)
		return
	}

	c.state.Exam = exam
	c.state.SubmissionID = msg.Data.SubmissionID
	c.state.StudentName = msg.Data.StudentName
	if c.state.StudentName == "" {
		c.state.StudentName = model.DefaultStudent
	}
	c.state.DataReceived = true

	slog.Info("exam loaded",
		"exam_id", exam.ID,
		"name", exam.Name,
		"questions", len(exam.Questions),
		"student", c.state.StudentName,
	)

	if instructions, err := buildInstructions(exam); err == nil {
		c.history.Append(model.RoleSystem, instructions)
	} else {
		slog.Warn("failed to build instructions turn", "error", err)
	}

	c.say(ctx, i18n.Td(ctx, "WelcomeMessage", map[string]any{
		"StudentName": c.state.StudentName,
		"ExamName":    exam.Name,
	}), false)

	c.sleep(ctx, c.delays.BeforeFirstQuestion)
	c.askNextQuestion(ctx)
}

// resolveExam establishes the session's exam from the store, falling back to
// the inline question list from the payload. Returns nil when no exam can be
// established at all.
func (c *Controller) resolveExam(ctx context.Context, data model.ExamPayload) *model.Exam {
	var exam *model.Exam

	if data.ExamID != "" {
		if data.IsImprovized {
			exam = c.resolvePersonalized(ctx, data)
		} else {
			var err error
			exam, err = c.repo.FetchExam(ctx, data.ExamID)
			if err != nil {
				slog.Error("exam lookup failed", "exam_id", data.ExamID, "error", err)
				exam = nil
			}
		}
	}

	if exam == nil && len(data.Questions) > 0 {
		exam = examFromPayload(data)
		slog.Info("using frontend exam data", "name", exam.Name, "questions", len(exam.Questions))
	}
	return exam
}

// resolvePersonalized loads exam metadata and overrides its question list
// with the per-submission personalized questions when they exist.
func (c *Controller) resolvePersonalized(ctx context.Context, data model.ExamPayload) *model.Exam {
	meta, err := c.repo.FetchExam(ctx, data.ExamID)
	if err != nil {
		slog.Error("exam metadata lookup failed", "exam_id", data.ExamID, "error", err)
		return nil
	}
	if meta == nil {
		return nil
	}

	personalized, err := c.repo.FetchPersonalizedQuestions(ctx, data.ExamID, data.SubmissionID)
	if err != nil {
		slog.Error("personalized questions lookup failed", "exam_id", data.ExamID, "error", err)
		personalized = nil
	}
	if len(personalized) == 0 {
		slog.Info("no personalized questions, using exam questions", "exam_id", data.ExamID)
		return meta
	}

	return &model.Exam{
		ID:         data.ExamID,
		Name:       meta.Name,
		Questions:  personalized,
		Duration:   meta.Duration,
		Difficulty: meta.Difficulty,
	}
}

// examFromPayload synthesizes an exam from inline frontend data.
func examFromPayload(data model.ExamPayload) *model.Exam {
	exam := &model.Exam{
		ID:         data.ExamID,
		Name:       data.Name,
		Duration:   data.Duration,
		Difficulty: data.Difficulty,
	}
	if exam.ID == "" {
		exam.ID = model.FallbackExamID
	}
	if exam.Name == "" {
		exam.Name = model.DefaultExamName
	}
	if exam.Duration == 0 {
		exam.Duration = model.DefaultDuration
	}
	if exam.Difficulty == "" {
		exam.Difficulty = model.DifficultyMedium
	}
	for _, q := range data.Questions {
		exam.Questions = append(exam.Questions, model.ExamQuestion{Text: q.Text})
	}
	return exam
}

// HandleUtteranceCommitted processes the student's finished utterance.
func (c *Controller) HandleUtteranceCommitted(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	utterance, ok := c.history.LastUserMessage()
	if !ok {
		slog.Info("utterance committed with no user turn in history")
	}

	if utterance != "" && isTermination(utterance) {
		c.endExamEarly(ctx)
		return
	}

	if c.state.WaitingForChanceResponse {
		c.state.WaitingForChanceResponse = false
		if isAffirmative(utterance) {
			slog.Info("student wants another chance",
				"question_index", c.state.CurrentQuestionIndex)
			c.state.NeedsAnotherChance = true
			c.sleep(ctx, c.delays.BeforeChanceRepeat)
			c.askNextQuestion(ctx)
			return
		}
		slog.Info("student declined another chance, advancing")
		c.state.NeedsAnotherChance = false
	} else if utterance != "" && c.questionPending() && isDontKnow(utterance) {
		slog.Info("student does not know the answer",
			"question_index", c.state.CurrentQuestionIndex)
		c.state.WaitingForChanceResponse = true
		c.say(ctx, i18n.T(ctx, "AnotherChanceOffer"), true)
		return
	}

	// Natural pacing before the next prompt.
	c.sleep(ctx, c.delays.BeforeAdvance)
	if !c.state.ExamCompleted {
		c.askNextQuestion(ctx)
	}
}

// questionPending reports whether a question has been presented and is still
// awaiting an answer. The chance sub-dialog is only reachable in that state.
// Callers hold c.mu.
func (c *Controller) questionPending() bool {
	return c.state.DataReceived && !c.state.ExamCompleted && c.state.CurrentQuestionText != ""
}

// askNextQuestion speaks the next prompt, re-asks the current one when a
// chance was granted, or runs completion when the list is exhausted.
// Callers hold c.mu.
func (c *Controller) askNextQuestion(ctx context.Context) {
	if !c.state.DataReceived {
		slog.Warn("asked for next question before exam data arrived")
		return
	}
	if c.state.Exam == nil {
		slog.Error("exam reference missing")
		c.say(ctx, i18n.T(ctx, "InvalidExamData"), false)
		return
	}
	if c.state.ExamCompleted {
		slog.Info("exam already completed")
		return
	}
	if c.state.WaitingForChanceResponse {
		slog.Info("waiting for chance decision, holding next question")
		return
	}

	if c.state.NeedsAnotherChance {
		slog.Info("repeating question", "question_index", c.state.CurrentQuestionIndex)
		c.say(ctx, c.state.CurrentQuestionText, true)
		c.state.NeedsAnotherChance = false
		return
	}

	if c.state.CurrentQuestionIndex < len(c.state.Exam.Questions) {
		question := c.state.Exam.Questions[c.state.CurrentQuestionIndex]
		prompt := i18n.Td(ctx, "QuestionPrompt", map[string]any{
			"Number": c.state.CurrentQuestionIndex + 1,
			"Text":   question.Text,
		})
		slog.Info("asking question",
			"number", c.state.CurrentQuestionIndex+1,
			"total", len(c.state.Exam.Questions),
		)
		c.state.QuestionsAsked++
		c.state.CurrentQuestionText = prompt
		c.say(ctx, prompt, true)
		c.state.CurrentQuestionIndex++
		return
	}

	c.completeExam(ctx)
}

// completeExam finalizes the session: persists the transcript, notifies the
// frontend, and speaks the closing statement. Runs at most once. Callers
// hold c.mu.
func (c *Controller) completeExam(ctx context.Context) {
	if c.state.ExamCompleted {
		slog.Info("exam already marked as completed")
		return
	}
	c.state.ExamCompleted = true
	slog.Info("all questions completed, ending exam", "questions_asked", c.state.QuestionsAsked)

	c.persistTranscript(ctx)

	if err := c.voice.SendData(ctx, model.NewExamCompletedMessage(c.state.Exam.ID)); err != nil {
		slog.Error("failed to send completion message", "error", err)
	}

	c.say(ctx, i18n.Td(ctx, "ClosingStatement", map[string]any{
		"ExamName": c.state.Exam.Name,
		"Count":    len(c.state.Exam.Questions),
	}), false)
}

// endExamEarly handles an explicit termination phrase: acknowledge, freeze
// the cursor, persist, and stop without the normal completion messaging.
// Callers hold c.mu.
func (c *Controller) endExamEarly(ctx context.Context) {
	if c.state.ExamCompleted {
		slog.Info("termination requested after completion, ignoring")
		return
	}
	if c.state.Exam == nil {
		slog.Warn("termination requested before exam data arrived, ignoring")
		return
	}
	slog.Info("student requested exam termination",
		"question_index", c.state.CurrentQuestionIndex)

	c.say(ctx, i18n.T(ctx, "EndExamAck"), false)
	c.state.ExamCompleted = true
	c.persistTranscript(ctx)
}

// Finalize persists the transcript when the session ends outside the normal
// flow, e.g. on participant disconnect. Completed sessions already saved.
func (c *Controller) Finalize(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.ExamCompleted || c.state.Exam == nil {
		return
	}
	slog.Info("finalizing interrupted session", "exam_id", c.state.Exam.ID)
	c.state.ExamCompleted = true
	c.persistTranscript(ctx)
}

// persistTranscript extracts the dialog history and writes it to the
// submission store, archiving a local copy either way. Persistence failures
// are logged, never propagated. Callers hold c.mu.
func (c *Controller) persistTranscript(ctx context.Context) {
	entries := transcript.Extract(c.history.Turns(), c.now)
	if len(entries) == 0 {
		slog.Error("no dialog turns to persist")
		return
	}

	examID := c.state.Exam.ID
	remoteSaved := false
	if err := c.repo.SaveTranscript(ctx, examID, c.state.SubmissionID, entries); err != nil {
		slog.Error("failed to save transcript", "exam_id", examID, "error", err)
	} else {
		remoteSaved = true
		slog.Info("transcript saved", "exam_id", examID, "entries", len(entries))
	}

	if c.archive != nil {
		if err := c.archive.Save(ctx, examID, remoteSaved, entries); err != nil {
			slog.Error("failed to archive transcript", "exam_id", examID, "error", err)
		}
	}
}

// say speaks a line and records it as an assistant turn.
func (c *Controller) say(ctx context.Context, text string, interruptible bool) {
	if err := c.voice.Say(ctx, text, interruptible); err != nil {
		slog.Error("failed to speak", "error", err)
	}
	c.history.Append(model.RoleAssistant, text)
}
