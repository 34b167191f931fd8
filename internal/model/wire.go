package model

// Wire message types exchanged over the room data channel.
const (
	MessageTypeQuestions     = "QUESTIONS"
	MessageTypeUtterance     = "UTTERANCE"
	MessageTypeSay           = "SAY"
	MessageTypeExamCompleted = "EXAM_COMPLETED"
)

// InboundMessage is the envelope for structured messages from the frontend.
type InboundMessage struct {
	Type string      `json:"type"`
	Data ExamPayload `json:"data"`
}

// ExamPayload carries exam selection data sent by the frontend. All fields
// are optional; missing ones fall back to the Default* constants.
type ExamPayload struct {
	ExamID       string            `json:"examId,omitempty"`
	SubmissionID string            `json:"submissionId,omitempty"`
	Questions    []QuestionPayload `json:"questions,omitempty"`
	Name         string            `json:"name,omitempty"`
	StudentName  string            `json:"studentName,omitempty"`
	IsImprovized bool              `json:"isImprovized,omitempty"`
	Duration     int               `json:"duration,omitempty"`
	Difficulty   Difficulty        `json:"difficulty,omitempty"`
}

// QuestionPayload is a question as supplied inline by the frontend.
type QuestionPayload struct {
	Text string `json:"text"`
}

// UtteranceMessage is the frontend's notification that the student finished
// an utterance, carrying the transcribed text.
type UtteranceMessage struct {
	Type string `json:"type"`
	Data struct {
		Text string `json:"text"`
	} `json:"data"`
}

// SayMessage instructs the frontend to play a spoken line.
type SayMessage struct {
	Type string  `json:"type"`
	Data SayData `json:"data"`
}

// SayData is the body of a SAY message. Audio indicates whether a binary
// audio frame follows on the same connection.
type SayData struct {
	Text          string `json:"text"`
	Interruptible bool   `json:"interruptible"`
	Audio         bool   `json:"audio,omitempty"`
}

// ExamCompletedMessage signals the frontend that the exam is over and the
// call can be ended.
type ExamCompletedMessage struct {
	Type string            `json:"type"`
	Data ExamCompletedData `json:"data"`
}

// ExamCompletedData is the body of an EXAM_COMPLETED message.
type ExamCompletedData struct {
	ExamID  string `json:"examId"`
	EndCall bool   `json:"endCall"`
}

// NewSayMessage builds a SAY message for a spoken line.
func NewSayMessage(text string, interruptible, audio bool) SayMessage {
	return SayMessage{
		Type: MessageTypeSay,
		Data: SayData{Text: text, Interruptible: interruptible, Audio: audio},
	}
}

// NewExamCompletedMessage builds the completion signal for an exam.
func NewExamCompletedMessage(examID string) ExamCompletedMessage {
	return ExamCompletedMessage{
		Type: MessageTypeExamCompleted,
		Data: ExamCompletedData{ExamID: examID, EndCall: true},
	}
}
