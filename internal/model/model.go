package model

import "time"

// Role represents a dialog turn role as tracked inside a session.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Difficulty represents exam difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Defaults applied when exam data arrives with fields missing, either from
// the store or from the frontend payload.
const (
	DefaultExamName = "Unnamed Exam"
	DefaultDuration = 30
	FallbackExamID  = "frontend-exam"
	DefaultStudent  = "Student"
	StatusCompleted = "completed"
)

// ExamQuestion is a single question in presentation order.
type ExamQuestion struct {
	Text       string     `json:"text" bson:"text"`
	Answer     string     `json:"answer,omitempty" bson:"answer,omitempty"`
	Difficulty Difficulty `json:"difficulty,omitempty" bson:"difficulty,omitempty"`
}

// Exam is a named ordered collection of questions with metadata.
// Questions must be non-empty for a usable exam; order is significant.
type Exam struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Questions   []ExamQuestion `json:"questions"`
	Duration    int            `json:"duration,omitempty"`
	Difficulty  Difficulty     `json:"difficulty,omitempty"`
}

// Turn is one entry in a session's dialog history.
type Turn struct {
	Role      Role
	Content   string
	CreatedAt time.Time
}

// TranscriptEntry is the externally visible form of a dialog turn.
// Role is "agent" or "user"; Timestamp serializes as RFC 3339.
type TranscriptEntry struct {
	Role      string    `json:"role" bson:"role"`
	Content   string    `json:"content" bson:"content"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Transcript roles as persisted to the submission record.
const (
	TranscriptRoleAgent = "agent"
	TranscriptRoleUser  = "user"
)
