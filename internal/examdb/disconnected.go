package examdb

import (
	"context"
	"errors"
	"log/slog"

	"github.com/coral-ai/proctor/internal/model"
)

// ErrDisconnected is returned by writes when the store was unreachable at
// startup.
var ErrDisconnected = errors.New("submission store disconnected")

// Disconnected is a repository stand-in used when the store cannot be
// reached at startup. Sessions still run on frontend-supplied exam data;
// transcripts fall back to the local archive.
type Disconnected struct{}

func (Disconnected) FetchExam(_ context.Context, examID string) (*model.Exam, error) {
	slog.Warn("store disconnected, exam lookup skipped", "exam_id", examID)
	return nil, nil
}

func (Disconnected) FetchPersonalizedQuestions(_ context.Context, examID, _ string) ([]model.ExamQuestion, error) {
	slog.Warn("store disconnected, personalized lookup skipped", "exam_id", examID)
	return nil, nil
}

func (Disconnected) SaveTranscript(_ context.Context, examID, _ string, _ []model.TranscriptEntry) error {
	return ErrDisconnected
}
