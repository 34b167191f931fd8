package examdb

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/coral-ai/proctor/internal/model"
)

func TestExamFromDoc(t *testing.T) {
	oid := primitive.NewObjectID()
	doc := examDoc{
		ID:         oid,
		Name:       "Algebra",
		Questions:  []model.ExamQuestion{{Text: "Q1"}, {Text: "Q2"}},
		Duration:   45,
		Difficulty: model.DifficultyHard,
	}

	exam := examFromDoc(doc)
	if exam.ID != oid.Hex() {
		t.Errorf("ID = %q, want %q", exam.ID, oid.Hex())
	}
	if exam.Name != "Algebra" {
		t.Errorf("Name = %q", exam.Name)
	}
	if len(exam.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(exam.Questions))
	}
	if exam.Duration != 45 || exam.Difficulty != model.DifficultyHard {
		t.Errorf("metadata not carried over: %+v", exam)
	}
}

func TestExamFromDocDefaults(t *testing.T) {
	exam := examFromDoc(examDoc{ID: primitive.NewObjectID()})
	if exam.Name != model.DefaultExamName {
		t.Errorf("Name = %q, want %q", exam.Name, model.DefaultExamName)
	}
	if exam.Difficulty != model.DifficultyMedium {
		t.Errorf("Difficulty = %q, want %q", exam.Difficulty, model.DifficultyMedium)
	}
	if exam.Duration != 0 {
		t.Errorf("Duration = %d, want 0", exam.Duration)
	}
}
