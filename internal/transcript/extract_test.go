package transcript

import (
	"testing"
	"time"

	"github.com/coral-ai/proctor/internal/model"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestExtractFiltersSystemAndEmpty(t *testing.T) {
	turns := []model.Turn{
		{Role: model.RoleSystem, Content: "instructions"},
		{Role: model.RoleAssistant, Content: "Question 1: Q1"},
		{Role: model.RoleUser, Content: "   "},
		{Role: model.RoleUser, Content: "my answer"},
		{Role: model.RoleAssistant, Content: ""},
	}

	entries := Extract(turns, fixedNow)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Role != model.TranscriptRoleAgent || entries[0].Content != "Question 1: Q1" {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Role != model.TranscriptRoleUser || entries[1].Content != "my answer" {
		t.Errorf("entry 1 = %+v", entries[1])
	}
}

func TestExtractSyntheticTimestampsStrictlyIncrease(t *testing.T) {
	turns := []model.Turn{
		{Role: model.RoleAssistant, Content: "a"},
		{Role: model.RoleUser, Content: "b"},
		{Role: model.RoleAssistant, Content: "c"},
	}

	entries := Extract(turns, fixedNow)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if !entries[i].Timestamp.After(entries[i-1].Timestamp) {
			t.Errorf("timestamps not strictly increasing at %d: %v then %v",
				i, entries[i-1].Timestamp, entries[i].Timestamp)
		}
	}
	if got := entries[0].Timestamp; !got.Equal(fixedNow()) {
		t.Errorf("first synthetic timestamp = %v, want %v", got, fixedNow())
	}
}

func TestExtractKeepsSourceTimestamps(t *testing.T) {
	at := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	turns := []model.Turn{
		{Role: model.RoleUser, Content: "timed", CreatedAt: at},
		{Role: model.RoleUser, Content: "untimed"},
	}

	entries := Extract(turns, fixedNow)
	if !entries[0].Timestamp.Equal(at) {
		t.Errorf("source timestamp not preserved: %v", entries[0].Timestamp)
	}
	if !entries[1].Timestamp.Equal(fixedNow()) {
		t.Errorf("synthetic timestamp = %v, want %v", entries[1].Timestamp, fixedNow())
	}
}

func TestExtractTrimsContent(t *testing.T) {
	entries := Extract([]model.Turn{
		{Role: model.RoleUser, Content: "  padded  "},
	}, fixedNow)
	if entries[0].Content != "padded" {
		t.Errorf("content = %q, want trimmed", entries[0].Content)
	}
}

func TestExtractEmptyHistory(t *testing.T) {
	if got := Extract(nil, fixedNow); len(got) != 0 {
		t.Errorf("expected no entries, got %d", len(got))
	}
}
