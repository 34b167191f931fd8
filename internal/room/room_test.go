package room

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/coral-ai/proctor/internal/i18n"
	"github.com/coral-ai/proctor/internal/model"
	"github.com/coral-ai/proctor/internal/session"
)

type stubRepo struct {
	mu    sync.Mutex
	saves int
}

func (s *stubRepo) FetchExam(context.Context, string) (*model.Exam, error) {
	return nil, nil
}

func (s *stubRepo) FetchPersonalizedQuestions(context.Context, string, string) ([]model.ExamQuestion, error) {
	return nil, nil
}

func (s *stubRepo) SaveTranscript(context.Context, string, string, []model.TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	return nil
}

func (s *stubRepo) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func newTestServer(t *testing.T, repo session.Repository) *httptest.Server {
	t.Helper()
	if err := i18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	srv := NewServer(repo, nil, nil, Config{
		TokenSecret:      testSecret,
		WatchdogInterval: time.Hour,
		WatchdogChecks:   1,
	})
	router := chi.NewRouter()
	srv.Routes(router)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func dialRoom(t *testing.T, ts *httptest.Server, roomName, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/rooms/" + roomName + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readSay(t *testing.T, conn *websocket.Conn) model.SayMessage {
	t.Helper()
	var msg model.SayMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read SAY: %v", err)
	}
	if msg.Type != model.MessageTypeSay {
		t.Fatalf("message type = %q, want SAY", msg.Type)
	}
	return msg
}

func TestRoomSessionOverWebSocket(t *testing.T) {
	repo := &stubRepo{}
	ts := newTestServer(t, repo)

	tok, err := NewToken(testSecret, "exam-1", "student-1", time.Hour)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	conn := dialRoom(t, ts, "exam-1", tok)

	err = conn.WriteJSON(model.InboundMessage{
		Type: model.MessageTypeQuestions,
		Data: model.ExamPayload{
			ExamID:      "abc123",
			Questions:   []model.QuestionPayload{{Text: "Q1"}},
			Name:        "Algebra",
			StudentName: "Sam",
		},
	})
	if err != nil {
		t.Fatalf("write QUESTIONS: %v", err)
	}

	welcome := readSay(t, conn)
	if !strings.Contains(welcome.Data.Text, "Sam") {
		t.Errorf("welcome = %q", welcome.Data.Text)
	}
	if welcome.Data.Audio {
		t.Error("no synthesizer configured, audio flag should be false")
	}

	question := readSay(t, conn)
	if question.Data.Text != "Question 1: Q1" {
		t.Errorf("question = %q", question.Data.Text)
	}
	if !question.Data.Interruptible {
		t.Error("question should be interruptible")
	}

	var utterance model.UtteranceMessage
	utterance.Type = model.MessageTypeUtterance
	utterance.Data.Text = "my answer"
	if err := conn.WriteJSON(utterance); err != nil {
		t.Fatalf("write UTTERANCE: %v", err)
	}

	var done model.ExamCompletedMessage
	if err := conn.ReadJSON(&done); err != nil {
		t.Fatalf("read EXAM_COMPLETED: %v", err)
	}
	if done.Type != model.MessageTypeExamCompleted {
		t.Errorf("message type = %q", done.Type)
	}
	if done.Data.ExamID != "abc123" || !done.Data.EndCall {
		t.Errorf("completion data = %+v", done.Data)
	}

	closing := readSay(t, conn)
	if !strings.Contains(closing.Data.Text, "concludes our session") {
		t.Errorf("closing = %q", closing.Data.Text)
	}
	if repo.saveCount() != 1 {
		t.Errorf("transcript saved %d times, want 1", repo.saveCount())
	}
}

func TestRoomRejectsMissingToken(t *testing.T) {
	ts := newTestServer(t, &stubRepo{})

	resp, err := http.Get(ts.URL + "/rooms/exam-1/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestRoomRejectsTokenForOtherRoom(t *testing.T) {
	ts := newTestServer(t, &stubRepo{})

	tok, err := NewToken(testSecret, "exam-other", "student-1", time.Hour)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	resp, err := http.Get(ts.URL + "/rooms/exam-1/ws?token=" + tok)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &stubRepo{})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
