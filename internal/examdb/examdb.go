// Package examdb provides access to the exams and submissions collections.
package examdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/coral-ai/proctor/internal/model"
)

// ErrNoSubmission is returned by SaveTranscript when no submission matches
// the exam id, or when the write touches zero records.
var ErrNoSubmission = errors.New("no matching submission")

const connectTimeout = 5 * time.Second

// DB wraps the MongoDB collections backing exams and submissions.
type DB struct {
	client      *mongo.Client
	exams       *mongo.Collection
	submissions *mongo.Collection
}

// New connects to MongoDB and verifies the connection with a ping.
func New(ctx context.Context, uri, dbName string) (*DB, error) {
	opts := options.Client().ApplyURI(uri).SetServerSelectionTimeout(connectTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping: %w", err)
	}
	db := client.Database(dbName)
	return &DB{
		client:      client,
		exams:       db.Collection("exams"),
		submissions: db.Collection("submissions"),
	}, nil
}

// Close disconnects the underlying client.
func (d *DB) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

type examDoc struct {
	ID          primitive.ObjectID   `bson:"_id"`
	Name        string               `bson:"name"`
	Description string               `bson:"description"`
	Questions   []model.ExamQuestion `bson:"questions"`
	Duration    int                  `bson:"duration"`
	Difficulty  model.Difficulty     `bson:"difficulty"`
}

type submissionDoc struct {
	ID                    primitive.ObjectID   `bson:"_id"`
	ExamID                string               `bson:"examId"`
	PersonalizedQuestions []model.ExamQuestion `bson:"personalizedQuestions"`
	CreatedAt             time.Time            `bson:"createdAt"`
}

// FetchExam looks up an exam by id. A malformed id or a missing document
// yields (nil, nil) so the caller can fall back to frontend data; only
// connectivity problems surface as errors.
func (d *DB) FetchExam(ctx context.Context, examID string) (*model.Exam, error) {
	oid, err := primitive.ObjectIDFromHex(examID)
	if err != nil {
		slog.Warn("invalid exam id", "exam_id", examID)
		return nil, nil
	}

	var doc examDoc
	err = d.exams.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		slog.Info("exam not found", "exam_id", examID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find exam %s: %w", examID, err)
	}

	exam := examFromDoc(doc)
	slog.Info("loaded exam", "exam_id", exam.ID, "name", exam.Name, "questions", len(exam.Questions))
	return &exam, nil
}

// examFromDoc maps a stored exam document to the model, applying the same
// defaults the frontend fallback uses.
func examFromDoc(doc examDoc) model.Exam {
	exam := model.Exam{
		ID:          doc.ID.Hex(),
		Name:        doc.Name,
		Description: doc.Description,
		Questions:   doc.Questions,
		Duration:    doc.Duration,
		Difficulty:  doc.Difficulty,
	}
	if exam.Name == "" {
		exam.Name = model.DefaultExamName
	}
	if exam.Difficulty == "" {
		exam.Difficulty = model.DifficultyMedium
	}
	return exam
}

// FetchPersonalizedQuestions returns the personalized question list from the
// most recently created submission for the exam that carries one. When
// submissionID is non-empty the lookup is pinned to that submission instead
// of relying on creation-time recency.
func (d *DB) FetchPersonalizedQuestions(ctx context.Context, examID, submissionID string) ([]model.ExamQuestion, error) {
	if _, err := primitive.ObjectIDFromHex(examID); err != nil {
		slog.Warn("invalid exam id", "exam_id", examID)
		return nil, nil
	}

	filter := bson.M{
		"examId":                examID,
		"personalizedQuestions": bson.M{"$exists": true, "$ne": bson.A{}},
	}
	if submissionID != "" {
		oid, err := primitive.ObjectIDFromHex(submissionID)
		if err != nil {
			slog.Warn("invalid submission id", "submission_id", submissionID)
			return nil, nil
		}
		filter["_id"] = oid
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	var doc submissionDoc
	err := d.submissions.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		slog.Info("no submission with personalized questions", "exam_id", examID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find submission for exam %s: %w", examID, err)
	}

	slog.Info("found personalized questions",
		"exam_id", examID,
		"submission_id", doc.ID.Hex(),
		"count", len(doc.PersonalizedQuestions),
	)
	return doc.PersonalizedQuestions, nil
}

// SaveTranscript overwrites the transcript on the most recent (or pinned)
// submission for the exam and marks it completed. Last write wins; there is
// no merge.
func (d *DB) SaveTranscript(ctx context.Context, examID, submissionID string, entries []model.TranscriptEntry) error {
	if _, err := primitive.ObjectIDFromHex(examID); err != nil {
		return fmt.Errorf("invalid exam id %q: %w", examID, ErrNoSubmission)
	}

	filter := bson.M{"examId": examID}
	if submissionID != "" {
		oid, err := primitive.ObjectIDFromHex(submissionID)
		if err != nil {
			return fmt.Errorf("invalid submission id %q: %w", submissionID, ErrNoSubmission)
		}
		filter = bson.M{"_id": oid}
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	var doc submissionDoc
	err := d.submissions.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("exam %s: %w", examID, ErrNoSubmission)
	}
	if err != nil {
		return fmt.Errorf("find submission for exam %s: %w", examID, err)
	}

	res, err := d.submissions.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{
		"$set": bson.M{
			"submissionTranscript": entries,
			"status":               model.StatusCompleted,
		},
	})
	if err != nil {
		return fmt.Errorf("update submission %s: %w", doc.ID.Hex(), err)
	}
	if res.ModifiedCount == 0 {
		return fmt.Errorf("submission %s: %w", doc.ID.Hex(), ErrNoSubmission)
	}

	slog.Info("saved transcript", "exam_id", examID, "submission_id", doc.ID.Hex(), "entries", len(entries))
	return nil
}
