package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxTaskLen = 500

// Service applies validated, owner-scoped operations to a Repository.
type Service struct {
	repo   Repository
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger,
		tracer: otel.Tracer("tasks"),
		now:    time.Now,
	}
}

// List returns the owner's tasks newest first. Storage failures are logged
// and reported as an empty list so the page still renders.
func (s *Service) List(ctx context.Context, ownerID int64) []Task {
	ctx, span := s.tracer.Start(ctx, "tasks.List", trace.WithAttributes(attribute.Int64("owner.id", ownerID)))
	defer span.End()

	list, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		span.RecordError(err)
		s.logger.ErrorContext(ctx, "todo_list_failed",
			slog.Int64("user_id", ownerID),
			slog.String("error", err.Error()),
		)
		return []Task{}
	}
	if list == nil {
		list = []Task{}
	}
	span.SetAttributes(attribute.Int("tasks.count", len(list)))
	return list
}

// Add stores a new task for ownerID and returns its id.
func (s *Service) Add(ctx context.Context, ownerID int64, rawText string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.Add", trace.WithAttributes(attribute.Int64("owner.id", ownerID)))
	defer span.End()

	text := strings.TrimSpace(rawText)
	if text == "" {
		return 0, validationErr(msgTaskEmpty)
	}
	if utf8.RuneCountInString(text) > maxTaskLen {
		return 0, validationErr(fmt.Sprintf("Task must be at most %d characters", maxTaskLen))
	}

	id, err := s.repo.Create(ctx, ownerID, text, s.now())
	if err != nil {
		return 0, s.fail(span, storageErr(msgAddFailed, err))
	}
	span.SetAttributes(attribute.Int64("task.id", id))
	return id, nil
}

// Delete removes the task only if ownerID owns it. A missing task and a task
// owned by someone else produce the same error.
func (s *Service) Delete(ctx context.Context, ownerID int64, rawTaskID string) error {
	ctx, span := s.tracer.Start(ctx, "tasks.Delete", trace.WithAttributes(attribute.Int64("owner.id", ownerID)))
	defer span.End()

	id, err := ParseTaskID(rawTaskID)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int64("task.id", id))

	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		if errors.Is(err, ErrNoRows) {
			return notFoundErr(msgDeleteNotFound)
		}
		return s.fail(span, storageErr(msgDeleteFailed, err))
	}
	return nil
}

// Toggle sets the completion flag of an owned task. rawCompleted is read for
// truthiness and never rejected.
func (s *Service) Toggle(ctx context.Context, ownerID int64, rawTaskID, rawCompleted string) error {
	ctx, span := s.tracer.Start(ctx, "tasks.Toggle", trace.WithAttributes(attribute.Int64("owner.id", ownerID)))
	defer span.End()

	id, err := ParseTaskID(rawTaskID)
	if err != nil {
		return err
	}
	completed := ParseCompleted(rawCompleted)
	span.SetAttributes(attribute.Int64("task.id", id), attribute.Bool("task.completed", completed))

	if err := s.repo.SetCompleted(ctx, ownerID, id, completed, s.now()); err != nil {
		if errors.Is(err, ErrNoRows) {
			return notFoundErr(msgUpdateNotFound)
		}
		return s.fail(span, storageErr(msgUpdateFailed, err))
	}
	return nil
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// ParseTaskID accepts only positive base-10 integers.
func ParseTaskID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, validationErr(msgTaskIDRequired)
	}
	return id, nil
}

// ParseCompleted maps a loosely typed form value to a bool. Empty, "false",
// "off", "no" and any numeric zero ("0", "0.0", "0e0") are false; anything
// else is true.
func ParseCompleted(raw string) bool {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "", "false", "off", "no":
		return false
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f != 0
	}
	return true
}
