package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"perfdash-backend/internal/jobs"
	"perfdash-backend/internal/logger"
	"perfdash-backend/internal/model"
	"perfdash-backend/internal/notification"
	"perfdash-backend/internal/store"
)

// KindRegenerate is the task kind of a regeneration.
const KindRegenerate = "analysis.regenerate"

// Regenerated scores are drawn from [MinScore, MaxScore].
const (
	MinScore = 80
	MaxScore = 100
)

// ErrNoPendingRegeneration is returned when cancelling an analysis that has
// no regeneration waiting to fire.
var ErrNoPendingRegeneration = errors.New("no pending regeneration")

// Scorer yields the score of a regenerated analysis.
type Scorer func() int

// RandomScorer draws uniformly from [MinScore, MaxScore]. A zero seed picks
// a random seed.
func RandomScorer(seed int64) Scorer {
	faker := gofakeit.New(seed)
	return func() int {
		return faker.Number(MinScore, MaxScore)
	}
}

// Service owns the AI analysis history view.
type Service struct {
	store    store.AnalysisStore
	runner   *jobs.Runner
	delay    time.Duration
	score    Scorer
	notifier notification.Notifier
	log      *logger.Logger
}

// NewService wires the history view. A nil scorer uses RandomScorer(0) and
// a nil notifier discards notices.
func NewService(s store.AnalysisStore, runner *jobs.Runner, delay time.Duration, score Scorer, notifier notification.Notifier, log *logger.Logger) *Service {
	if score == nil {
		score = RandomScorer(0)
	}
	if notifier == nil {
		notifier = notification.Nop{}
	}
	return &Service{
		store:    s,
		runner:   runner,
		delay:    delay,
		score:    score,
		notifier: notifier,
		log:      log.With("component", "analysis"),
	}
}

func (s *Service) List(ctx context.Context) ([]model.Analysis, error) {
	return s.store.ListAnalyses(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (model.Analysis, error) {
	return s.store.GetAnalysis(ctx, id)
}

// Regenerate marks the analysis as regenerating right away and returns the
// task that completes it after the configured delay.
func (s *Service) Regenerate(ctx context.Context, id string) (model.Analysis, *jobs.Task, error) {
	began, err := s.store.BeginRegeneration(ctx, id)
	if err != nil {
		return model.Analysis{}, nil, err
	}

	task, err := s.runner.Schedule(KindRegenerate, s.delay, func(ctx context.Context) (any, error) {
		return s.complete(ctx, id)
	}, jobs.WithSubject(id), jobs.OnCancel(func() { s.abort(id) }))
	if err != nil {
		s.abort(id)
		return model.Analysis{}, nil, fmt.Errorf("schedule regeneration: %w", err)
	}

	s.log.Info("regeneration started", "analysis", id, "task", task.ID)
	return began, task, nil
}

func (s *Service) complete(ctx context.Context, id string) (model.Analysis, error) {
	score := s.score()
	done, err := s.store.CompleteRegeneration(ctx, id, score)
	if err != nil {
		s.abort(id)
		return model.Analysis{}, fmt.Errorf("complete regeneration of %s: %w", id, err)
	}
	s.log.Info("regeneration completed", "analysis", id, "score", score)
	s.notifier.Notify(notification.Notice{
		Title: "Analysis regenerated",
		Body:  fmt.Sprintf("%s was updated with the latest data.", done.Title),
		Tag:   "analysis:" + id,
	})
	return done, nil
}

// abort restores the completed status after a cancelled or failed
// regeneration. It runs on the task goroutine, possibly after the request
// context is gone.
func (s *Service) abort(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.store.AbortRegeneration(ctx, id); err != nil {
		s.log.Warn("failed to restore analysis after cancellation", "analysis", id, "error", err)
	}
}

// CancelRegeneration cancels the pending regeneration of an analysis and
// returns the restored record. A regeneration that already started is
// awaited instead, so the result is always completed.
func (s *Service) CancelRegeneration(ctx context.Context, id string) (model.Analysis, error) {
	task, ok := s.runner.Active(KindRegenerate, id)
	if !ok {
		if _, err := s.store.GetAnalysis(ctx, id); err != nil {
			return model.Analysis{}, err
		}
		return model.Analysis{}, ErrNoPendingRegeneration
	}

	task.Cancel()
	if err := task.Wait(ctx); err != nil && !errors.Is(err, jobs.ErrCancelled) {
		if ctx.Err() != nil {
			return model.Analysis{}, err
		}
		s.log.Warn("regeneration ended with an error", "analysis", id, "error", err)
	}
	return s.store.GetAnalysis(ctx, id)
}
