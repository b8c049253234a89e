package assistant

import (
	"context"
	"time"

	"perfdash-backend/internal/jobs"
	"perfdash-backend/internal/logger"
)

// KindAnalysis is the task kind of an assistant run.
const KindAnalysis = "assistant.analysis"

// Insight is the assistant's canned answer.
type Insight struct {
	Score           int      `json:"score"`
	Rating          string   `json:"rating"`
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
}

// Rating maps a score to the badge shown next to it.
func Rating(score int) string {
	switch {
	case score >= 85:
		return "excellent"
	case score >= 70:
		return "good"
	default:
		return "needs attention"
	}
}

// Canned returns the fixed insight set.
func Canned() Insight {
	return Insight{
		Score:  87,
		Rating: Rating(87),
		Insights: []string{
			"Cutting Machine A1 is performing 12% above average",
			"Hydraulic Press B2 lost 5% efficiency over the last 48h",
			"The preventive maintenance schedule is being followed",
		},
		Recommendations: []string{
			"Investigate the cause of the performance drop on Press B2",
			"Consider replicating Machine A1 settings on other units",
			"Schedule preventive maintenance for Milling Machine D4 in 2 weeks",
		},
	}
}

// Assistant fakes an AI analysis: the answer is fixed and only arrives
// after a delay.
type Assistant struct {
	runner *jobs.Runner
	delay  time.Duration
	log    *logger.Logger
}

func New(runner *jobs.Runner, delay time.Duration, log *logger.Logger) *Assistant {
	return &Assistant{runner: runner, delay: delay, log: log}
}

// Start schedules an analysis run. The task result is an Insight.
func (a *Assistant) Start() (*jobs.Task, error) {
	task, err := a.runner.Schedule(KindAnalysis, a.delay, func(ctx context.Context) (any, error) {
		return Canned(), nil
	})
	if err != nil {
		return nil, err
	}
	a.log.Info("assistant analysis started", "task", task.ID)
	return task, nil
}
