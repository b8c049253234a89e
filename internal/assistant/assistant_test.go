package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfdash-backend/internal/jobs"
	"perfdash-backend/internal/logger"
)

func TestAssistant_Start(t *testing.T) {
	runner := jobs.NewRunner(logger.Nop(), time.Minute, nil)
	defer runner.Shutdown(context.Background())

	a := New(runner, 10*time.Millisecond, logger.Nop())
	task, err := a.Start()
	require.NoError(t, err)
	assert.Equal(t, KindAnalysis, task.Kind)
	assert.Nil(t, task.Result(), "no answer before the delay elapses")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, task.Wait(ctx))

	insight, ok := task.Result().(Insight)
	require.True(t, ok)
	assert.Equal(t, 87, insight.Score)
	assert.Equal(t, "excellent", insight.Rating)
	assert.Len(t, insight.Insights, 3)
	assert.Len(t, insight.Recommendations, 3)
}

func TestRating(t *testing.T) {
	assert.Equal(t, "excellent", Rating(85))
	assert.Equal(t, "good", Rating(84))
	assert.Equal(t, "good", Rating(70))
	assert.Equal(t, "needs attention", Rating(69))
}
