package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"perfdash-backend/internal/model"
)

func (s *gormStore) ListAnalyses(ctx context.Context) ([]model.Analysis, error) {
	var analyses []model.Analysis
	if err := s.db.WithContext(ctx).Order("ordinal ASC").Find(&analyses).Error; err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return analyses, nil
}

func (s *gormStore) GetAnalysis(ctx context.Context, id string) (model.Analysis, error) {
	var analysis model.Analysis
	if err := s.db.WithContext(ctx).First(&analysis, "id = ?", id).Error; err != nil {
		return model.Analysis{}, notFoundOr(err)
	}
	return analysis, nil
}

// BeginRegeneration moves a completed analysis to regenerating.
func (s *gormStore) BeginRegeneration(ctx context.Context, id string) (model.Analysis, error) {
	return s.transition(ctx, id, model.AnalysisCompleted, map[string]any{
		"status": model.AnalysisRegenerating,
	})
}

// CompleteRegeneration moves a regenerating analysis back to completed with
// a new score.
func (s *gormStore) CompleteRegeneration(ctx context.Context, id string, score int) (model.Analysis, error) {
	if score < 0 || score > 100 {
		return model.Analysis{}, fmt.Errorf("%w: score %d outside [0,100]", ErrValidation, score)
	}
	return s.transition(ctx, id, model.AnalysisRegenerating, map[string]any{
		"status": model.AnalysisCompleted,
		"score":  score,
	})
}

// AbortRegeneration restores completed without touching the score.
func (s *gormStore) AbortRegeneration(ctx context.Context, id string) (model.Analysis, error) {
	return s.transition(ctx, id, model.AnalysisRegenerating, map[string]any{
		"status": model.AnalysisCompleted,
	})
}

// transition applies updates only if the analysis is currently in status
// from. The check and the write happen in one statement.
func (s *gormStore) transition(ctx context.Context, id string, from model.AnalysisStatus, updates map[string]any) (model.Analysis, error) {
	var analysis model.Analysis
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Analysis{}).
			Where("id = ? AND status = ?", id, from).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update analysis %s: %w", id, res.Error)
		}
		if err := tx.First(&analysis, "id = ?", id).Error; err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: analysis %s is %s", ErrConflict, id, analysis.Status)
		}
		return nil
	})
	if err != nil {
		return model.Analysis{}, notFoundOr(err)
	}
	return analysis, nil
}
