package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"perfdash-backend/internal/model"
)

// SeedMachines is the registry content shown on first load.
func SeedMachines() []model.Machine {
	return []model.Machine{
		{Name: "Cutting Machine A1", StandardCycle: 45, Observations: "Main cutting machine, high precision", Status: model.MachineActive, CreatedOn: "2024-01-15"},
		{Name: "Hydraulic Press B2", StandardCycle: 30, Observations: "Press for part forming", Status: model.MachineActive, CreatedOn: "2024-01-10"},
		{Name: "CNC Lathe C3", StandardCycle: 60, Observations: "High precision lathe for machining", Status: model.MachineMaintenance, CreatedOn: "2024-01-05"},
	}
}

// SeedAnalyses is the AI analysis history shown on first load.
func SeedAnalyses() []model.Analysis {
	return []model.Analysis{
		{
			Title: "Performance Analysis - June 2024",
			Type:  model.AnalysisPerformance,
			Date:  "2024-06-15",
			Score: 87,
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
		},
		{
			Title: "Predictive Analysis - Maintenance",
			Type:  model.AnalysisPredictive,
			Date:  "2024-06-10",
			Score: 92,
			Insights: []string{
				"CNC Lathe C3 shows wear in the hydraulic system",
				"Probability of failure within 15 days: 23%",
				"Maintenance history indicates a review is due",
			},
			Recommendations: []string{
				"Schedule preventive maintenance for CNC Lathe C3",
				"Check hydraulic fluid levels weekly",
				"Consider upgrading the monitoring system",
			},
		},
		{
			Title: "Monthly Report - May 2024",
			Type:  model.AnalysisMonthly,
			Date:  "2024-05-31",
			Score: 89,
			Insights: []string{
				"Overall plant efficiency: 91.2%",
				"Downtime reduced by 15% compared to April",
				"Welding Machine E5 is back in operation with excellent performance",
			},
			Recommendations: []string{
				"Keep the current preventive maintenance protocol",
				"Extend monitoring to auxiliary machines",
				"Implement automatic alerting",
			},
		},
	}
}

// Seed fills empty tables with the demo datasets. Tables that already
// hold rows are left alone.
func Seed(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Machine{}).Count(&count).Error; err != nil {
			return fmt.Errorf("count machines: %w", err)
		}
		if count == 0 {
			machines := SeedMachines()
			for i := range machines {
				machines[i].ID = uuid.NewString()
				machines[i].Ordinal = int64(i + 1)
			}
			if err := tx.Create(&machines).Error; err != nil {
				return fmt.Errorf("seed machines: %w", err)
			}
		}

		if err := tx.Model(&model.Analysis{}).Count(&count).Error; err != nil {
			return fmt.Errorf("count analyses: %w", err)
		}
		if count == 0 {
			analyses := SeedAnalyses()
			for i := range analyses {
				analyses[i].ID = uuid.NewString()
				analyses[i].Ordinal = int64(i + 1)
				analyses[i].Status = model.AnalysisCompleted
			}
			if err := tx.Create(&analyses).Error; err != nil {
				return fmt.Errorf("seed analyses: %w", err)
			}
		}
		return nil
	})
}
