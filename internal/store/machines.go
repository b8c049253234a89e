package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"perfdash-backend/internal/model"
)

// MachineFields are the user-editable attributes of a machine.
type MachineFields struct {
	Name          string
	StandardCycle int
	Observations  string
	Status        model.MachineStatus
}

// Normalize trims text fields and defaults an empty status to active.
func (f MachineFields) Normalize() MachineFields {
	f.Name = strings.TrimSpace(f.Name)
	f.Observations = strings.TrimSpace(f.Observations)
	if f.Status == "" {
		f.Status = model.MachineActive
	}
	return f
}

// Validate checks the registry invariants on normalized fields.
func (f MachineFields) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if f.StandardCycle <= 0 {
		return fmt.Errorf("%w: standard cycle must be a positive number of minutes", ErrValidation)
	}
	if !f.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, f.Status)
	}
	return nil
}

// ListMachines returns the registry in insertion order.
func (s *gormStore) ListMachines(ctx context.Context) ([]model.Machine, error) {
	var machines []model.Machine
	if err := s.db.WithContext(ctx).Order("ordinal ASC").Find(&machines).Error; err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	return machines, nil
}

func (s *gormStore) GetMachine(ctx context.Context, id string) (model.Machine, error) {
	var machine model.Machine
	if err := s.db.WithContext(ctx).First(&machine, "id = ?", id).Error; err != nil {
		return model.Machine{}, notFoundOr(err)
	}
	return machine, nil
}

// CreateMachine assigns a fresh id and today's date and appends the machine
// to the end of the registry.
func (s *gormStore) CreateMachine(ctx context.Context, fields MachineFields) (model.Machine, error) {
	fields = fields.Normalize()
	if err := fields.Validate(); err != nil {
		return model.Machine{}, err
	}

	machine := model.Machine{
		ID:            uuid.NewString(),
		Name:          fields.Name,
		StandardCycle: fields.StandardCycle,
		Observations:  fields.Observations,
		Status:        fields.Status,
		CreatedOn:     s.now().Format(model.DateLayout),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int64
		if err := tx.Model(&model.Machine{}).Select("COALESCE(MAX(ordinal), 0)").Scan(&last).Error; err != nil {
			return fmt.Errorf("failed to read last ordinal: %w", err)
		}
		machine.Ordinal = last + 1
		if err := tx.Create(&machine).Error; err != nil {
			return fmt.Errorf("failed to create machine: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Machine{}, err
	}
	return machine, nil
}

// UpdateMachine replaces the editable fields of an existing machine. An
// unknown id leaves the registry untouched and yields ErrNotFound.
func (s *gormStore) UpdateMachine(ctx context.Context, id string, fields MachineFields) (model.Machine, error) {
	fields = fields.Normalize()
	if err := fields.Validate(); err != nil {
		return model.Machine{}, err
	}

	var updated model.Machine
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Machine{}).Where("id = ?", id).Updates(map[string]any{
			"name":           fields.Name,
			"standard_cycle": fields.StandardCycle,
			"observations":   fields.Observations,
			"status":         fields.Status,
		})
		if res.Error != nil {
			return fmt.Errorf("failed to update machine %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.First(&updated, "id = ?", id).Error
	})
	if err != nil {
		return model.Machine{}, notFoundOr(err)
	}
	return updated, nil
}

// DeleteMachine removes the machine. Deleting an unknown id is a no-op.
func (s *gormStore) DeleteMachine(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&model.Machine{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete machine %s: %w", id, err)
	}
	return nil
}
