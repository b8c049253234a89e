package model

import "time"

// MachineStatus is the lifecycle marker of a registered machine.
type MachineStatus string

const (
	MachineActive      MachineStatus = "active"
	MachineInactive    MachineStatus = "inactive"
	MachineMaintenance MachineStatus = "maintenance"
)

// Valid reports whether s is one of the known machine statuses.
func (s MachineStatus) Valid() bool {
	switch s {
	case MachineActive, MachineInactive, MachineMaintenance:
		return true
	}
	return false
}

// DateLayout is the calendar-date format used for CreatedOn and Analysis.Date.
const DateLayout = "2006-01-02"

// Machine represents an industrial machine in the registry.
type Machine struct {
	ID            string        `gorm:"primaryKey;size:36" json:"id"`
	Ordinal       int64         `gorm:"index;not null" json:"-"`
	Name          string        `gorm:"size:256;not null" json:"name"`
	StandardCycle int           `gorm:"not null" json:"standardCycle"` // minutes
	Observations  string        `gorm:"type:text" json:"observations"`
	Status        MachineStatus `gorm:"size:16;not null" json:"status"`
	CreatedOn     string        `gorm:"size:10;not null" json:"createdAt"`
	UpdatedAt     time.Time     `json:"-"`
}
