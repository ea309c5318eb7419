package models

import (
	"time"

	"gorm.io/gorm"
)

// Invoice is a supplier invoice that may count towards a project's eligible spend.
type Invoice struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	TenantID  string         `gorm:"size:64;index;not null" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Number      string     `gorm:"size:50" json:"number,omitempty"`
	Supplier    string     `gorm:"size:255" json:"supplier,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
	Amount      float64    `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`
	Description string     `gorm:"type:text" json:"description,omitempty"`

	Eligible  bool   `gorm:"not null;default:false" json:"eligible"`
	Rationale string `gorm:"type:text" json:"rationale,omitempty"`

	// ProjectID is the project the invoice was last assigned to, if any.
	ProjectID *string `gorm:"size:36;index" json:"project_id,omitempty"`
}

// BeforeCreate assigns an ID when none was set.
func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = NewID()
	}
	return nil
}

// EligibleAmount is the amount counted in aggregates: 0 unless flagged eligible.
func (i *Invoice) EligibleAmount() float64 {
	if !i.Eligible || i.Amount < 0 {
		return 0
	}
	return i.Amount
}

func (i *Invoice) Clone() *Invoice {
	c := *i
	if i.Date != nil {
		d := *i.Date
		c.Date = &d
	}
	if i.ProjectID != nil {
		p := *i.ProjectID
		c.ProjectID = &p
	}
	return &c
}

// Allocation is the persisted form of one (employee, project) percentage.
// A zero percentage is never stored.
type Allocation struct {
	TenantID   string    `gorm:"primaryKey;size:64" json:"-"`
	EmployeeID string    `gorm:"primaryKey;size:36" json:"employeeId"`
	ProjectID  string    `gorm:"primaryKey;size:36" json:"projectId"`
	Percentage int       `gorm:"not null" json:"percentage"`
	UpdatedAt  time.Time `json:"-"`
}
