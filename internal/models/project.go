package models

import (
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusSuspended ProjectStatus = "suspended"
)

// ParseProjectStatus accepts the English values and their Italian equivalents.
func ParseProjectStatus(s string) (ProjectStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active", "in_corso":
		return ProjectStatusActive, true
	case "completed", "completato":
		return ProjectStatusCompleted, true
	case "suspended", "sospeso":
		return ProjectStatusSuspended, true
	}
	return "", false
}

const DefaultProjectType = "ricerca_industriale"

// Project is an R&D project that receives allocated labor and invoices.
type Project struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	TenantID  string         `gorm:"size:64;index;not null" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name        string        `gorm:"size:255" json:"name"`
	Year        int           `gorm:"not null" json:"year"`
	Type        string        `gorm:"size:40;not null" json:"type"`
	Description string        `gorm:"type:text" json:"description,omitempty"`
	Status      ProjectStatus `gorm:"size:20;default:'active'" json:"status"`
	StartDate   *time.Time    `json:"start_date,omitempty"`
	EndDate     *time.Time    `json:"end_date,omitempty"`

	AssignedInvoiceIDs []string `gorm:"serializer:json" json:"assigned_invoice_ids"`
}

// BeforeCreate assigns an ID when none was set.
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	return nil
}

// ValidDates reports whether start <= end when both are set.
func (p *Project) ValidDates() bool {
	if p.StartDate == nil || p.EndDate == nil {
		return true
	}
	return !p.StartDate.After(*p.EndDate)
}

func (p *Project) HasInvoice(id string) bool {
	return slices.Contains(p.AssignedInvoiceIDs, id)
}

// ToggleInvoice adds id to the assigned set or removes it, returning true when added.
func (p *Project) ToggleInvoice(id string) bool {
	if i := slices.Index(p.AssignedInvoiceIDs, id); i >= 0 {
		p.AssignedInvoiceIDs = slices.Delete(p.AssignedInvoiceIDs, i, i+1)
		return false
	}
	p.AssignedInvoiceIDs = append(p.AssignedInvoiceIDs, id)
	return true
}

// Clone returns a copy with its own invoice set and dates.
func (p *Project) Clone() *Project {
	c := *p
	c.AssignedInvoiceIDs = slices.Clone(p.AssignedInvoiceIDs)
	if p.StartDate != nil {
		d := *p.StartDate
		c.StartDate = &d
	}
	if p.EndDate != nil {
		d := *p.EndDate
		c.EndDate = &d
	}
	return &c
}

// ProjectType is a seeded reference row for the credit-rate table.
type ProjectType struct {
	Code  string  `gorm:"primaryKey;size:40" json:"code"`
	Label string  `gorm:"size:100;not null" json:"label"`
	Rate  float64 `gorm:"type:decimal(5,4);not null" json:"rate"`
	Color string  `gorm:"size:7" json:"color"`
}
