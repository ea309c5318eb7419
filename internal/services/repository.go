// Package services persists workspaces with gorm and serves cached reports.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/Scan360AI/rnd-credit-manager/internal/allocation"
	"github.com/Scan360AI/rnd-credit-manager/internal/engine"
	"github.com/Scan360AI/rnd-credit-manager/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var log = slog.Default().With(slog.String("layer", "service"), slog.String("service", "repository"))

// Repository stores tenant state in the database. It implements engine.Persister
// and engine.Loader.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository { return &Repository{db: db} }

var (
	_ engine.Persister = (*Repository)(nil)
	_ engine.Loader    = (*Repository)(nil)
)

func (r *Repository) Transaction(ctx context.Context, fn func(tx engine.Persister) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func upsert(db *gorm.DB, value any) error {
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Omit(clause.Associations).Create(value).Error
}

// SaveEmployee upserts the employee and replaces its monthly history rows.
func (r *Repository) SaveEmployee(ctx context.Context, tenant string, e *models.Employee) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := *e
		row.TenantID = tenant
		row.History = nil
		row.DeletedAt = gorm.DeletedAt{}
		if err := upsert(tx, &row); err != nil {
			return err
		}
		if err := tx.Where("employee_id = ?", e.ID).Delete(&models.MonthlyCost{}).Error; err != nil {
			return err
		}
		if len(e.History) == 0 {
			return nil
		}
		months := make([]models.MonthlyCost, len(e.History))
		for i, m := range e.History {
			m.ID = 0
			m.EmployeeID = e.ID
			months[i] = m
		}
		return tx.Create(&months).Error
	})
}

func (r *Repository) DeleteEmployee(ctx context.Context, tenant, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("tenant_id = ? AND employee_id = ?", tenant, id).Delete(&models.Allocation{}).Error; err != nil {
		return err
	}
	return db.Where("tenant_id = ? AND id = ?", tenant, id).Delete(&models.Employee{}).Error
}

func (r *Repository) SaveProject(ctx context.Context, tenant string, p *models.Project) error {
	row := *p
	row.TenantID = tenant
	row.DeletedAt = gorm.DeletedAt{}
	return upsert(r.db.WithContext(ctx), &row)
}

func (r *Repository) DeleteProject(ctx context.Context, tenant, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("tenant_id = ? AND project_id = ?", tenant, id).Delete(&models.Allocation{}).Error; err != nil {
		return err
	}
	return db.Where("tenant_id = ? AND id = ?", tenant, id).Delete(&models.Project{}).Error
}

func (r *Repository) SaveInvoice(ctx context.Context, tenant string, inv *models.Invoice) error {
	row := *inv
	row.TenantID = tenant
	row.DeletedAt = gorm.DeletedAt{}
	return upsert(r.db.WithContext(ctx), &row)
}

func (r *Repository) DeleteInvoice(ctx context.Context, tenant, id string) error {
	return r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenant, id).Delete(&models.Invoice{}).Error
}

// SaveAllocations applies changes in order. A change to 0 deletes the row.
func (r *Repository) SaveAllocations(ctx context.Context, tenant string, changes []allocation.Change) error {
	if len(changes) == 0 {
		return nil
	}
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range changes {
			if c.New == 0 {
				err := tx.Where("tenant_id = ? AND employee_id = ? AND project_id = ?",
					tenant, c.Key.EmployeeID, c.Key.ProjectID).Delete(&models.Allocation{}).Error
				if err != nil {
					return err
				}
				continue
			}
			row := models.Allocation{
				TenantID:   tenant,
				EmployeeID: c.Key.EmployeeID,
				ProjectID:  c.Key.ProjectID,
				Percentage: c.New,
				UpdatedAt:  now,
			}
			if err := upsert(tx, &row); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceState hard-deletes the tenant's rows and writes st in their place.
func (r *Repository) ReplaceState(ctx context.Context, tenant string, st engine.State) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing := tx.Unscoped().Model(&models.Employee{}).Select("id").Where("tenant_id = ?", tenant)
		if err := tx.Where("employee_id IN (?)", existing).Delete(&models.MonthlyCost{}).Error; err != nil {
			return err
		}
		for _, m := range []any{&models.Allocation{}, &models.Invoice{}, &models.Project{}, &models.Employee{}} {
			if err := tx.Unscoped().Where("tenant_id = ?", tenant).Delete(m).Error; err != nil {
				return err
			}
		}
		repo := &Repository{db: tx}
		for _, e := range st.Employees {
			if err := repo.SaveEmployee(ctx, tenant, e); err != nil {
				return err
			}
		}
		for _, p := range st.Projects {
			if err := repo.SaveProject(ctx, tenant, p); err != nil {
				return err
			}
		}
		for _, inv := range st.Invoices {
			if err := repo.SaveInvoice(ctx, tenant, inv); err != nil {
				return err
			}
		}
		changes := make([]allocation.Change, 0, len(st.Allocations))
		for _, a := range st.Allocations {
			changes = append(changes, allocation.Change{
				Key: allocation.Key{EmployeeID: a.EmployeeID, ProjectID: a.ProjectID},
				New: a.Percentage,
			})
		}
		if err := repo.SaveAllocations(ctx, tenant, changes); err != nil {
			return err
		}
		log.Info("replace-state:ok", slog.String("tenant", tenant),
			slog.Int("employees", len(st.Employees)), slog.Int("projects", len(st.Projects)))
		return nil
	})
}

// Load reads every live row of the tenant.
func (r *Repository) Load(ctx context.Context, tenant string) (engine.State, error) {
	db := r.db.WithContext(ctx)
	var st engine.State
	err := db.Where("tenant_id = ?", tenant).
		Preload("History", func(tx *gorm.DB) *gorm.DB { return tx.Order("month") }).
		Order("name, id").Find(&st.Employees).Error
	if err != nil {
		return engine.State{}, err
	}
	if err := db.Where("tenant_id = ?", tenant).Order("name, id").Find(&st.Projects).Error; err != nil {
		return engine.State{}, err
	}
	if err := db.Where("tenant_id = ?", tenant).Order("id").Find(&st.Invoices).Error; err != nil {
		return engine.State{}, err
	}
	var rows []models.Allocation
	if err := db.Where("tenant_id = ?", tenant).Order("employee_id, project_id").Find(&rows).Error; err != nil {
		return engine.State{}, err
	}
	for _, a := range rows {
		st.Allocations = append(st.Allocations, allocation.Entry{
			EmployeeID: a.EmployeeID,
			ProjectID:  a.ProjectID,
			Percentage: a.Percentage,
		})
	}
	return st, nil
}

// Tenants lists the tenants that have stored employees or projects.
func (r *Repository) Tenants(ctx context.Context) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).Raw(
		"SELECT tenant_id FROM employees WHERE deleted_at IS NULL UNION SELECT tenant_id FROM projects WHERE deleted_at IS NULL ORDER BY tenant_id",
	).Scan(&out).Error
	return out, err
}
