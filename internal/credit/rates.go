// Package credit applies the R&D tax-credit rate table to aggregated project costs.
package credit

import (
	"sort"
	"sync"

	"github.com/Scan360AI/rnd-credit-manager/internal/models"
)

// DefaultRate applies to any project type not in the table.
const DefaultRate = 0.10

// TypeInfo describes one project type.
type TypeInfo struct {
	Code  string  `json:"code"`
	Label string  `json:"label"`
	Rate  float64 `json:"rate"`
	Color string  `json:"color"`
}

var builtinTypes = []TypeInfo{
	{Code: "ricerca_fondamentale", Label: "Ricerca Fondamentale", Rate: 0.12, Color: "#9b59b6"},
	{Code: "ricerca_industriale", Label: "Ricerca Industriale", Rate: 0.10, Color: "#3498db"},
	{Code: "sviluppo_sperimentale", Label: "Sviluppo Sperimentale", Rate: 0.10, Color: "#e74c3c"},
	{Code: "innovazione_tecnologica", Label: "Innovazione Tecnologica", Rate: 0.10, Color: "#f39c12"},
	{Code: "innovazione_4.0", Label: "Innovazione 4.0", Rate: 0.15, Color: "#27ae60"},
	{Code: "innovazione_green", Label: "Innovazione Green", Rate: 0.15, Color: "#16a085"},
	{Code: "design", Label: "Design e Ideazione Estetica", Rate: 0.10, Color: "#e91e63"},
}

// BuiltinTypes returns a copy of the built-in project type catalog.
func BuiltinTypes() []TypeInfo {
	return append([]TypeInfo(nil), builtinTypes...)
}

// Table is a project-type lookup. The zero value is not usable; use NewTable.
type Table struct {
	mu    sync.RWMutex
	types map[string]TypeInfo
}

// NewTable builds a table from the built-in catalog.
func NewTable() *Table {
	t := &Table{types: make(map[string]TypeInfo, len(builtinTypes))}
	for _, ti := range builtinTypes {
		t.types[ti.Code] = ti
	}
	return t
}

// Override replaces or adds entries, typically from the project_types reference table.
func (t *Table) Override(rows []models.ProjectType) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range rows {
		if r.Code == "" || r.Rate < 0 || r.Rate > 1 {
			continue
		}
		t.types[r.Code] = TypeInfo{Code: r.Code, Label: r.Label, Rate: r.Rate, Color: r.Color}
	}
}

// Rate returns the credit rate for a project type, DefaultRate when unknown.
func (t *Table) Rate(projectType string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if ti, ok := t.types[projectType]; ok {
		return ti.Rate
	}
	return DefaultRate
}

// Info returns the type description; unknown types get a generic entry.
func (t *Table) Info(projectType string) TypeInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if ti, ok := t.types[projectType]; ok {
		return ti
	}
	return TypeInfo{Code: projectType, Label: projectType, Rate: DefaultRate, Color: "#95a5a6"}
}

func (t *Table) Known(projectType string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.types[projectType]
	return ok
}

// Types lists all entries ordered by code.
func (t *Table) Types() []TypeInfo {
	t.mu.RLock()
	out := make([]TypeInfo, 0, len(t.types))
	for _, ti := range t.types {
		out = append(out, ti)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Rows converts the table into seedable reference rows.
func (t *Table) Rows() []models.ProjectType {
	types := t.Types()
	rows := make([]models.ProjectType, 0, len(types))
	for _, ti := range types {
		rows = append(rows, models.ProjectType{Code: ti.Code, Label: ti.Label, Rate: ti.Rate, Color: ti.Color})
	}
	return rows
}
