package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/Scan360AI/rnd-credit-manager/internal/apperr"
)

func TestSerialize_Shape(t *testing.T) {
	w := newWS(t, nil)
	emp, a, _ := seed(t, w)
	data, err := Serialize(w)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"monthlyHistory":{`, `"01/2024":{`, `"hourlyCost":20`, `"allocations":[`, `"employeeId":"` + emp + `"`, `"projectId":"` + a + `"`} {
		if !strings.Contains(s, want) {
			t.Errorf("serialized output lacks %s", want)
		}
	}

	st, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	back := NewFromState("acme", st)
	if got, want := back.Report().Summary, w.Report().Summary; got != want {
		t.Errorf("summary after reload = %+v, want %+v", got, want)
	}
}

func TestDeserialize_DropsOrphansAndNormalizes(t *testing.T) {
	doc := `{
		"version": 1,
		"employees": [{"id":"e1","name":"Mario","monthlyHistory":{"1/2024":{"hours":160,"hourlyCost":20,"monthlyCost":3200}}}],
		"projects": [{"id":"p1","name":"Alpha","year":2024,"type":"ricerca_industriale","status":"in_corso","assignedInvoices":["i1","ghost"]}],
		"invoices": [{"id":"i1","amount":100,"eligible":true,"projectId":"gone"}],
		"allocations": [
			{"employeeId":"e1","projectId":"p1","percentage":140},
			{"employeeId":"e1","projectId":"gone","percentage":20},
			{"employeeId":"ghost","projectId":"p1","percentage":20}
		]
	}`
	st, err := Deserialize([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Allocations) != 1 || st.Allocations[0].Percentage != 100 {
		t.Errorf("allocations = %+v", st.Allocations)
	}
	if got := st.Projects[0].AssignedInvoiceIDs; len(got) != 1 || got[0] != "i1" {
		t.Errorf("assigned = %v", got)
	}
	if st.Invoices[0].ProjectID != nil {
		t.Errorf("dangling invoice project kept")
	}
	if _, ok := st.Employees[0].Month("01/2024"); !ok {
		t.Errorf("month key not canonicalized: %+v", st.Employees[0].History)
	}
}

func TestDeserialize_Rejects(t *testing.T) {
	tests := map[string]string{
		"bad json":       `{`,
		"bad month":      `{"employees":[{"id":"e1","name":"A","monthlyHistory":{"2024-01":{}}}]}`,
		"duplicate id":   `{"projects":[{"id":"p1"},{"id":"p1"}]}`,
		"future format":  `{"version":99}`,
		"inverted dates": `{"projects":[{"id":"p1","name":"A","startDate":"2024-12-31","endDate":"2024-01-01"}]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Deserialize([]byte(doc)); !apperr.IsValidation(err) {
				t.Errorf("got %v want ValidationError", err)
			}
		})
	}
}

func TestReplace(t *testing.T) {
	w := newWS(t, nil)
	seed(t, w)
	st, err := Deserialize([]byte(`{"employees":[{"id":"x","name":"Solo"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Replace(context.Background(), st); err != nil {
		t.Fatal(err)
	}
	if got := w.Employees(); len(got) != 1 || got[0].Name != "Solo" || got[0].TenantID != "acme" {
		t.Errorf("employees = %+v", got)
	}
	if len(w.Projects()) != 0 || len(w.Allocations()) != 0 {
		t.Errorf("old content survived")
	}
}

type stubLoader struct {
	st    State
	calls int
}

func (l *stubLoader) Load(context.Context, string) (State, error) {
	l.calls++
	return l.st, nil
}

func TestRegistry_LoadsOnce(t *testing.T) {
	st, _ := Deserialize([]byte(`{"employees":[{"id":"e1","name":"A"}],"projects":[{"id":"p1","name":"P"}],
		"allocations":[{"employeeId":"e1","projectId":"p1","percentage":50}]}`))
	l := &stubLoader{st: st}
	r := NewRegistry(l)
	ctx := context.Background()
	w1, err := r.Get(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	w2, _ := r.Get(ctx, "t1")
	if w1 != w2 || l.calls != 1 {
		t.Errorf("loader called %d times", l.calls)
	}
	if got := w1.Snapshot().Allocations.Get("e1", "p1"); got != 50 {
		t.Errorf("allocation = %d", got)
	}
	r.Evict("t1")
	r.Get(ctx, "t1")
	if l.calls != 2 {
		t.Errorf("evict did not force reload")
	}
	if got := r.Tenants(); len(got) != 1 || got[0] != "t1" {
		t.Errorf("tenants = %v", got)
	}
}
