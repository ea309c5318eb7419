package extraction

import (
	"sort"
	"strings"

	"github.com/fiam/gounidecode/unidecode"
	"github.com/schollz/closestmatch"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

const (
	// GroupSimilarity merges two payslip names into one employee.
	GroupSimilarity = 0.9
	// MatchSimilarity accepts an existing employee as the owner of a payslip.
	MatchSimilarity = 0.85
)

// Group collects the payslips of one employee.
type Group struct {
	FiscalCode string    `json:"fiscal_code,omitempty"`
	Name       string    `json:"name"`
	Role       string    `json:"role,omitempty"`
	Payslips   []Payslip `json:"payslips"`

	folded string
}

// FoldName lower-cases, strips accents and sorts tokens so that "Rossi Mário" and
// "mario rossi" compare equal.
func FoldName(name string) string {
	tokens := strings.Fields(strings.ToLower(unidecode.Unidecode(name)))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// Similarity is 1 - levenshtein distance / longer length.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1
	}
	d := levenshtein.DistanceForStrings(ra, rb, levenshtein.DefaultOptions)
	return 1 - float64(d)/float64(maxLen)
}

// GroupPayslips groups payslips by fiscal code, falling back to the folded name.
// Near-identical names are merged, and a name-only group is adopted by the first
// payslip that brings a fiscal code for it. Groups keep first-seen order.
func GroupPayslips(payslips []Payslip) []Group {
	var groups []*Group
	byCode := map[string]*Group{}

	findByName := func(folded string, wantNoCode bool) *Group {
		if folded == "" {
			return nil
		}
		for _, g := range groups {
			if wantNoCode && g.FiscalCode != "" {
				continue
			}
			if g.folded != "" && Similarity(g.folded, folded) >= GroupSimilarity {
				return g
			}
		}
		return nil
	}

	for _, p := range payslips {
		code := p.Code()
		folded := FoldName(p.Name())
		var g *Group
		switch {
		case code != "":
			g = byCode[code]
			if g == nil {
				if g = findByName(folded, true); g != nil {
					g.FiscalCode = code
					byCode[code] = g
				}
			}
		default:
			g = findByName(folded, false)
		}
		if g == nil {
			g = &Group{FiscalCode: code, folded: folded}
			if code != "" {
				byCode[code] = g
			}
			groups = append(groups, g)
		}
		if g.Name == "" {
			g.Name = p.Name()
			g.folded = folded
		}
		if g.Role == "" {
			g.Role = p.Qualification()
		}
		g.Payslips = append(g.Payslips, p)
	}

	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = *g
	}
	return out
}

// MatchEmployee finds the candidate whose name best matches name. Candidates map
// employee id to display name.
func MatchEmployee(name string, candidates map[string]string) (string, bool) {
	folded := FoldName(name)
	if folded == "" || len(candidates) == 0 {
		return "", false
	}
	ids := make([]string, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	owner := map[string]string{}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		f := FoldName(candidates[id])
		if f == "" {
			continue
		}
		if f == folded {
			return id, true
		}
		if _, dup := owner[f]; !dup {
			owner[f] = id
			names = append(names, f)
		}
	}
	if len(names) == 0 {
		return "", false
	}
	best := closestmatch.New(names, []int{2, 3}).Closest(folded)
	if best == "" || Similarity(best, folded) < MatchSimilarity {
		return "", false
	}
	return owner[best], true
}
