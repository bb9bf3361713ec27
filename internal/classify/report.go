// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/mesh-intelligence/faculty-sync/internal/store"
)

// Report summarizes the classified_users table joined with
// researcher details.
type Report struct {
	GeneratedAt     time.Time         `json:"generated_at" yaml:"generated_at"`
	TotalClassified int               `json:"total_classified" yaml:"total_classified"`
	MethodCounts    map[string]int    `json:"method_counts" yaml:"method_counts"`
	KeywordCounts   map[string]int    `json:"keyword_counts" yaml:"keyword_counts"`
	Researchers     []ResearcherEntry `json:"researchers" yaml:"researchers"`
}

// ResearcherEntry is one classified researcher in the report.
type ResearcherEntry struct {
	UserID        string   `json:"user_id" yaml:"user_id"`
	Name          string   `json:"name" yaml:"name"`
	Email         string   `json:"email,omitempty" yaml:"email,omitempty"`
	Position      string   `json:"position,omitempty" yaml:"position,omitempty"`
	IdentifiedVia []string `json:"identified_via" yaml:"identified_via"`
	Keywords      []string `json:"keywords" yaml:"keywords"`
	DateAdded     string   `json:"date_added" yaml:"date_added"`
}

// Summarize builds a Report from the stored classifications.
func Summarize(ctx context.Context, st *store.Store) (*Report, error) {
	rows, err := st.ClassifiedResearchers(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		GeneratedAt:     time.Now().UTC(),
		TotalClassified: len(rows),
		MethodCounts:    make(map[string]int),
		KeywordCounts:   make(map[string]int),
	}
	for _, row := range rows {
		for _, m := range row.IdentifiedVia {
			report.MethodCounts[m]++
		}
		for _, k := range row.MatchedKeywords {
			report.KeywordCounts[k]++
		}
		report.Researchers = append(report.Researchers, ResearcherEntry{
			UserID:        row.UserID,
			Name:          strings.TrimSpace(row.FirstName + " " + row.LastName),
			Email:         row.Email,
			Position:      row.Position,
			IdentifiedVia: row.IdentifiedVia,
			Keywords:      row.MatchedKeywords,
			DateAdded:     row.DateAdded.Format("2006-01-02"),
		})
	}
	return report, nil
}

// WriteYAML writes the report to path.
func (r *Report) WriteYAML(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Print writes a human-readable account of the report to w.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "%d researchers classified\n", r.TotalClassified)

	methods := make([]string, 0, len(r.MethodCounts))
	for m := range r.MethodCounts {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	for _, m := range methods {
		fmt.Fprintf(w, "  via %s: %d\n", m, r.MethodCounts[m])
	}

	if len(r.KeywordCounts) > 0 {
		fmt.Fprintln(w, "keywords:")
		terms := make([]string, 0, len(r.KeywordCounts))
		for term := range r.KeywordCounts {
			terms = append(terms, term)
		}
		sort.Slice(terms, func(i, j int) bool {
			if r.KeywordCounts[terms[i]] != r.KeywordCounts[terms[j]] {
				return r.KeywordCounts[terms[i]] > r.KeywordCounts[terms[j]]
			}
			return terms[i] < terms[j]
		})
		for _, term := range terms {
			fmt.Fprintf(w, "  %-28s %d\n", term, r.KeywordCounts[term])
		}
	}

	if len(r.Researchers) > 0 {
		fmt.Fprintln(w, "researchers:")
		for _, entry := range r.Researchers {
			fmt.Fprintf(w, "  %-10s %-24s %s\n", entry.UserID, entry.Name, strings.Join(entry.Keywords, ", "))
		}
	}
}
