// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/mesh-intelligence/faculty-sync/internal/store"
	"github.com/mesh-intelligence/faculty-sync/pkg/types"
)

// Classifier scans stored titles and records qualifying researchers
// in the classified_users table.
type Classifier struct {
	store    *store.Store
	keywords []Keyword
	method   string
	w        io.Writer
}

// New builds a Classifier from cfg. The method defaults to the
// initial scan; cfg.Intersection switches to the intersection
// taxonomy, and cfg.KeywordFile replaces the built-in terms.
func New(st *store.Store, cfg types.ClassifyConfig, w io.Writer) (*Classifier, error) {
	method := cfg.Method
	if cfg.Intersection {
		method = MethodIntersectionScan
	}
	if method == "" {
		method = MethodInitialScan
	}

	var keywords []Keyword
	switch {
	case cfg.KeywordFile != "":
		kws, err := LoadKeywordFile(cfg.KeywordFile)
		if err != nil {
			return nil, err
		}
		keywords = kws
	case method == MethodInitialScan:
		keywords = DefaultKeywords()
	case method == MethodIntersectionScan:
		keywords = IntersectionKeywords()
	default:
		return nil, fmt.Errorf("unknown classification method %q", method)
	}

	return &Classifier{store: st, keywords: keywords, method: method, w: w}, nil
}

// Result counts one classification pass.
type Result struct {
	PublicationsScanned int `json:"publications_scanned" yaml:"publications_scanned"`
	GrantsScanned       int `json:"grants_scanned" yaml:"grants_scanned"`
	Qualified           int `json:"qualified" yaml:"qualified"`
	Inserted            int `json:"inserted" yaml:"inserted"`
	Updated             int `json:"updated" yaml:"updated"`
}

// Run scans every stored publication and grant title and upserts a
// classification row for each researcher whose work matches the
// taxonomy. Matches only ever accumulate; a later pass never
// unclassifies a researcher.
func (c *Classifier) Run(ctx context.Context) (*Result, error) {
	pubs, err := c.store.PublicationTitles(ctx)
	if err != nil {
		return nil, err
	}
	grants, err := c.store.GrantTitles(ctx)
	if err != nil {
		return nil, err
	}

	matches := make(map[string]map[string]struct{})
	scan := func(rows []store.TitleRow) {
		for _, row := range rows {
			title := strings.ToLower(row.Title)
			for _, kw := range c.keywords {
				if strings.Contains(title, kw.Term) {
					if matches[row.UserID] == nil {
						matches[row.UserID] = make(map[string]struct{})
					}
					matches[row.UserID][kw.Term] = struct{}{}
				}
			}
		}
	}
	scan(pubs)
	scan(grants)

	result := &Result{
		PublicationsScanned: len(pubs),
		GrantsScanned:       len(grants),
		Qualified:           len(matches),
	}

	userIDs := make([]string, 0, len(matches))
	for id := range matches {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)

	now := time.Now().UTC()
	for _, id := range userIDs {
		terms := make([]string, 0, len(matches[id]))
		for term := range matches[id] {
			terms = append(terms, term)
		}
		sort.Strings(terms)

		op, err := c.store.UpsertClassification(ctx, types.ClassificationRecord{
			UserID:          id,
			IdentifiedVia:   []string{c.method},
			MatchedKeywords: terms,
			DateAdded:       now,
		})
		if err != nil {
			return nil, fmt.Errorf("classifying user %s: %w", id, err)
		}
		if op == store.OpInserted {
			result.Inserted++
		} else {
			result.Updated++
		}
		fmt.Fprintf(c.w, "%s %s: %s\n", op, id, strings.Join(terms, ", "))
	}

	return result, nil
}
