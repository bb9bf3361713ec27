// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mesh-intelligence/faculty-sync/pkg/types"
)

// UpsertClassification records that a user qualified under the given
// scan methods and keywords. The first qualification inserts the row;
// later ones merge new methods and keywords into it while keeping the
// original date_added, so re-running a scan never shrinks or
// duplicates a classification.
func (s *Store) UpsertClassification(ctx context.Context, rec types.ClassificationRecord) (WriteOp, error) {
	keywords := unionSorted(nil, rec.MatchedKeywords)
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return 0, fmt.Errorf("encoding matched keywords: %w", err)
	}
	methods := strings.Join(unionOrdered(nil, rec.IdentifiedVia), ",")
	dateAdded := rec.DateAdded.UTC().Format(time.RFC3339)

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO classified_users
			(user_id, identified_via, matched_keywords, date_added)
		 VALUES (?, ?, ?, ?)`,
		rec.UserID, methods, string(keywordsJSON), dateAdded,
	)
	if err != nil {
		return 0, wrapWriteErr("classified_users", rec.UserID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, wrapWriteErr("classified_users", rec.UserID, err)
	} else if n > 0 {
		return OpInserted, nil
	}

	// Merge into the existing row inside a transaction so concurrent
	// scans cannot drop each other's additions.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapWriteErr("classified_users", rec.UserID, err)
	}
	defer tx.Rollback()

	var existingMethods, existingKeywords string
	err = tx.QueryRowContext(ctx,
		`SELECT identified_via, matched_keywords FROM classified_users WHERE user_id = ?`,
		rec.UserID,
	).Scan(&existingMethods, &existingKeywords)
	if err != nil {
		return 0, wrapWriteErr("classified_users", rec.UserID, err)
	}

	var oldKeywords []string
	if err := json.Unmarshal([]byte(existingKeywords), &oldKeywords); err != nil {
		return 0, fmt.Errorf("parsing stored keywords for %s: %w", rec.UserID, err)
	}
	mergedKeywords, err := json.Marshal(unionSorted(oldKeywords, rec.MatchedKeywords))
	if err != nil {
		return 0, fmt.Errorf("encoding matched keywords: %w", err)
	}
	mergedMethods := strings.Join(unionOrdered(splitMethods(existingMethods), rec.IdentifiedVia), ",")

	_, err = tx.ExecContext(ctx,
		`UPDATE classified_users SET identified_via = ?, matched_keywords = ? WHERE user_id = ?`,
		mergedMethods, string(mergedKeywords), rec.UserID,
	)
	if err != nil {
		return 0, wrapWriteErr("classified_users", rec.UserID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, wrapWriteErr("classified_users", rec.UserID, err)
	}
	return OpUpdated, nil
}

// Classifications returns every stored classification ordered by user id.
func (s *Store) Classifications(ctx context.Context) ([]types.ClassificationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, identified_via, matched_keywords, date_added
		 FROM classified_users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []types.ClassificationRecord
	for rows.Next() {
		var userID, methods, keywordsJSON, dateAdded string
		if err := rows.Scan(&userID, &methods, &keywordsJSON, &dateAdded); err != nil {
			return nil, fmt.Errorf("scanning classification: %w", err)
		}
		rec, err := parseClassification(userID, methods, keywordsJSON, dateAdded)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// TitleRow pairs an activity title with its owning user.
type TitleRow struct {
	UserID string
	Title  string
}

// PublicationTitles returns the title of every stored publication.
func (s *Store) PublicationTitles(ctx context.Context) ([]TitleRow, error) {
	return s.titleRows(ctx,
		`SELECT user_id, title FROM publications WHERE title IS NOT NULL AND title != ''`)
}

// GrantTitles returns the title of every stored grant.
func (s *Store) GrantTitles(ctx context.Context) ([]TitleRow, error) {
	return s.titleRows(ctx,
		`SELECT user_id, title FROM grants WHERE title IS NOT NULL AND title != ''`)
}

func (s *Store) titleRows(ctx context.Context, query string) ([]TitleRow, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []TitleRow
	for rows.Next() {
		var row TitleRow
		if err := rows.Scan(&row.UserID, &row.Title); err != nil {
			return nil, fmt.Errorf("scanning title row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ClassifiedResearcher joins a classification with its user profile
// for reporting and export.
type ClassifiedResearcher struct {
	types.ClassificationRecord

	FirstName string
	LastName  string
	Email     string
	Position  string
}

// ClassifiedResearchers returns every classification joined with the
// owning user's profile, ordered by user id.
func (s *Store) ClassifiedResearchers(ctx context.Context) ([]ClassifiedResearcher, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.user_id, c.identified_via, c.matched_keywords, c.date_added,
			COALESCE(u.firstname, ''), COALESCE(u.lastname, ''),
			COALESCE(u.email, ''), COALESCE(u.position, '')
		 FROM classified_users c
		 LEFT JOIN users u ON u.id = c.user_id
		 ORDER BY c.user_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []ClassifiedResearcher
	for rows.Next() {
		var userID, methods, keywordsJSON, dateAdded string
		var r ClassifiedResearcher
		err := rows.Scan(&userID, &methods, &keywordsJSON, &dateAdded,
			&r.FirstName, &r.LastName, &r.Email, &r.Position)
		if err != nil {
			return nil, fmt.Errorf("scanning classified researcher: %w", err)
		}
		r.ClassificationRecord, err = parseClassification(userID, methods, keywordsJSON, dateAdded)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func parseClassification(userID, methods, keywordsJSON, dateAdded string) (types.ClassificationRecord, error) {
	rec := types.ClassificationRecord{UserID: userID}
	rec.IdentifiedVia = splitMethods(methods)
	if err := json.Unmarshal([]byte(keywordsJSON), &rec.MatchedKeywords); err != nil {
		return rec, fmt.Errorf("parsing matched_keywords for %s: %w", userID, err)
	}
	t, err := time.Parse(time.RFC3339, dateAdded)
	if err != nil {
		return rec, fmt.Errorf("parsing date_added for %s: %w", userID, err)
	}
	rec.DateAdded = t
	return rec, nil
}

func splitMethods(methods string) []string {
	if methods == "" {
		return nil
	}
	return strings.Split(methods, ",")
}

// unionSorted returns the deduplicated union of a and b, sorted.
func unionSorted(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// unionOrdered returns the deduplicated union of a and b, preserving
// first-appearance order.
func unionOrdered(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
