// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/mesh-intelligence/faculty-sync/pkg/types"
)

// WriteOp reports whether an upsert inserted a new row or updated an
// existing one.
type WriteOp int

const (
	OpInserted WriteOp = iota
	OpUpdated
)

func (op WriteOp) String() string {
	if op == OpInserted {
		return "inserted"
	}
	return "updated"
}

// UpsertUser writes u keyed by its external id. A single INSERT OR
// IGNORE decides insert-vs-update: when the row already exists the
// insert is a no-op and an UPDATE overwrites the profile fields. Under
// concurrent writers the primary key arbitrates, so exactly one caller
// per id observes OpInserted.
func (s *Store) UpsertUser(ctx context.Context, u types.User) (WriteOp, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users
			(id, email, firstname, lastname, middlename, employmentstatus,
			 position, primaryunit, orcid, rank, url, lastlogin, pid)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FirstName, u.LastName, u.MiddleName, u.EmploymentStatus,
		u.Position, u.PrimaryUnit, u.ORCID, u.Rank, u.URL, u.LastLogin, u.PID,
	)
	if err != nil {
		return 0, wrapWriteErr("users", u.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, wrapWriteErr("users", u.ID, err)
	} else if n > 0 {
		return OpInserted, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET
			email = ?, firstname = ?, lastname = ?, middlename = ?,
			employmentstatus = ?, position = ?, primaryunit = ?, orcid = ?,
			rank = ?, url = ?, lastlogin = ?, pid = ?
		 WHERE id = ?`,
		u.Email, u.FirstName, u.LastName, u.MiddleName,
		u.EmploymentStatus, u.Position, u.PrimaryUnit, u.ORCID,
		u.Rank, u.URL, u.LastLogin, u.PID,
		u.ID,
	)
	if err != nil {
		return 0, wrapWriteErr("users", u.ID, err)
	}
	return OpUpdated, nil
}

// UpsertPublication writes p keyed by its activity id. Writing a
// publication whose owner is absent from users fails with
// types.ErrMissingOwner.
func (s *Store) UpsertPublication(ctx context.Context, p types.Publication) (WriteOp, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO publications
			(activity_id, user_id, type, title, journal, series_title, year,
			 month_season, publisher, publisher_location, publisher_country,
			 volume, issue_number, pages, isbn, issn, doi, url, description,
			 origin, status, term, status_year)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ActivityID, p.UserID, p.Type, p.Title, p.Journal, p.SeriesTitle, p.Year,
		p.MonthSeason, p.Publisher, p.PublisherLocation, p.PublisherCountry,
		p.Volume, p.IssueNumber, p.Pages, p.ISBN, p.ISSN, p.DOI, p.URL, p.Description,
		p.Origin, p.Status, p.Term, p.StatusYear,
	)
	if err != nil {
		return 0, wrapWriteErr("publications", p.ActivityID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, wrapWriteErr("publications", p.ActivityID, err)
	} else if n > 0 {
		return OpInserted, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE publications SET
			user_id = ?, type = ?, title = ?, journal = ?, series_title = ?,
			year = ?, month_season = ?, publisher = ?, publisher_location = ?,
			publisher_country = ?, volume = ?, issue_number = ?, pages = ?,
			isbn = ?, issn = ?, doi = ?, url = ?, description = ?, origin = ?,
			status = ?, term = ?, status_year = ?
		 WHERE activity_id = ?`,
		p.UserID, p.Type, p.Title, p.Journal, p.SeriesTitle,
		p.Year, p.MonthSeason, p.Publisher, p.PublisherLocation,
		p.PublisherCountry, p.Volume, p.IssueNumber, p.Pages,
		p.ISBN, p.ISSN, p.DOI, p.URL, p.Description, p.Origin,
		p.Status, p.Term, p.StatusYear,
		p.ActivityID,
	)
	if err != nil {
		return 0, wrapWriteErr("publications", p.ActivityID, err)
	}
	return OpUpdated, nil
}

// UpsertGrant writes g keyed by its activity id. Writing a grant whose
// owner is absent from users fails with types.ErrMissingOwner.
func (s *Store) UpsertGrant(ctx context.Context, g types.Grant) (WriteOp, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO grants
			(activity_id, user_id, title, sponsor, grant_number, award_date,
			 start_date, end_date, period_length, period_unit, periods,
			 indirect_funding, indirect_cost_rate, total_funding,
			 total_direct_funding, currency, description, abstract, url,
			 status, term, status_year)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ActivityID, g.UserID, g.Title, g.Sponsor, g.GrantNumber, g.AwardDate,
		g.StartDate, g.EndDate, g.PeriodLength, g.PeriodUnit, g.Periods,
		g.IndirectFunding, g.IndirectCostRate, g.TotalFunding,
		g.TotalDirectFunding, g.Currency, g.Description, g.Abstract, g.URL,
		g.Status, g.Term, g.StatusYear,
	)
	if err != nil {
		return 0, wrapWriteErr("grants", g.ActivityID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, wrapWriteErr("grants", g.ActivityID, err)
	} else if n > 0 {
		return OpInserted, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE grants SET
			user_id = ?, title = ?, sponsor = ?, grant_number = ?,
			award_date = ?, start_date = ?, end_date = ?, period_length = ?,
			period_unit = ?, periods = ?, indirect_funding = ?,
			indirect_cost_rate = ?, total_funding = ?, total_direct_funding = ?,
			currency = ?, description = ?, abstract = ?, url = ?, status = ?,
			term = ?, status_year = ?
		 WHERE activity_id = ?`,
		g.UserID, g.Title, g.Sponsor, g.GrantNumber,
		g.AwardDate, g.StartDate, g.EndDate, g.PeriodLength,
		g.PeriodUnit, g.Periods, g.IndirectFunding,
		g.IndirectCostRate, g.TotalFunding, g.TotalDirectFunding,
		g.Currency, g.Description, g.Abstract, g.URL, g.Status,
		g.Term, g.StatusYear,
		g.ActivityID,
	)
	if err != nil {
		return 0, wrapWriteErr("grants", g.ActivityID, err)
	}
	return OpUpdated, nil
}

// wrapWriteErr maps driver errors onto the shared sentinels: foreign
// key violations become ErrMissingOwner, unreachable or corrupt
// databases become ErrStoreUnavailable, everything else is
// ErrPersistence.
func wrapWriteErr(table string, id any, err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		switch {
		case serr.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %s %v", types.ErrMissingOwner, table, id)
		case serr.Code == sqlite3.ErrCantOpen,
			serr.Code == sqlite3.ErrNotADB,
			serr.Code == sqlite3.ErrCorrupt:
			return fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
		default:
			return fmt.Errorf("%w: %s %v: %v", types.ErrPersistence, table, id, err)
		}
	}
	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%w: %s %v: %v", types.ErrPersistence, table, id, err)
}
