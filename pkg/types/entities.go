// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// EntityType names one of the three synced collections.
type EntityType string

const (
	EntityUsers        EntityType = "users"
	EntityPublications EntityType = "publications"
	EntityGrants       EntityType = "grants"
)

// User is a faculty member's profile as reported by the FAR API.
// The external identifier is stable across runs and keys every upsert;
// profile fields are overwritten on each observation.
type User struct {
	// ID is the external FAR user identifier (e.g. "jdoe" or an
	// employee number rendered as a string).
	ID string `json:"id" yaml:"id"`

	Email      string `json:"email,omitempty" yaml:"email,omitempty"`
	FirstName  string `json:"firstname,omitempty" yaml:"firstname,omitempty"`
	LastName   string `json:"lastname,omitempty" yaml:"lastname,omitempty"`
	MiddleName string `json:"middlename,omitempty" yaml:"middlename,omitempty"`

	// EmploymentStatus is the institutional status (e.g. "Full Time").
	EmploymentStatus string `json:"employmentstatus,omitempty" yaml:"employmentstatus,omitempty"`
	Position         string `json:"position,omitempty" yaml:"position,omitempty"`

	// PrimaryUnit is the numeric identifier of the user's home unit.
	PrimaryUnit int64  `json:"primaryunit,omitempty" yaml:"primaryunit,omitempty"`
	ORCID       string `json:"orcid,omitempty" yaml:"orcid,omitempty"`
	Rank        string `json:"rank,omitempty" yaml:"rank,omitempty"`
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`
	LastLogin   string `json:"lastlogin,omitempty" yaml:"lastlogin,omitempty"`

	// PID is the institution-internal person identifier.
	PID int64 `json:"pid,omitempty" yaml:"pid,omitempty"`
}

// Publication is a journal article or book reported under the
// publications activity section. ActivityID is the external identifier;
// UserID references the owning User.
type Publication struct {
	ActivityID int64  `json:"activity_id" yaml:"activity_id"`
	UserID     string `json:"user_id" yaml:"user_id"`

	// Type discriminates the collected kinds: "Journal Article" or "Book".
	Type  string `json:"type" yaml:"type"`
	Title string `json:"title" yaml:"title"`

	Journal           string `json:"journal,omitempty" yaml:"journal,omitempty"`
	SeriesTitle       string `json:"series_title,omitempty" yaml:"series_title,omitempty"`
	Year              int    `json:"year,omitempty" yaml:"year,omitempty"`
	MonthSeason       string `json:"month_season,omitempty" yaml:"month_season,omitempty"`
	Publisher         string `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	PublisherLocation string `json:"publisher_location,omitempty" yaml:"publisher_location,omitempty"`
	PublisherCountry  string `json:"publisher_country,omitempty" yaml:"publisher_country,omitempty"`
	Volume            string `json:"volume,omitempty" yaml:"volume,omitempty"`
	IssueNumber       string `json:"issue_number,omitempty" yaml:"issue_number,omitempty"`
	Pages             string `json:"pages,omitempty" yaml:"pages,omitempty"`
	ISBN              string `json:"isbn,omitempty" yaml:"isbn,omitempty"`
	ISSN              string `json:"issn,omitempty" yaml:"issn,omitempty"`
	DOI               string `json:"doi,omitempty" yaml:"doi,omitempty"`
	URL               string `json:"url,omitempty" yaml:"url,omitempty"`
	Description       string `json:"description,omitempty" yaml:"description,omitempty"`

	// Origin records how the activity entered the reporting system
	// (e.g. "Faculty Entered").
	Origin     string `json:"origin,omitempty" yaml:"origin,omitempty"`
	Status     string `json:"status,omitempty" yaml:"status,omitempty"`
	Term       string `json:"term,omitempty" yaml:"term,omitempty"`
	StatusYear int    `json:"status_year,omitempty" yaml:"status_year,omitempty"`
}

// Grant is a sponsored award reported under the grants activity section.
type Grant struct {
	ActivityID int64  `json:"activity_id" yaml:"activity_id"`
	UserID     string `json:"user_id" yaml:"user_id"`

	Title   string `json:"title" yaml:"title"`
	Sponsor string `json:"sponsor,omitempty" yaml:"sponsor,omitempty"`

	// GrantNumber is the sponsor's grant or contract identifier; records
	// without one are not treated as grants.
	GrantNumber string `json:"grant_number" yaml:"grant_number"`

	AwardDate string `json:"award_date,omitempty" yaml:"award_date,omitempty"`
	StartDate string `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty" yaml:"end_date,omitempty"`

	PeriodLength string `json:"period_length,omitempty" yaml:"period_length,omitempty"`
	PeriodUnit   string `json:"period_unit,omitempty" yaml:"period_unit,omitempty"`
	Periods      int    `json:"periods,omitempty" yaml:"periods,omitempty"`

	IndirectFunding    float64 `json:"indirect_funding,omitempty" yaml:"indirect_funding,omitempty"`
	IndirectCostRate   string  `json:"indirect_cost_rate,omitempty" yaml:"indirect_cost_rate,omitempty"`
	TotalFunding       float64 `json:"total_funding,omitempty" yaml:"total_funding,omitempty"`
	TotalDirectFunding float64 `json:"total_direct_funding,omitempty" yaml:"total_direct_funding,omitempty"`
	Currency           string  `json:"currency,omitempty" yaml:"currency,omitempty"`

	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Abstract    string `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`
	Status      string `json:"status,omitempty" yaml:"status,omitempty"`
	Term        string `json:"term,omitempty" yaml:"term,omitempty"`
	StatusYear  int    `json:"status_year,omitempty" yaml:"status_year,omitempty"`
}

// ClassificationRecord marks a User as working in one of the tracked
// thematic areas. At most one record exists per user; re-classification
// merges into the existing row instead of duplicating it.
type ClassificationRecord struct {
	// UserID is the classified User's external identifier.
	UserID string `json:"user_id" yaml:"user_id"`

	// IdentifiedVia lists the scan methods that qualified the user, in
	// the order they first applied (e.g. "initial_scan").
	IdentifiedVia []string `json:"identified_via" yaml:"identified_via"`

	// MatchedKeywords is the sorted union of every keyword that matched
	// any of the user's publication or grant titles.
	MatchedKeywords []string `json:"matched_keywords" yaml:"matched_keywords"`

	// DateAdded is when the user first qualified; merges preserve it.
	DateAdded time.Time `json:"date_added" yaml:"date_added"`
}
