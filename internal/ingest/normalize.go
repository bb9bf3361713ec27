// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest drives the sync pipeline. Fetched records fan out to
// a worker pool that normalizes each one and upserts it into the
// store; per-section statistics accumulate into a run summary.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/faculty-sync/pkg/types"
)

// errSkipRecord marks records filtered out on purpose, like activity
// types the pipeline does not collect. Skips are counted, not failed.
var errSkipRecord = errors.New("record skipped")

// publicationTypes are the only activity types collected from the
// publications section.
var publicationTypes = map[string]bool{
	"Journal Article": true,
	"Book":            true,
}

// NormalizeUser converts a raw FAR user record into a User. A record
// without a userid is malformed.
func NormalizeUser(raw json.RawMessage) (types.User, error) {
	var rec map[string]any
	if err := json.Unmarshal(raw, &rec); err != nil {
		return types.User{}, fmt.Errorf("%w: %v", types.ErrMalformedRecord, err)
	}

	id := asString(rec["userid"])
	if id == "" {
		return types.User{}, fmt.Errorf("%w: user without userid", types.ErrMalformedRecord)
	}

	return types.User{
		ID:               id,
		Email:            asString(rec["email"]),
		FirstName:        asString(rec["firstname"]),
		LastName:         asString(rec["lastname"]),
		MiddleName:       asString(rec["middlename"]),
		EmploymentStatus: asString(rec["employmentstatus"]),
		Position:         asString(rec["position"]),
		PrimaryUnit:      asInt64(rec["primaryunit"]),
		ORCID:            asString(rec["orcid"]),
		Rank:             asString(rec["rank"]),
		URL:              asString(rec["url"]),
		LastLogin:        asString(rec["lastlogin"]),
		PID:              asInt64(rec["pid"]),
	}, nil
}

// NormalizePublication converts a raw activity record into a
// Publication. Records whose Type is not a collected kind are skipped;
// records without an activityid or userid are malformed. String fields
// are clipped to the upstream column sizes.
func NormalizePublication(raw json.RawMessage) (types.Publication, error) {
	var rec rawActivity
	if err := json.Unmarshal(raw, &rec); err != nil {
		return types.Publication{}, fmt.Errorf("%w: %v", types.ErrMalformedRecord, err)
	}
	fields := asMap(rec.Fields)

	activityType := asString(fields["Type"])
	if !publicationTypes[activityType] {
		return types.Publication{}, fmt.Errorf("%w: activity type %q", errSkipRecord, activityType)
	}

	activityID := asInt64(rec.ActivityID)
	if activityID == 0 {
		return types.Publication{}, fmt.Errorf("%w: publication without activityid", types.ErrMalformedRecord)
	}
	userID := asString(rec.UserID)
	if userID == "" {
		return types.Publication{}, fmt.Errorf("%w: publication %d without userid", types.ErrMalformedRecord, activityID)
	}

	status := rec.statusInfo()

	return types.Publication{
		ActivityID:        activityID,
		UserID:            userID,
		Type:              clip(activityType, 50),
		Title:             clip(asString(fields["Title"]), 255),
		Journal:           clip(asString(fields["Journal Title"]), 255),
		SeriesTitle:       clip(asString(fields["Series Title"]), 255),
		Year:              yearOf(fields["Year"]),
		MonthSeason:       clip(asString(fields["Month / Season"]), 50),
		Publisher:         clip(asString(fields["Publisher"]), 255),
		PublisherLocation: clip(asString(fields["Publisher City and State"]), 255),
		PublisherCountry:  clip(asString(fields["Publisher Country"]), 100),
		Volume:            clip(asString(fields["Volume"]), 50),
		IssueNumber:       clip(asString(fields["Issue Number / Edition"]), 50),
		Pages:             clip(asString(fields["Page Number(s) or Number of Pages"]), 50),
		ISBN:              clip(asString(fields["ISBN"]), 20),
		ISSN:              clip(asString(fields["ISSN"]), 20),
		DOI:               clip(asString(fields["DOI"]), 255),
		URL:               clip(asString(fields["URL"]), 500),
		Description:       asString(fields["Description"]),
		Origin:            clip(asString(fields["Origin"]), 50),
		Status:            clip(asString(status["status"]), 50),
		Term:              clip(asString(status["term"]), 50),
		StatusYear:        yearOf(status["year"]),
	}, nil
}

// NormalizeGrant converts a raw activity record into a Grant. Records
// without a grant or contract id are skipped; records without an
// activityid or userid are malformed.
func NormalizeGrant(raw json.RawMessage) (types.Grant, error) {
	var rec rawActivity
	if err := json.Unmarshal(raw, &rec); err != nil {
		return types.Grant{}, fmt.Errorf("%w: %v", types.ErrMalformedRecord, err)
	}
	fields := asMap(rec.Fields)

	grantNumber := asString(fields["Grant ID / Contract ID"])
	if grantNumber == "" {
		return types.Grant{}, fmt.Errorf("%w: activity without grant id", errSkipRecord)
	}

	activityID := asInt64(rec.ActivityID)
	if activityID == 0 {
		return types.Grant{}, fmt.Errorf("%w: grant without activityid", types.ErrMalformedRecord)
	}
	userID := asString(rec.UserID)
	if userID == "" {
		return types.Grant{}, fmt.Errorf("%w: grant %d without userid", types.ErrMalformedRecord, activityID)
	}

	status := rec.statusInfo()

	totalFunding := rec.fundedAmount()
	if totalFunding == 0 {
		totalFunding = asFloat(fields["Total Funding"])
	}
	if totalFunding == 0 {
		totalFunding = asFloat(fields["Amount"])
	}

	return types.Grant{
		ActivityID:         activityID,
		UserID:             userID,
		Title:              clip(asString(fields["Title"]), 255),
		Sponsor:            clip(asString(fields["Sponsor"]), 255),
		GrantNumber:        clip(grantNumber, 100),
		AwardDate:          asString(fields["Award Date"]),
		StartDate:          asString(fields["Start Date"]),
		EndDate:            asString(fields["End Date"]),
		PeriodLength:       asString(fields["Period Length"]),
		PeriodUnit:         clip(asString(fields["Period Unit"]), 50),
		Periods:            int(asInt64(fields["Number of Periods"])),
		IndirectFunding:    asFloat(fields["Indirect Funding"]),
		IndirectCostRate:   clip(asString(fields["Indirect Cost Rate"]), 50),
		TotalFunding:       totalFunding,
		TotalDirectFunding: asFloat(fields["Total Direct Funding"]),
		Currency:           clip(asString(fields["Currency Type"]), 10),
		Description:        asString(fields["Description"]),
		Abstract:           asString(fields["Abstract"]),
		URL:                clip(asString(fields["URL"]), 500),
		Status:             clip(asString(status["status"]), 50),
		Term:               clip(asString(status["term"]), 50),
		StatusYear:         yearOf(status["year"]),
	}, nil
}

// rawActivity is the wire shape shared by the publications and grants
// sections. Status and funding stay raw because the API serializes
// them inconsistently.
type rawActivity struct {
	ActivityID any             `json:"activityid"`
	UserID     any             `json:"userid"`
	Fields     json.RawMessage `json:"fields"`
	Status     json.RawMessage `json:"status"`
	Funding    json.RawMessage `json:"funding"`
}

// statusInfo returns the activity's status entry. The API serializes
// it either as a one-element array or as a bare object.
func (r *rawActivity) statusInfo() map[string]any {
	if len(r.Status) == 0 {
		return nil
	}
	var list []map[string]any
	if err := json.Unmarshal(r.Status, &list); err == nil {
		if len(list) > 0 {
			return list[0]
		}
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(r.Status, &obj); err == nil {
		return obj
	}
	return nil
}

// fundedAmount extracts the funded amount from the funding map, which
// is keyed by activity id. The exact id is preferred; otherwise the
// first well-formed entry in key order wins.
func (r *rawActivity) fundedAmount() float64 {
	funding := asMap(r.Funding)
	if len(funding) == 0 {
		return 0
	}

	if entry, ok := funding[asString(r.ActivityID)].(map[string]any); ok {
		return asFloat(entry["fundedamount"])
	}

	keys := make([]string, 0, len(funding))
	for k := range funding {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if entry, ok := funding[k].(map[string]any); ok {
			return asFloat(entry["fundedamount"])
		}
	}
	return 0
}

// asMap decodes a JSON object, returning nil for anything else. The
// API emits [] in place of {} for empty objects.
func asMap(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// asString renders a JSON scalar as a string. Integral numbers print
// without a decimal point, matching how the upstream system formats
// numeric ids.
func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(t)
	}
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// asFloat parses an amount, tolerating currency symbols and thousands
// separators ("$1,234.56").
func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		cleaned := strings.TrimSpace(t)
		cleaned = strings.TrimPrefix(cleaned, "$")
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		if n, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return n
		}
	}
	return 0
}

// clip truncates s to at most max characters.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// yearOf parses a year that may arrive as a number or as a string with
// trailing noise ("2023-06"); only the first four characters count.
func yearOf(v any) int {
	s := asString(v)
	if len(s) > 4 {
		s = s[:4]
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
