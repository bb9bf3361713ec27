// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mesh-intelligence/faculty-sync/internal/store"
)

// ExportCSV writes the classified researcher roster to w and returns
// the number of rows exported. Multi-valued columns join with "; ".
func ExportCSV(ctx context.Context, st *store.Store, w io.Writer) (int, error) {
	rows, err := st.ClassifiedResearchers(ctx)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	header := []string{
		"user_id", "first_name", "last_name", "email", "position",
		"identified_via", "matched_keywords", "date_added",
	}
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("writing csv header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.UserID,
			row.FirstName,
			row.LastName,
			row.Email,
			row.Position,
			strings.Join(row.IdentifiedVia, "; "),
			strings.Join(row.MatchedKeywords, "; "),
			row.DateAdded.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return 0, fmt.Errorf("writing csv row for %s: %w", row.UserID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flushing csv: %w", err)
	}
	return len(rows), nil
}
