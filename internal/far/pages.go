// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package far

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/faculty-sync/pkg/types"
)

// Pager walks a paginated endpoint one page at a time, following the
// next_offset cursor until the API reports no more records.
//
//	pager := client.Pages(far.EndpointUsers, 100)
//	for pager.Next(ctx) {
//		page := pager.Page()
//		...
//	}
//	if err := pager.Err(); err != nil {
//		...
//	}
type Pager struct {
	client   *Client
	endpoint string
	pageSize int

	page   *Page
	offset int
	pages  int
	done   bool
	err    error
}

// Pages returns a Pager over endpoint fetching pageSize records per call.
func (c *Client) Pages(endpoint string, pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{client: c, endpoint: endpoint, pageSize: pageSize}
}

// Next fetches the next page. It returns false when the listing is
// exhausted or a fetch fails; Err distinguishes the two.
func (p *Pager) Next(ctx context.Context) bool {
	if p.done || p.err != nil {
		return false
	}

	page, err := p.client.FetchPage(ctx, p.endpoint, p.pageSize, p.offset)
	if err != nil {
		p.err = err
		return false
	}
	p.page = page
	p.pages++

	if !page.Meta.HasMore || len(page.Records) == 0 {
		p.done = true
		return true
	}

	next := page.Meta.NextOffset
	if next <= p.offset {
		// A cursor that fails to advance would loop forever. Deliver
		// this page, then stop with an error.
		p.err = fmt.Errorf("%w: pagination cursor stalled at offset %d on %s", types.ErrFetch, p.offset, p.endpoint)
		p.done = true
		return true
	}
	p.offset = next
	return true
}

// Page returns the page fetched by the last successful Next call.
func (p *Pager) Page() *Page { return p.page }

// PageCount returns how many pages have been fetched so far.
func (p *Pager) PageCount() int { return p.pages }

// Err returns the first error encountered, or nil after a clean walk.
func (p *Pager) Err() error { return p.err }
