package core

import (
	"errors"
	"fmt"

	"github.com/shrek82/simplejorm/record"
)

// Pagination is one page of a counted pagination.
type Pagination struct {
	Records   []*record.Record `json:"records"`
	Total     int64            `json:"total"`
	Page      int              `json:"page"`
	PerPage   int              `json:"per_page"`
	TotalPage int              `json:"total_page"`
}

// SimplePagination is one page of a pagination without a total count.
type SimplePagination struct {
	Records []*record.Record `json:"records"`
	HasMore bool             `json:"has_more"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
}

func (q *Query) pageArgs(perPage, page int) (int, int) {
	if perPage <= 0 {
		perPage = q.model.PerPage
	}
	if perPage <= 0 {
		perPage = 15
	}
	if page < 1 {
		page = 1
	}
	return perPage, page
}

// Paginate counts the matching records and returns the requested page.
// perPage <= 0 uses the entity's page size. When nothing matches, the page
// is returned without fetching rows.
func (q *Query) Paginate(perPage, page int) (*Pagination, error) {
	if q.err != nil {
		return nil, q.err
	}
	perPage, page = q.pageArgs(perPage, page)
	ctx, qid := ensureQueryID(q.ctx)

	total, err := q.count(ctx, qid, q.spec)
	if err != nil {
		return nil, err
	}

	p := &Pagination{
		Records:   make([]*record.Record, 0),
		Total:     total,
		Page:      page,
		PerPage:   perPage,
		TotalPage: int((total + int64(perPage) - 1) / int64(perPage)),
	}
	if total == 0 {
		return p, nil
	}

	rows, err := q.materialize(ctx, qid, q.spec.ForPage(page, perPage))
	if err != nil {
		return nil, err
	}
	p.Records = rows
	return p, nil
}

// SimplePaginate returns the requested page and whether another one
// follows, by fetching one row more than perPage. Relations are loaded
// for the returned rows only.
func (q *Query) SimplePaginate(perPage, page int) (*SimplePagination, error) {
	if q.err != nil {
		return nil, q.err
	}
	perPage, page = q.pageArgs(perPage, page)
	ctx, qid := ensureQueryID(q.ctx)

	spec := q.spec.ForPage(page, perPage).Limit(perPage + 1)
	rows, err := q.fetch(ctx, qid, "", q.model.Name, spec)
	if err != nil {
		return nil, err
	}

	p := &SimplePagination{Page: page, PerPage: perPage}
	if len(rows) > perPage {
		p.HasMore = true
		rows = rows[:perPage]
	}
	if err := q.stitchAll(ctx, qid, rows, spec.Eager()); err != nil {
		return nil, err
	}
	p.Records = rows
	return p, nil
}

// Chunk walks the matching records size at a time and calls fn with each
// chunk. Without an explicit order the records are ordered by primary key
// so chunks do not overlap. Returning ErrStopChunk from fn stops the walk
// without an error; any other error is returned.
func (q *Query) Chunk(size int, fn func(rows []*record.Record) error) error {
	if q.err != nil {
		return q.err
	}
	if size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidQuery)
	}
	ctx, qid := ensureQueryID(q.ctx)

	spec := q.spec
	if !spec.HasOrder() {
		spec = spec.OrderBy(q.model.PrimaryKey)
	}
	for page := 1; ; page++ {
		rows, err := q.materialize(ctx, qid, spec.ForPage(page, size))
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if err := fn(rows); err != nil {
			if errors.Is(err, ErrStopChunk) {
				return nil
			}
			return err
		}
		if len(rows) < size {
			return nil
		}
	}
}
