package registry

import (
	"context"
	"strings"

	"github.com/nutritrack/backend/internal/domain"
)

// PagedSource adapts the registry's paginated bulk dump to the batch
// runner's record-source contract, fetching pages lazily as the runner
// drains them.
type PagedSource struct {
	client   *Client
	pageSize int

	buffer  []domain.ExternalRecord
	pos     int
	fetched int
	total   int
	done    bool
}

// NewPagedSource creates a source over the full bulk dump. pageSize
// rows are fetched per request; zero uses the registry's common page
// size.
func NewPagedSource(client *Client, pageSize int) *PagedSource {
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &PagedSource{client: client, pageSize: pageSize}
}

// Source identifies records yielded by this source.
func (s *PagedSource) Source() domain.Source {
	return domain.SourceRegistry
}

// Next returns the next registry record, fetching the next page when
// the buffer runs out. Rows without a barcode carry nothing to attach
// and are skipped. Returns (nil, nil) once the dump is exhausted.
func (s *PagedSource) Next(ctx context.Context) (*domain.ExternalRecord, error) {
	for {
		if s.pos < len(s.buffer) {
			record := s.buffer[s.pos]
			s.pos++
			if record.Barcode == "" {
				continue
			}
			return &record, nil
		}
		if s.done {
			return nil, nil
		}
		if err := s.fetchNext(ctx); err != nil {
			return nil, err
		}
	}
}

func (s *PagedSource) fetchNext(ctx context.Context) error {
	start := s.fetched + 1
	end := s.fetched + s.pageSize

	rows, total, err := s.client.FetchPage(ctx, start, end)
	if err != nil {
		return err
	}

	s.total = total
	s.fetched += s.pageSize
	s.buffer = rows
	s.pos = 0
	if len(rows) == 0 || s.fetched >= total {
		s.done = true
	}
	return nil
}

// Total reports the registry-side row count, known after the first
// fetched page.
func (s *PagedSource) Total() int {
	return s.total
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
