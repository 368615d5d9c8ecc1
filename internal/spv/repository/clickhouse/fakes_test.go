package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
)

// Hand-rolled fakes for the narrow Conn seam. Embedding the driver
// interfaces keeps the fakes small; only the methods the repository
// calls are implemented.

type fakeConn struct {
	queryFn        func(ctx context.Context, query string, args ...any) (driver.Rows, error)
	prepareBatchFn func(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error)
}

func (c *fakeConn) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	return c.queryFn(ctx, query, args...)
}

func (c *fakeConn) PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error) {
	return c.prepareBatchFn(ctx, query, opts...)
}

func (c *fakeConn) Close() error { return nil }

type fakeRows struct {
	driver.Rows

	scans  []func(dest ...any) error
	cursor int
	errFn  func() error
	closed bool
}

func (r *fakeRows) Next() bool {
	return r.cursor < len(r.scans)
}

func (r *fakeRows) Scan(dest ...any) error {
	scan := r.scans[r.cursor]
	r.cursor++
	return scan(dest...)
}

func (r *fakeRows) Err() error {
	if r.errFn != nil {
		return r.errFn()
	}
	return nil
}

func (r *fakeRows) Close() error {
	r.closed = true
	return nil
}

type fakeBatch struct {
	driver.Batch

	appendErr error
	sendErr   error
	appended  [][]any
	sent      bool
}

func (b *fakeBatch) Append(v ...any) error {
	if b.appendErr != nil {
		return b.appendErr
	}
	b.appended = append(b.appended, v)
	return nil
}

func (b *fakeBatch) Send() error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = true
	return nil
}

type observation struct {
	operation string
	network   model.Network
	err       error
}

type fakeMetrics struct {
	observed []observation
}

func (m *fakeMetrics) Observe(operation string, network model.Network, err error, _ time.Time) {
	m.observed = append(m.observed, observation{operation: operation, network: network, err: err})
}

func (m *fakeMetrics) last() observation {
	if len(m.observed) == 0 {
		return observation{}
	}
	return m.observed[len(m.observed)-1]
}
