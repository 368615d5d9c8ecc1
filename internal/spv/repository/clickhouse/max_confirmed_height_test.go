package clickhouse

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
)

func TestRepository_MaxConfirmedHeight(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name     string
		queryFn  func(ctx context.Context, query string, args ...any) (driver.Rows, error)
		want     uint32
		wantErr  bool
		wantErrf string
	}{
		{
			name: "query error",
			queryFn: func(context.Context, string, ...any) (driver.Rows, error) {
				return nil, errors.New("query failed")
			},
			wantErr:  true,
			wantErrf: "query max confirmed height",
		},
		{
			name: "no rows",
			queryFn: func(context.Context, string, ...any) (driver.Rows, error) {
				return &fakeRows{}, nil
			},
			wantErr:  true,
			wantErrf: "not found",
		},
		{
			name: "success",
			queryFn: func(context.Context, string, ...any) (driver.Rows, error) {
				return &fakeRows{
					scans: []func(dest ...any) error{
						func(dest ...any) error {
							*dest[0].(*uint32) = 840_006
							return nil
						},
					},
				}, nil
			},
			want: 840_006,
		},
		{
			name: "scan error",
			queryFn: func(context.Context, string, ...any) (driver.Rows, error) {
				return &fakeRows{
					scans: []func(dest ...any) error{
						func(...any) error { return errors.New("scan failed") },
					},
				}, nil
			},
			wantErr:  true,
			wantErrf: "scan max confirmed height",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			metrics := &fakeMetrics{}
			repo := &Repository{conn: &fakeConn{queryFn: tt.queryFn}, metrics: metrics}

			got, err := repo.MaxConfirmedHeight(ctx, model.Mainnet)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MaxConfirmedHeight() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && tt.wantErrf != "" && !strings.Contains(err.Error(), tt.wantErrf) {
				t.Fatalf("MaxConfirmedHeight() error = %v, want contains %q", err, tt.wantErrf)
			}
			if got != tt.want {
				t.Fatalf("MaxConfirmedHeight() got = %d, want %d", got, tt.want)
			}

			obs := metrics.last()
			if obs.operation != "max_confirmed_height" || obs.network != model.Mainnet {
				t.Fatalf("unexpected observation %+v", obs)
			}
			if (obs.err != nil) != tt.wantErr {
				t.Fatalf("observed error %v, wantErr %v", obs.err, tt.wantErr)
			}
		})
	}
}
