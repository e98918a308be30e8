package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"donasi/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	ProgramSummaryKeyPrefix = "report:program:%d:summary"
	TopDonorsKeyPrefix      = "report:top_donors:%d"
	topDonorsPattern        = "report:top_donors:*"
)

// ReportTTL is the default lifetime of cached report payloads.
const ReportTTL = time.Minute

func ProgramSummaryKey(programID uint) string {
	return fmt.Sprintf(ProgramSummaryKeyPrefix, programID)
}

func TopDonorsKey(limit int) string {
	return fmt.Sprintf(TopDonorsKeyPrefix, limit)
}

// Aside reads key into dest, or calls fetch (which must fill dest) on a miss
// and stores the result for ttl. Without Redis it calls fetch directly. Cache
// failures never fail the read.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if client == nil {
		return fetch()
	}

	raw, err := client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
			observability.ReportCacheLookups.WithLabelValues("hit").Inc()
			return nil
		}
		// Corrupt entry: fall through and overwrite it.
	case !errors.Is(err, redis.Nil):
		slog.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	observability.ReportCacheLookups.WithLabelValues("miss").Inc()

	if err := fetch(); err != nil {
		return err
	}

	payload, err := json.Marshal(dest)
	if err != nil {
		return nil
	}
	if err := client.Set(ctx, key, payload, ttl).Err(); err != nil {
		slog.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}

// Invalidate deletes key if a client is configured.
func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidateProgramReports drops every cached report that includes programID.
// Top-donor lists span all programs, so all of them go.
func InvalidateProgramReports(ctx context.Context, programID uint) {
	if client == nil {
		return
	}
	Invalidate(ctx, ProgramSummaryKey(programID))

	iter := client.Scan(ctx, 0, topDonorsPattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		slog.WarnContext(ctx, "cache scan failed", slog.String("error", err.Error()))
		return
	}
	if len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}
