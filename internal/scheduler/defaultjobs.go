package scheduler

import (
	"context"
	"time"

	"github.com/marmos91/ditto-upload/internal/catalog"
	"github.com/marmos91/ditto-upload/internal/indexstore"
	"github.com/marmos91/ditto-upload/internal/objectstore"
	"github.com/marmos91/ditto-upload/internal/scanner"
)

// RegisterDefaults registers the standard job set: three health-check
// pings on their respective stores every 30 minutes, and one Scanner
// tick per scanInterval (default 5s).
func RegisterDefaults(s *Scheduler, objects objectstore.Store, cat catalog.Catalog, index indexstore.Store, sc *scanner.Scanner, scanInterval time.Duration) {
	if scanInterval <= 0 {
		scanInterval = 5 * time.Second
	}
	s.Register(Job{
		Name:     "storage_health_check",
		Interval: 30 * time.Minute,
		Run: func(ctx context.Context) error {
			return objects.Ping(ctx)
		},
	})

	s.Register(Job{
		Name:     "redis_health_check",
		Interval: 30 * time.Minute,
		Run: func(ctx context.Context) error {
			return index.Ping(ctx)
		},
	})

	s.Register(Job{
		Name:     "database_health_check",
		Interval: 30 * time.Minute,
		Run: func(ctx context.Context) error {
			return cat.Ping(ctx)
		},
	})

	s.Register(Job{
		Name:     "track_files",
		Interval: scanInterval,
		Run: func(ctx context.Context) error {
			return sc.Tick(ctx)
		},
	})
}
