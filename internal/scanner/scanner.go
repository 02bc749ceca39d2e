// Package scanner implements the generational object-store indexer: a
// periodic walk of the bucket that tags every object's index entry with
// the current generation and prunes entries whose objects have not been
// seen for a full rotation. The cursor persists in the index store
// between ticks, so a pass resumes where the previous tick stopped; it
// expires after 60s, so a pass that stalls longer restarts from the
// beginning.
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/marmos91/ditto-upload/internal/indexstore"
	"github.com/marmos91/ditto-upload/internal/logger"
	"github.com/marmos91/ditto-upload/internal/metrics"
	"github.com/marmos91/ditto-upload/internal/objectstore"
	"github.com/marmos91/ditto-upload/internal/telemetry"
)

const (
	keyScanCursor     = "file:scan"
	keyScanGeneration = "file:scan:generation"

	scanCursorTTL = 60 * time.Second
)

func keyMeta(objectKey string) string {
	return "file:meta:" + objectKey
}

func keyGen(g int) string {
	return fmt.Sprintf("file:gen:%d", g)
}

// indexEntry is the JSON envelope stored at file:meta:{object_key}.
type indexEntry struct {
	Info       objectInfo `json:"info"`
	Generation int        `json:"generation"`
}

type objectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ETag         string    `json:"etag,omitempty"`
}

// Config tunes the Scanner's fan-out and generation count.
type Config struct {
	// Concurrency bounds the number of objects processed in parallel
	// within one tick.
	Concurrency int

	// MaxGenerations is the number of generations the scanner rotates
	// through.
	MaxGenerations int

	// Metrics, if non-nil, receives per-tick duration and object count
	// observations. Safe to leave nil.
	Metrics *metrics.Metrics
}

func (c *Config) applyDefaults() {
	if c.Concurrency == 0 {
		c.Concurrency = 75
	}
	if c.MaxGenerations == 0 {
		c.MaxGenerations = 6
	}
}

// Scanner runs one generational tick at a time; Tick is safe to call
// repeatedly from a single Scheduler job, and is not reentrant-safe.
type Scanner struct {
	cfg     Config
	objects objectstore.Store
	index   indexstore.Store
}

// New creates a Scanner over the given stores.
func New(objects objectstore.Store, index indexstore.Store, cfg Config) *Scanner {
	cfg.applyDefaults()
	return &Scanner{cfg: cfg, objects: objects, index: index}
}

// Tick runs one scanner pass: a single page of the bucket listing, or
// the prune-and-advance step when the listing is exhausted. A tick that
// errors returns without advancing state; the caller logs and retries
// on the next interval.
func (s *Scanner) Tick(ctx context.Context) error {
	start := time.Now()
	objectsSeen := 0
	defer func() { s.cfg.Metrics.ObserveScanTick(time.Since(start), objectsSeen) }()

	generation, err := s.currentGeneration(ctx)
	if err != nil {
		return err
	}

	ctx, span := telemetry.StartScanSpan(ctx, generation)
	defer span.End()

	cursor, _, err := s.index.Get(ctx, keyScanCursor)
	if err != nil {
		return fmt.Errorf("read scan cursor: %w", err)
	}

	page, err := s.objects.ListPage(ctx, "", "", cursor)
	if err != nil {
		return fmt.Errorf("list objects page: %w", err)
	}
	objectsSeen = len(page.Objects)

	if err := s.indexPage(ctx, page.Objects, generation); err != nil {
		return err
	}

	var pageBytes int64
	for _, obj := range page.Objects {
		pageBytes += obj.Size
	}
	logger.Debug("scan page indexed", "generation", generation, "objects", objectsSeen, "size", humanize.Bytes(uint64(pageBytes)))

	if page.NextCursor != "" {
		if err := s.index.Set(ctx, keyScanCursor, page.NextCursor, scanCursorTTL); err != nil {
			return fmt.Errorf("persist scan cursor: %w", err)
		}
		return nil
	}

	return s.completePass(ctx, generation)
}

// indexPage upserts every object in objs into the index under
// generation, fanning out up to cfg.Concurrency objects at a time.
func (s *Scanner) indexPage(ctx context.Context, objs []objectstore.ObjectMeta, generation int) error {
	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	errs := make(chan error, len(objs))

	for _, obj := range objs {
		obj := obj
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.upsertObject(ctx, obj, generation); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// upsertObject writes file:meta:{key} tagged with generation and fixes
// up membership sets. The fix-up removal and the current-generation
// writes are not required to be atomic with each other; any transient
// inconsistency self-heals on the next scan.
func (s *Scanner) upsertObject(ctx context.Context, obj objectstore.ObjectMeta, generation int) error {
	metaKey := keyMeta(obj.Key)

	prior, found, err := s.index.Get(ctx, metaKey)
	if err != nil {
		return fmt.Errorf("read prior index entry for %s: %w", obj.Key, err)
	}

	var priorGeneration int
	var hadPrior bool
	if found {
		var entry indexEntry
		if err := json.Unmarshal([]byte(prior), &entry); err == nil {
			priorGeneration = entry.Generation
			hadPrior = true
		}
	}

	entry := indexEntry{
		Info: objectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ETag:         obj.ETag,
		},
		Generation: generation,
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal index entry for %s: %w", obj.Key, err)
	}

	if hadPrior && priorGeneration != generation {
		if err := s.index.SetRemove(ctx, keyGen(priorGeneration), obj.Key); err != nil {
			return fmt.Errorf("remove %s from prior generation set: %w", obj.Key, err)
		}
	}

	return s.index.Pipeline(ctx, func(p indexstore.Pipeliner) error {
		p.Set(metaKey, string(payload), 0)
		p.SetAdd(keyGen(generation), obj.Key)
		return nil
	})
}

// completePass finishes a full pass: prune the generation one step
// behind the one just completed ((generation + MaxGenerations - 1) mod
// MaxGenerations), then advance the generation counter.
func (s *Scanner) completePass(ctx context.Context, generation int) error {
	if err := s.index.Delete(ctx, keyScanCursor); err != nil {
		return fmt.Errorf("clear scan cursor: %w", err)
	}

	prune := (generation + s.cfg.MaxGenerations - 1) % s.cfg.MaxGenerations
	pruneKey := keyGen(prune)

	members, err := s.index.SetMembers(ctx, pruneKey)
	if err != nil {
		return fmt.Errorf("list prune generation members: %w", err)
	}

	for _, key := range members {
		if err := s.index.Delete(ctx, keyMeta(key)); err != nil {
			logger.Error("delete pruned index entry", "key", key, "error", err)
		}
	}
	if err := s.index.Delete(ctx, pruneKey); err != nil {
		return fmt.Errorf("delete prune generation set: %w", err)
	}

	next := (generation + 1) % s.cfg.MaxGenerations
	if err := s.index.Set(ctx, keyScanGeneration, fmt.Sprintf("%d", next), 0); err != nil {
		return fmt.Errorf("advance generation: %w", err)
	}

	logger.Info("scan pass complete", "generation", generation, "pruned", prune, "next_generation", next)
	return nil
}

func (s *Scanner) currentGeneration(ctx context.Context) (int, error) {
	raw, found, err := s.index.Get(ctx, keyScanGeneration)
	if err != nil {
		return 0, fmt.Errorf("read current generation: %w", err)
	}
	if !found {
		return 0, nil
	}

	var g int
	if _, err := fmt.Sscanf(raw, "%d", &g); err != nil {
		return 0, fmt.Errorf("parse generation value %q: %w", raw, err)
	}
	return g, nil
}
