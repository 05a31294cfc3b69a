// Package scan is romshelf's filesystem scanner: one discovery goroutine
// walking a root directory and W worker goroutines hashing what it finds,
// connected by a bounded channel so a deep, fast-discovered tree can't
// outrun the hashing workers.
package scan

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/romshelf/romshelf"
	"github.com/romshelf/romshelf/archivefs"
	"github.com/romshelf/romshelf/catalog"
	"github.com/romshelf/romshelf/hashio"
	"github.com/romshelf/romshelf/progress"
)

// queueCapacity bounds the work channel: an unbounded queue would let a
// fast directory walk outrun the hashing workers without limit. This is
// the scanner's sole point of backpressure.
const queueCapacity = 1000

// Kind classifies a discovered path by extension.
type Kind int

const (
	LooseFile Kind = iota
	ZipContainer
	SevenZContainer
)

type workItem struct {
	path  string
	size  int64
	mtime time.Time
	kind  Kind
}

// Options configures a Scan run.
type Options struct {
	// Workers overrides the worker count; 0 means runtime.NumCPU(),
	// clamped to at least 1.
	Workers int
	Sink    progress.Sink
}

// Summary totals a completed scan.
type Summary struct {
	Discovered int64
	Processed  int64
	TotalBytes int64
	Duration   time.Duration
}

// Run walks root, hashes every loose file and every archive-interior entry
// it finds, and reconciles each one against store's existing ScannedFile
// rows: new paths are inserted, changed paths (by size or mtime — content
// is never re-hashed speculatively) are re-hashed and updated, unchanged
// paths are left alone, and paths that existed before this run but weren't
// rediscovered are deleted. Every touched file's containing directory, and
// every ancestor of it up to root, is materialised as a Directory row; once
// the walk finishes, rollup counters are recomputed over whatever directory
// tree resulted.
//
// Run blocks until the walk and every worker finish, or ctx is canceled.
// Cancellation is polled between directory entries in the discovery
// goroutine, and between work items in each worker.
func Run(ctx context.Context, store *catalog.Store, root string, opts Options) (Summary, error) {
	log := slog.With("root", root)
	log.InfoContext(ctx, "scan start")
	defer log.InfoContext(ctx, "scan done")

	sink := opts.Sink
	if sink == nil {
		sink = progress.NoopSink{}
	}
	w := opts.Workers
	if w <= 0 {
		w = runtime.NumCPU()
	}
	if w < 1 {
		w = 1
	}

	start := time.Now()
	ch := make(chan workItem, queueCapacity)

	seen := &sync.Map{} // path -> struct{}, rediscovered paths this run
	dirs := newDirCache(root)
	var discovered, processed, totalBytes atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(ch)
		return discoverTree(gctx, root, &discovered, sink, ch)
	})

	var wg sync.WaitGroup
	wg.Add(w)
	workerErrs := make([]error, w)
	for i := 0; i < w; i++ {
		i := i
		go func() {
			defer wg.Done()
			workerErrs[i] = runWorker(gctx, store, ch, seen, dirs, &processed, &totalBytes, sink)
		}()
	}

	discoverErr := g.Wait()
	wg.Wait()

	for _, err := range workerErrs {
		if err != nil && discoverErr == nil {
			discoverErr = err
		}
	}
	if discoverErr != nil {
		log.ErrorContext(ctx, "scan failed", "reason", discoverErr)
		return Summary{}, discoverErr
	}

	if err := reconcileRemoved(ctx, store, root, seen); err != nil {
		return Summary{}, err
	}

	if dirs.touched() {
		log.DebugContext(ctx, "recomputing directory rollups", "directories", dirs.count())
		if err := store.RecomputeRollups(ctx); err != nil {
			log.ErrorContext(ctx, "rollup recompute failed", "reason", err)
			return Summary{}, err
		}
	}

	dur := time.Since(start)
	summary := Summary{
		Discovered: discovered.Load(),
		Processed:  processed.Load(),
		TotalBytes: totalBytes.Load(),
		Duration:   dur,
	}
	sink.Emit(progress.NewScanSummary(summary.Discovered, summary.Processed, summary.TotalBytes, dur.Milliseconds()))
	return summary, nil
}

// dirCache materialises Directory rows for a scan, memoizing path -> id so
// a directory holding many files is only upserted once, and linking every
// directory to its parent up to root.
type dirCache struct {
	root string
	mu   sync.Mutex
	ids  map[string]int64
}

func newDirCache(root string) *dirCache {
	return &dirCache{root: filepath.Clean(root), ids: make(map[string]int64)}
}

func (c *dirCache) touched() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids) > 0
}

func (c *dirCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}

// resolve returns the Directory id for dir, upserting it and every
// unresolved ancestor between dir and the scan root.
func (c *dirCache) resolve(ctx context.Context, store *catalog.Store, dir string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolveLocked(ctx, store, filepath.Clean(dir))
}

func (c *dirCache) resolveLocked(ctx context.Context, store *catalog.Store, dir string) (int64, error) {
	if id, ok := c.ids[dir]; ok {
		return id, nil
	}
	var parentID *int64
	if dir != c.root && dir != filepath.Dir(dir) {
		parent := filepath.Dir(dir)
		pid, err := c.resolveLocked(ctx, store, parent)
		if err != nil {
			return 0, err
		}
		parentID = &pid
	}
	id, err := store.UpsertDirectory(ctx, dir, filepath.Base(dir), parentID)
	if err != nil {
		return 0, err
	}
	c.ids[dir] = id
	return id, nil
}

func discoverTree(ctx context.Context, root string, discovered *atomic.Int64, sink progress.Sink, ch chan<- workItem) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if d.IsDir() {
			sink.Emit(progress.NewScanDiscovery(path))
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil // unreadable entry: skip, don't abort the walk
		}
		kind := classify(path)
		if kind != LooseFile {
			// A container is not itself a ScannedFile: only its interior
			// entries are queued.
			return emitArchiveEntries(ctx, path, discovered, ch)
		}
		item := workItem{path: path, size: info.Size(), mtime: info.ModTime(), kind: kind}
		discovered.Add(1)

		select {
		case ch <- item:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}

func emitArchiveEntries(ctx context.Context, containerPath string, discovered *atomic.Int64, ch chan<- workItem) error {
	entries, closeFn, err := archivefs.Open(ctx, containerPath)
	if err != nil {
		return nil // unreadable archive: skip, don't abort the walk
	}
	defer closeFn()

	for e, err := range entries {
		if err != nil {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		discovered.Add(1)
		item := workItem{path: e.Path(), size: e.Size, mtime: e.MTime, kind: LooseFile}
		select {
		case ch <- item:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func classify(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return ZipContainer
	case ".7z":
		return SevenZContainer
	default:
		return LooseFile
	}
}

func runWorker(ctx context.Context, store *catalog.Store, ch <-chan workItem, seen *sync.Map, dirs *dirCache, processed, totalBytes *atomic.Int64, sink progress.Sink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-ch:
			if !ok {
				return nil
			}
			seen.Store(item.path, struct{}{})
			if err := processItem(ctx, store, item, dirs, sink); err != nil {
				slog.WarnContext(ctx, "skipping unreadable item", "path", item.path, "reason", err)
				continue // per-item failure never aborts the scan
			}
			processed.Add(1)
			totalBytes.Add(item.size)
		}
	}
}

func processItem(ctx context.Context, store *catalog.Store, item workItem, dirs *dirCache, sink progress.Sink) error {
	sink.Emit(progress.NewScanFileStarted(item.path, item.size))

	existing, ok, err := store.LookupFileByPath(ctx, item.path)
	if err == nil && ok && existing.Size == item.size && existing.MTime.Unix() == item.mtime.Unix() {
		sink.Emit(progress.NewScanFileCompleted(item.path, item.size))
		return nil // Unchanged: size+mtime trusted, never re-hashed
	}

	var (
		d          romshelf.Digest
		filename   string
		parentPath string
	)
	if containerPath, interiorPath, isArchive := splitArchivePath(item.path); isArchive {
		entry, closeFn, err := archivefs.Stat1(ctx, containerPath, interiorPath)
		if err != nil {
			return err
		}
		r, err := entry.Open()
		if err != nil {
			closeFn()
			return err
		}
		d, err = hashio.Stream(r)
		r.Close()
		closeFn()
		if err != nil {
			return err
		}
		filename = filepath.Base(interiorPath)
		parentPath = filepath.Dir(containerPath) // archive-interior entries roll up under the container's directory
	} else {
		var meta hashio.FileMeta
		d, meta, err = hashio.Path(item.path)
		if err != nil {
			return err
		}
		item.size = meta.Size
		item.mtime = meta.MTime
		filename = filepath.Base(item.path)
		parentPath = filepath.Dir(item.path)
	}

	dirID, err := dirs.resolve(ctx, store, parentPath)
	if err != nil {
		return err
	}

	_, err = store.UpsertFile(ctx, romshelf.ScannedFile{
		Path:        item.path,
		Filename:    filename,
		Size:        item.size,
		MTime:       item.mtime,
		Digest:      d,
		ScannedAt:   time.Now(),
		DirectoryID: dirID,
	})
	if err != nil {
		return err
	}
	sink.Emit(progress.NewScanFileCompleted(item.path, item.size))
	return nil
}

func splitArchivePath(path string) (container, interior string, ok bool) {
	i := strings.IndexByte(path, '#')
	if i < 0 {
		return "", "", false
	}
	return path[:i], path[i+1:], true
}

func reconcileRemoved(ctx context.Context, store *catalog.Store, root string, seen *sync.Map) error {
	existing, err := store.ExistingPaths(ctx, root)
	if err != nil {
		return err
	}
	for _, path := range existing {
		if _, ok := seen.Load(path); ok {
			continue
		}
		if err := store.DeleteFile(ctx, path); err != nil {
			return err
		}
	}
	return nil
}
