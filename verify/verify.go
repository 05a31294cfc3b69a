// Package verify matches scanned files against manifest entries and
// classifies the result.
//
// Classification is side-effect-free: Run returns a Report and never
// writes a matches row itself. WriteMatches is a distinct, explicit step,
// so the matching pass never mutates the catalog as a side effect of
// being read.
package verify

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/romshelf/romshelf"
	"github.com/romshelf/romshelf/catalog"
)

// FileResult is one ScannedFile's classification.
type FileResult struct {
	FileID  int64
	Path    string
	Status  romshelf.VerifyStatus
	EntryID int64 // 0 unless Status is Verified or Misnamed
}

// Report is the side-effect-free result of a verify Run.
type Report struct {
	Files        []FileResult
	Missing      []catalog.UnmatchedEntry
	Verified     int64
	Misnamed     int64
	MissingCount int64
	Unmatched    int64
}

// Run classifies every ScannedFile in store against the catalog's
// manifest entries, in digest-priority order: SHA-1, then CRC32+size,
// then MD5 — first hit wins, ties broken by the entry with the lowest id
// (i.e. earliest manifest insertion order, since catalog's candidate
// queries always order by id ascending).
func Run(ctx context.Context, store *catalog.Store) (Report, error) {
	slog.DebugContext(ctx, "verify start")
	defer slog.DebugContext(ctx, "verify done")

	files, err := store.ListScannedFiles(ctx)
	if err != nil {
		return Report{}, err
	}

	lim := runtime.GOMAXPROCS(0)
	work := make(chan romshelf.ScannedFile, lim)
	results := make(chan FileResult, lim)

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  []error
	)
	wg.Add(lim)
	for i := 0; i < lim; i++ {
		go func() {
			defer wg.Done()
			for f := range work {
				res, err := classifyOne(ctx, store, f)
				if err != nil {
					errMu.Lock()
					errs = append(errs, err)
					errMu.Unlock()
					continue
				}
				results <- res
			}
		}()
	}

	go func() {
		defer close(work)
		for _, f := range files {
			select {
			case work <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var report Report
	for res := range results {
		report.Files = append(report.Files, res)
		switch res.Status {
		case romshelf.StatusVerified:
			report.Verified++
		case romshelf.StatusMisnamed:
			report.Misnamed++
		case romshelf.StatusUnmatched:
			report.Unmatched++
		}
	}
	if len(errs) > 0 {
		return Report{}, errs[0]
	}

	matchedEntries := make(map[int64]bool, len(report.Files))
	for _, f := range report.Files {
		if f.Status == romshelf.StatusVerified || f.Status == romshelf.StatusMisnamed {
			matchedEntries[f.EntryID] = true
		}
	}

	allEntries, err := store.ListAllEntries(ctx)
	if err != nil {
		return Report{}, err
	}
	for _, e := range allEntries {
		if !matchedEntries[e.EntryID] {
			report.Missing = append(report.Missing, e)
		}
	}
	report.MissingCount = int64(len(report.Missing))

	slog.InfoContext(ctx, "verify classified",
		"verified", report.Verified, "misnamed", report.Misnamed,
		"unmatched", report.Unmatched, "missing", report.MissingCount)

	return report, nil
}

func classifyOne(ctx context.Context, store *catalog.Store, f romshelf.ScannedFile) (FileResult, error) {
	res := FileResult{FileID: f.ID, Path: f.Path, Status: romshelf.StatusUnmatched}

	entryID, name, found, err := bestCandidate(ctx, store, f)
	if err != nil {
		return FileResult{}, err
	}
	if !found {
		return res, nil
	}

	res.EntryID = entryID
	if strings.EqualFold(f.Filename, name) {
		res.Status = romshelf.StatusVerified
	} else {
		res.Status = romshelf.StatusMisnamed
	}
	return res, nil
}

// bestCandidate applies the SHA-1 → CRC32+size → MD5 fallback order,
// returning the first bucket that yields any candidates and its
// lowest-id (earliest-inserted) member.
func bestCandidate(ctx context.Context, store *catalog.Store, f romshelf.ScannedFile) (entryID int64, name string, found bool, err error) {
	if sha1 := f.Digest.SHA1(); sha1 != "" {
		cands, err := store.CandidatesBySHA1(ctx, sha1)
		if err != nil {
			return 0, "", false, err
		}
		if len(cands) > 0 {
			return cands[0].EntryID, cands[0].Name, true, nil
		}
	}
	if crc := f.Digest.CRC32(); crc != "" {
		cands, err := store.CandidatesByCRC32Size(ctx, crc, f.Size)
		if err != nil {
			return 0, "", false, err
		}
		if len(cands) > 0 {
			return cands[0].EntryID, cands[0].Name, true, nil
		}
	}
	if md5 := f.Digest.MD5(); md5 != "" {
		cands, err := store.CandidatesByMD5(ctx, md5)
		if err != nil {
			return 0, "", false, err
		}
		if len(cands) > 0 {
			return cands[0].EntryID, cands[0].Name, true, nil
		}
	}
	return 0, "", false, nil
}

// WriteMatches persists report's Verified/Misnamed classifications as
// Match rows, and clears any stale Match for files that reclassified as
// Unmatched. This is the explicit, separate mutation step the read-only
// classification pass never performs itself.
func WriteMatches(ctx context.Context, store *catalog.Store, report Report) error {
	for _, f := range report.Files {
		switch f.Status {
		case romshelf.StatusVerified, romshelf.StatusMisnamed:
			if err := store.InsertMatch(ctx, f.FileID, f.EntryID); err != nil {
				return err
			}
		case romshelf.StatusUnmatched:
			if err := store.ClearMatch(ctx, f.FileID); err != nil {
				return err
			}
		}
	}
	return nil
}
