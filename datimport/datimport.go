// Package datimport ingests manifest files into the catalog.
//
// Import is a finite state machine: a State enum, a map[State]stateFunc,
// and a run loop that walks states until it reaches Terminal or returns
// an error, rather than inlining the steps as one straight-line function.
package datimport

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver"

	"github.com/romshelf/romshelf"
	"github.com/romshelf/romshelf/catalog"
	"github.com/romshelf/romshelf/datfile"
	"github.com/romshelf/romshelf/hashio"
	"github.com/romshelf/romshelf/progress"
)

// State is one node of the importer's FSM.
type State int

const (
	Terminal State = iota
	CheckUnchanged
	CheckDuplicate
	Categorize
	StreamEntries
)

type stateFunc func(context.Context, *job) (State, error)

var stateToStateFunc = map[State]stateFunc{
	CheckUnchanged: stepCheckUnchanged,
	CheckDuplicate: stepCheckDuplicate,
	Categorize:     stepCategorize,
	StreamEntries:  stepStreamEntries,
}

// Options controls category derivation.
type Options struct {
	// Category, if set, overrides any derivation heuristic.
	Category string
	// CategoryRoot is the directory a manifest's location on disk is made
	// relative to when deriving a category. For a TOSEC-named manifest the
	// relative directory is prefixed to the parsed category
	// ("rel/Manufacturer/System"); otherwise it is the category.
	CategoryRoot string
}

// OutcomeKind classifies how an import attempt concluded. Unchanged and
// Duplicate are not errors — they are the importer declining to do work
// it already did.
type OutcomeKind int

const (
	Imported OutcomeKind = iota
	Duplicate
	Unchanged
)

func (k OutcomeKind) String() string {
	names := [...]string{"imported", "duplicate", "unchanged"}
	if int(k) < 0 || int(k) >= len(names) {
		return "unknown"
	}
	return names[k]
}

// Result is what Import returns.
type Result struct {
	Kind          OutcomeKind
	Name          string
	EntryCount    int64
	EntriesPerSec float64
	Duration      time.Duration
}

type job struct {
	store *catalog.Store
	path  string
	opts  Options
	sink  progress.Sink
	result Result

	fileSize    int64
	fileMTime   time.Time
	contentSHA1 string
	category    string

	tx         *catalog.Tx
	sourceID   int64
	versionID  int64
	curSetID   *int64
	header     datfile.Header
	setCount   int64
	entryCount int64
}

// Import runs the five-step algorithm against path, writing into store.
func Import(ctx context.Context, store *catalog.Store, path string, opts Options, sink progress.Sink) (Result, error) {
	log := slog.With("path", path)
	log.InfoContext(ctx, "import start")

	if sink == nil {
		sink = progress.NoopSink{}
	}
	sink.Emit(progress.NewDatImportStarted(path))

	j := &job{store: store, path: path, opts: opts, sink: sink}
	state := CheckUnchanged
	for state != Terminal {
		next, err := stateToStateFunc[state](ctx, j)
		if err != nil {
			if j.tx != nil {
				j.tx.Rollback()
			}
			log.WarnContext(ctx, "import failed", "state", state, "reason", err)
			return Result{}, err
		}
		state = next
	}
	log.InfoContext(ctx, "import done", "outcome", j.result.Kind, "entries", j.result.EntryCount)
	return j.result, nil
}

func stepCheckUnchanged(ctx context.Context, j *job) (State, error) {
	fi, err := os.Stat(j.path)
	if err != nil {
		return Terminal, &romshelf.Error{Op: "datimport.Import", Kind: romshelf.ErrPrecondition, Message: "cannot stat manifest", Inner: err}
	}
	j.fileSize = fi.Size()
	j.fileMTime = fi.ModTime()

	existing, ok, err := j.store.LookupSourceByPath(ctx, j.path)
	if err != nil {
		return Terminal, err
	}
	if ok && existing.FileSize == j.fileSize && existing.FileMTime.Unix() == j.fileMTime.Unix() {
		j.sink.Emit(progress.NewDatImportSkipped("Unchanged DAT: " + existing.Name))
		j.result = Result{Kind: Unchanged, Name: existing.Name}
		return Terminal, nil
	}
	return CheckDuplicate, nil
}

func stepCheckDuplicate(ctx context.Context, j *job) (State, error) {
	f, err := os.Open(j.path)
	if err != nil {
		return Terminal, &romshelf.Error{Op: "datimport.Import", Kind: romshelf.ErrPrecondition, Message: "cannot open manifest", Inner: err}
	}
	d, err := hashio.Stream(f)
	f.Close()
	if err != nil {
		return Terminal, err
	}
	j.contentSHA1 = d.SHA1()

	name, ok, err := j.store.LookupSourceBySHA1(ctx, j.contentSHA1)
	if err != nil {
		return Terminal, err
	}
	if ok {
		j.sink.Emit(progress.NewDatImportSkipped("Duplicate DAT: " + name))
		j.result = Result{Kind: Duplicate, Name: name}
		return Terminal, nil
	}
	return Categorize, nil
}

func stepCategorize(ctx context.Context, j *job) (State, error) {
	j.category = deriveCategory(j.path, j.opts)
	return StreamEntries, nil
}

func stepStreamEntries(ctx context.Context, j *job) (State, error) {
	tx, err := j.store.Begin(ctx)
	if err != nil {
		return Terminal, err
	}
	j.tx = tx

	v := &importVisitor{job: j}
	f, err := os.Open(j.path)
	if err != nil {
		return Terminal, &romshelf.Error{Op: "datimport.Import", Kind: romshelf.ErrPrecondition, Message: "cannot open manifest", Inner: err}
	}
	defer f.Close()

	start := time.Now()
	if err := datfile.Parse(f, j.path, v); err != nil {
		return Terminal, err
	}
	if err := j.tx.UpdateVersionEntryCount(ctx, j.versionID, j.entryCount); err != nil {
		return Terminal, err
	}
	if err := j.tx.Commit(); err != nil {
		return Terminal, err
	}
	j.tx = nil

	dur := time.Since(start)
	var perSec float64
	if j.entryCount > 0 && dur.Seconds() > 0 {
		perSec = float64(j.entryCount) / dur.Seconds()
	}
	j.sink.Emit(progress.NewDatImportCompleted(j.header.Name, j.entryCount, dur.Milliseconds()))
	j.result = Result{Kind: Imported, Name: j.header.Name, EntryCount: j.entryCount, EntriesPerSec: perSec, Duration: dur}
	return Terminal, nil
}

// importVisitor implements datfile.Visitor, writing each callback straight
// into the open transaction as it's parsed.
type importVisitor struct {
	job *job
}

func (v *importVisitor) DatStart(h datfile.Header) error {
	j := v.job
	j.header = h
	j.sink.Emit(progress.NewDatDetected(h.Name, string(h.Format)))

	srcID, err := j.tx.InsertManifestSource(context.Background(), romshelf.ManifestSource{
		Name:         h.Name,
		Format:       h.Format,
		SourcePath:   j.path,
		ContentSHA1:  j.contentSHA1,
		FileSize:     j.fileSize,
		FileMTime:    j.fileMTime,
		CategoryPath: j.category,
	})
	if err != nil {
		return err
	}
	j.sourceID = srcID

	versionID, err := j.tx.InsertManifestVersion(context.Background(), srcID, normalizeVersion(h.Version), time.Now())
	if err != nil {
		return err
	}
	j.versionID = versionID
	return nil
}

func (v *importVisitor) SetStart(s datfile.SetInfo) error {
	j := v.job
	setID, err := j.tx.InsertSet(context.Background(), j.versionID, s.Name)
	if err != nil {
		return err
	}
	j.curSetID = &setID
	j.setCount++
	j.sink.Emit(progress.NewSetStarted(s.Name, j.setCount))
	return nil
}

func (v *importVisitor) SetEnd(datfile.SetInfo) error {
	v.job.curSetID = nil
	return nil
}

func (v *importVisitor) Rom(r datfile.RomEntry) error {
	j := v.job
	if _, err := j.tx.InsertManifestEntry(context.Background(), j.versionID, j.curSetID, r.Name, r.Size, r.Digest); err != nil {
		return err
	}
	j.entryCount++
	if j.entryCount%1000 == 0 {
		j.sink.Emit(progress.NewRomProgress(j.entryCount))
	}
	return nil
}

func (v *importVisitor) DatEnd() error { return nil }

// deriveCategory implements the preference order: caller
// override, then TOSEC filename parse (prefixed with the relative directory
// under CategoryRoot when that is set and not "."), then relative directory
// under CategoryRoot alone.
func deriveCategory(path string, opts Options) string {
	if opts.Category != "" {
		return opts.Category
	}
	filename := filepath.Base(path)
	if cat, ok := parseTOSECCategory(filename); ok {
		if opts.CategoryRoot != "" {
			if rel, err := filepath.Rel(opts.CategoryRoot, filepath.Dir(path)); err == nil {
				if cleaned := cleanCategorySegments(rel); cleaned != "" && cleaned != "." {
					return cleaned + "/" + cat
				}
			}
		}
		return cat
	}
	if opts.CategoryRoot != "" {
		if rel, err := filepath.Rel(opts.CategoryRoot, filepath.Dir(path)); err == nil {
			return cleanCategorySegments(rel)
		}
	}
	return ""
}

func cleanCategorySegments(value string) string {
	v := strings.Trim(value, "/\\")
	v = strings.TrimSpace(v)
	if v == "." {
		return ""
	}
	return v
}

// normalizeVersion parses declared as semver when it looks semver-shaped,
// returning its canonical string form so ManifestVersion rows sort
// correctly; any other shape (TOSEC/No-Intro date-stamp versions,
// free-form strings) passes through unchanged.
func normalizeVersion(declared string) string {
	if declared == "" {
		return ""
	}
	if v, err := semver.NewVersion(declared); err == nil {
		return v.String()
	}
	return declared
}
