// Package organise plans and executes layout changes over matched files:
// in-place renames, a loose rebuilt tree, or synthesised zip archives.
//
// Each planned item walks its own finite state machine:
// Planned → [Missing|Exists|Executing] → [Succeeded|Failed], Skipped
// terminal from Missing or Exists.
package organise

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/romshelf/romshelf/catalog"
)

// Mode selects exactly one reorganisation strategy per invocation.
type Mode int

const (
	RenameOnly Mode = iota
	Loose
	ZipPerSet
	ZipPerDat
)

// State is one node of a planned item's FSM.
type State int

const (
	Planned State = iota
	Missing
	Exists
	Executing
	Succeeded
	Failed
	Skipped
)

func (s State) terminal() bool {
	switch s {
	case Succeeded, Failed, Skipped:
		return true
	default:
		return false
	}
}

// Options controls a single organiser run.
type Options struct {
	Mode Mode
	// OutputRoot is the directory new layouts are rooted under.
	OutputRoot string
	// DryRun, when true, plans and checks every item but performs no
	// filesystem mutation and no catalog write.
	DryRun bool
}

// Action is one planned (and, unless DryRun, executed) item.
type Action struct {
	FileID     int64
	SourcePath string
	TargetPath string
	State      State
	Err        error
}

// Report summarises one organiser run.
type Report struct {
	Actions   []Action
	Succeeded int64
	Skipped   int64
	Failed    int64
}

func (r *Report) record(a Action) {
	r.Actions = append(r.Actions, a)
	switch a.State {
	case Succeeded:
		r.Succeeded++
	case Skipped, Missing, Exists, Planned:
		r.Skipped++
	case Failed:
		r.Failed++
	}
}

// sanitizeChars are replaced with "_" in any path component derived from
// manifest data.
const sanitizeChars = `/\:*?"<>|`

func sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if strings.ContainsRune(sanitizeChars, r) {
			b.WriteByte('_')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// sanitizeCategory splits a "/"-joined category path and sanitises each
// component individually, preserving the hierarchy the importer derived.
func sanitizeCategory(category string) []string {
	if category == "" {
		return nil
	}
	parts := strings.Split(category, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, sanitize(p))
	}
	return out
}

func isArchived(path string) (container, interior string, ok bool) {
	if i := strings.IndexByte(path, '#'); i >= 0 {
		return path[:i], path[i+1:], true
	}
	return "", "", false
}

// Run plans and (unless opts.DryRun) executes a reorganisation of every
// matched file in store, according to opts.Mode.
func Run(ctx context.Context, store *catalog.Store, opts Options) (Report, error) {
	log := slog.With("output_root", opts.OutputRoot, "dry_run", opts.DryRun)
	log.InfoContext(ctx, "organise start")

	matched, err := store.ListMatchedFiles(ctx)
	if err != nil {
		return Report{}, err
	}
	log.DebugContext(ctx, "planning", "matched_files", len(matched))

	var report Report
	switch opts.Mode {
	case RenameOnly:
		report, err = runFileMoves(ctx, store, opts, planRenameOnly(matched))
	case Loose:
		report, err = runFileMoves(ctx, store, opts, planLoose(matched, opts.OutputRoot))
	case ZipPerSet:
		report, err = runArchives(ctx, opts, groupZipPerSet(matched, opts.OutputRoot))
	case ZipPerDat:
		report, err = runArchives(ctx, opts, groupZipPerDat(matched, opts.OutputRoot))
	default:
		return Report{}, &invalidModeError{opts.Mode}
	}
	if err != nil {
		log.WarnContext(ctx, "organise failed", "reason", err)
		return Report{}, err
	}
	log.InfoContext(ctx, "organise done",
		"succeeded", report.Succeeded, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

type invalidModeError struct{ mode Mode }

func (e *invalidModeError) Error() string { return "organise: unknown mode" }

// fileMove is one planned rename-only or loose-tree move.
type fileMove struct {
	FileID     int64
	Source     string // filesystem path, or "container#interior"
	Target     string // filesystem path
	IsRename   bool   // update the catalog's files row on success
	NewName    string // new filename, set when IsRename
}

func planRenameOnly(matched []catalog.MatchedFile) []fileMove {
	var out []fileMove
	for _, mf := range matched {
		if _, _, archived := isArchived(mf.CurrentPath); archived {
			continue // rename-only only applies to loose files
		}
		newName := sanitize(mf.DeclaredName)
		if strings.EqualFold(mf.CurrentName, newName) {
			continue // already correctly named
		}
		target := filepath.Join(filepath.Dir(mf.CurrentPath), newName)
		out = append(out, fileMove{
			FileID: mf.FileID, Source: mf.CurrentPath, Target: target,
			IsRename: true, NewName: newName,
		})
	}
	return out
}

func planLoose(matched []catalog.MatchedFile, root string) []fileMove {
	var out []fileMove
	for _, mf := range matched {
		parts := sanitizeCategory(mf.Category)
		if mf.SetName != "" {
			parts = append(parts, sanitize(mf.SetName))
		}
		parts = append(parts, sanitize(mf.DeclaredName))
		target := filepath.Join(root, filepath.Join(parts...))
		out = append(out, fileMove{FileID: mf.FileID, Source: mf.CurrentPath, Target: target})
	}
	return out
}

// runFileMoves walks each planned move through the FSM, performing the
// actual rename/copy unless opts.DryRun.
func runFileMoves(ctx context.Context, store *catalog.Store, opts Options, moves []fileMove) (Report, error) {
	var report Report
	for _, mv := range moves {
		a := Action{FileID: mv.FileID, SourcePath: mv.Source, TargetPath: mv.Target, State: Planned}

		if _, _, archived := isArchived(mv.Source); archived {
			if _, err := os.Stat(mv.Source[:strings.IndexByte(mv.Source, '#')]); err != nil {
				a.State, a.Err = Missing, err
				report.record(a)
				continue
			}
		} else if _, err := os.Stat(mv.Source); err != nil {
			a.State, a.Err = Missing, err
			report.record(a)
			continue
		}
		if _, err := os.Stat(mv.Target); err == nil {
			a.State = Exists
			report.record(a)
			continue
		}

		if opts.DryRun {
			report.record(a) // Planned: would execute
			continue
		}

		a.State = Executing
		if err := moveInto(ctx, mv); err != nil {
			a.State, a.Err = Failed, err
			report.record(a)
			continue
		}
		if mv.IsRename {
			if err := store.RenameFile(ctx, mv.FileID, mv.Target, mv.NewName); err != nil {
				a.State, a.Err = Failed, err
				report.record(a)
				continue
			}
		}
		a.State = Succeeded
		report.record(a)
	}
	return report, nil
}

// moveInto performs mv: an os.Rename for a loose-to-loose move (with a
// copy+remove fallback across filesystems), or a stream-copy out of a
// container for an archive-sourced item (the container itself is never
// modified).
func moveInto(ctx context.Context, mv fileMove) error {
	if err := os.MkdirAll(filepath.Dir(mv.Target), 0o755); err != nil {
		return err
	}
	if container, interior, archived := isArchived(mv.Source); archived {
		return copyFromArchive(ctx, container, interior, mv.Target)
	}
	if err := os.Rename(mv.Source, mv.Target); err == nil {
		return nil
	}
	return copyThenRemove(mv.Source, mv.Target)
}

func copyThenRemove(source, target string) error {
	if err := copyFile(source, target); err != nil {
		return err
	}
	return os.Remove(source)
}

func copyFile(source, target string) error {
	src, err := os.Open(source)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, src)
	return err
}

func copyFromArchive(ctx context.Context, container, interior, target string) error {
	entry, cleanup, err := statArchiveEntry(ctx, container, interior)
	if err != nil {
		return err
	}
	defer cleanup()
	r, err := entry.Open()
	if err != nil {
		return err
	}
	defer r.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, r)
	return err
}

// archiveGroup is every entry destined for one synthesised output
// archive.
type archiveGroup struct {
	ArchivePath string
	Entries     []archiveEntry
}

type archiveEntry struct {
	FileID   int64
	Source   string // filesystem path, or "container#interior"
	Interior string
}

func groupZipPerSet(matched []catalog.MatchedFile, root string) []archiveGroup {
	groups := map[string]*archiveGroup{}
	var order []string
	for _, mf := range matched {
		setOrDat := mf.SetName
		if setOrDat == "" {
			setOrDat = mf.ManifestName
		}
		parts := append(sanitizeCategory(mf.Category), sanitize(setOrDat)+".zip")
		archivePath := filepath.Join(root, filepath.Join(parts...))
		g, ok := groups[archivePath]
		if !ok {
			g = &archiveGroup{ArchivePath: archivePath}
			groups[archivePath] = g
			order = append(order, archivePath)
		}
		g.Entries = append(g.Entries, archiveEntry{
			FileID: mf.FileID, Source: mf.CurrentPath, Interior: sanitize(mf.DeclaredName),
		})
	}
	return orderedGroups(groups, order)
}

func groupZipPerDat(matched []catalog.MatchedFile, root string) []archiveGroup {
	groups := map[string]*archiveGroup{}
	var order []string
	for _, mf := range matched {
		parts := append(sanitizeCategory(mf.Category), sanitize(mf.ManifestName)+".zip")
		archivePath := filepath.Join(root, filepath.Join(parts...))
		g, ok := groups[archivePath]
		if !ok {
			g = &archiveGroup{ArchivePath: archivePath}
			groups[archivePath] = g
			order = append(order, archivePath)
		}
		interior := sanitize(mf.DeclaredName)
		if mf.SetName != "" {
			interior = sanitize(mf.SetName) + "/" + interior
		}
		g.Entries = append(g.Entries, archiveEntry{
			FileID: mf.FileID, Source: mf.CurrentPath, Interior: interior,
		})
	}
	return orderedGroups(groups, order)
}

func orderedGroups(groups map[string]*archiveGroup, order []string) []archiveGroup {
	out := make([]archiveGroup, 0, len(order))
	for _, k := range order {
		out = append(out, *groups[k])
	}
	return out
}

// runArchives plans and (unless opts.DryRun) writes one deterministic zip
// per group.
func runArchives(ctx context.Context, opts Options, groups []archiveGroup) (Report, error) {
	var report Report
	for _, g := range groups {
		present, missing := splitByExistence(ctx, g.Entries)
		for _, e := range missing {
			report.record(Action{FileID: e.FileID, SourcePath: e.Source, TargetPath: g.ArchivePath, State: Missing})
		}
		if len(present) == 0 {
			continue
		}

		if _, err := os.Stat(g.ArchivePath); err == nil {
			for _, e := range present {
				report.record(Action{FileID: e.FileID, SourcePath: e.Source, TargetPath: g.ArchivePath, State: Exists})
			}
			continue
		}

		if opts.DryRun {
			for _, e := range present {
				report.record(Action{FileID: e.FileID, SourcePath: e.Source, TargetPath: g.ArchivePath, State: Planned})
			}
			continue
		}

		if err := writeDeterministicZip(ctx, g.ArchivePath, present); err != nil {
			for _, e := range present {
				report.record(Action{FileID: e.FileID, SourcePath: e.Source, TargetPath: g.ArchivePath, State: Failed, Err: err})
			}
			continue
		}
		for _, e := range present {
			report.record(Action{FileID: e.FileID, SourcePath: e.Source, TargetPath: g.ArchivePath, State: Succeeded})
		}
	}
	return report, nil
}

func splitByExistence(ctx context.Context, entries []archiveEntry) (present, missing []archiveEntry) {
	for _, e := range entries {
		if container, interior, archived := isArchived(e.Source); archived {
			if _, cleanup, err := statArchiveEntry(ctx, container, interior); err != nil {
				missing = append(missing, e)
				continue
			} else {
				cleanup()
			}
		} else if _, err := os.Stat(e.Source); err != nil {
			missing = append(missing, e)
			continue
		}
		present = append(present, e)
	}
	return present, missing
}

// sortedEntries returns entries ordered ascending by lowercase interior
// name, for deterministic TorrentZIP-like output.
func sortedEntries(entries []archiveEntry) []archiveEntry {
	out := make([]archiveEntry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Interior) < strings.ToLower(out[j].Interior)
	})
	return out
}
