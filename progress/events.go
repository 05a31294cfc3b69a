package progress

// Scan stream events, one struct per variant carrying its own "type"
// discriminator so JSONSink's output is a tagged union on the wire.

type scanEvent struct{}

func (scanEvent) Stream() string { return "scan" }

// ScanDiscovery reports the discovery goroutine entering a directory.
type ScanDiscovery struct {
	scanEvent
	Type      string `json:"type"`
	Directory string `json:"directory"`
}

// NewScanDiscovery builds a ScanDiscovery event.
func NewScanDiscovery(directory string) ScanDiscovery {
	return ScanDiscovery{Type: "Discovery", Directory: directory}
}

// ScanFileStarted reports a worker beginning to hash path.
type ScanFileStarted struct {
	scanEvent
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// NewScanFileStarted builds a ScanFileStarted event.
func NewScanFileStarted(path string, size int64) ScanFileStarted {
	return ScanFileStarted{Type: "FileStarted", Path: path, Size: size}
}

// ScanFileCompleted reports a worker finishing path.
type ScanFileCompleted struct {
	scanEvent
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// NewScanFileCompleted builds a ScanFileCompleted event.
func NewScanFileCompleted(path string, size int64) ScanFileCompleted {
	return ScanFileCompleted{Type: "FileCompleted", Path: path, Size: size}
}

// ScanSummary reports the final scan totals.
type ScanSummary struct {
	scanEvent
	Type            string  `json:"type"`
	DiscoveredFiles int64   `json:"discovered_files"`
	ProcessedFiles  int64   `json:"processed_files"`
	TotalBytes      int64   `json:"total_bytes"`
	DurationMS      int64   `json:"duration_ms"`
	FilesPerSec     float64 `json:"files_per_sec"`
	BytesPerSec     float64 `json:"bytes_per_sec"`
}

// NewScanSummary builds a ScanSummary event.
func NewScanSummary(discovered, processed, totalBytes, durationMS int64) ScanSummary {
	s := ScanSummary{
		Type:            "Summary",
		DiscoveredFiles: discovered,
		ProcessedFiles:  processed,
		TotalBytes:      totalBytes,
		DurationMS:      durationMS,
	}
	if durationMS > 0 {
		secs := float64(durationMS) / 1000
		s.FilesPerSec = float64(processed) / secs
		s.BytesPerSec = float64(totalBytes) / secs
	}
	return s
}

// DatImportEvent variants mirror the dat_import stream's event set.

type datImportEvent struct{}

func (datImportEvent) Stream() string { return "dat_import" }

// DatImportStarted reports an import beginning for path.
type DatImportStarted struct {
	datImportEvent
	Type string `json:"type"`
	Path string `json:"path"`
}

// NewDatImportStarted builds a DatImportStarted event.
func NewDatImportStarted(path string) DatImportStarted {
	return DatImportStarted{Type: "Started", Path: path}
}

// DatDetected reports the manifest's detected name and format.
type DatDetected struct {
	datImportEvent
	Type   string `json:"type"`
	Name   string `json:"name"`
	Format string `json:"format"`
}

// NewDatDetected builds a DatDetected event.
func NewDatDetected(name, format string) DatDetected {
	return DatDetected{Type: "DatDetected", Name: name, Format: format}
}

// SetStarted reports the importer entering set index with name.
type SetStarted struct {
	datImportEvent
	Type  string `json:"type"`
	Name  string `json:"name"`
	Index int64  `json:"index"`
}

// NewSetStarted builds a SetStarted event.
func NewSetStarted(name string, index int64) SetStarted {
	return SetStarted{Type: "SetStarted", Name: name, Index: index}
}

// RomProgress reports a running total of entries streamed so far.
type RomProgress struct {
	datImportEvent
	Type         string `json:"type"`
	TotalEntries int64  `json:"total_entries"`
}

// NewRomProgress builds a RomProgress event.
func NewRomProgress(total int64) RomProgress {
	return RomProgress{Type: "RomProgress", TotalEntries: total}
}

// DatImportCompleted reports a finished import's totals.
type DatImportCompleted struct {
	datImportEvent
	Type          string  `json:"type"`
	Name          string  `json:"name"`
	EntryCount    int64   `json:"entry_count"`
	DurationMS    int64   `json:"duration_ms"`
	EntriesPerSec float64 `json:"entries_per_sec"`
}

// NewDatImportCompleted builds a DatImportCompleted event.
func NewDatImportCompleted(name string, entryCount, durationMS int64) DatImportCompleted {
	c := DatImportCompleted{Type: "Completed", Name: name, EntryCount: entryCount, DurationMS: durationMS}
	if durationMS > 0 {
		c.EntriesPerSec = float64(entryCount) / (float64(durationMS) / 1000)
	}
	return c
}

// DatImportSkipped reports an import that was skipped (Unchanged or
// Duplicate) with a human-readable reason.
type DatImportSkipped struct {
	datImportEvent
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// NewDatImportSkipped builds a DatImportSkipped event.
func NewDatImportSkipped(reason string) DatImportSkipped {
	return DatImportSkipped{Type: "Skipped", Reason: reason}
}
