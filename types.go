package romshelf

import "time"

// DatFormat is the detected dialect of a manifest file.
type DatFormat string

// Recognised manifest formats, detected by filename keyword.
const (
	FormatTOSEC      DatFormat = "TOSEC"
	FormatNoIntro    DatFormat = "No-Intro"
	FormatRedump     DatFormat = "Redump"
	FormatMAME       DatFormat = "MAME"
	FormatClrMamePro DatFormat = "ClrMamePro"
	FormatUnknown    DatFormat = "Unknown"
)

// ManifestSource is one ingested manifest file.
type ManifestSource struct {
	ID           int64
	Name         string
	Version      string
	Format       DatFormat
	SourcePath   string
	ContentSHA1  string
	FileSize     int64
	FileMTime    time.Time
	CategoryPath string
}

// ManifestVersion is one import instance of a ManifestSource.
type ManifestVersion struct {
	ID         int64
	SourceID   int64
	Version    string
	LoadedAt   time.Time
	EntryCount int64
}

// Set is a named group of expected files within one ManifestVersion.
type Set struct {
	ID        int64
	VersionID int64
	Name      string
}

// ManifestEntry is one expected file declared by a manifest.
type ManifestEntry struct {
	ID        int64
	VersionID int64
	SetID     *int64
	Name      string
	Size      int64
	Digest    Digest
}

// ScannedFile is one concrete file found on disk or inside an archive.
//
// Path encodes container-interior files as "<container-abs-path>#<interior-path>"
// this is the sole signal consumers use to tell loose files from
// archive entries apart.
type ScannedFile struct {
	ID          int64
	Path        string
	Filename    string
	Size        int64
	MTime       time.Time
	Digest      Digest
	ScannedAt   time.Time
	DirectoryID int64
}

// ArchiveEntry reports whether a ScannedFile came from inside a container
// and, if so, splits its Path back into container path and interior path.
func (f ScannedFile) ArchiveEntry() (containerPath, interiorPath string, ok bool) {
	for i := 0; i < len(f.Path); i++ {
		if f.Path[i] == '#' {
			return f.Path[:i], f.Path[i+1:], true
		}
	}
	return "", "", false
}

// Directory is a filesystem directory owning ScannedFiles, plus
// materialised rollup counters.
type Directory struct {
	ID           int64
	Path         string
	Name         string
	ParentID     *int64
	FileCount    int64
	MatchedCount int64
	TotalSize    int64
}

// Match is a computed binding of one ScannedFile to one ManifestEntry.
type Match struct {
	ID        int64
	FileID    int64
	EntryID   int64
}

// Checkpoint is resumable job state, keyed by (JobType, Source).
type Checkpoint struct {
	JobType   string
	Source    string
	LastToken string
	UpdatedAt time.Time
}

// VerifyStatus classifies a verification result into one of four disjoint
// buckets.
type VerifyStatus string

const (
	StatusVerified VerifyStatus = "verified"
	StatusMisnamed VerifyStatus = "misnamed"
	StatusMissing  VerifyStatus = "missing"
	StatusUnmatched VerifyStatus = "unmatched"
)
