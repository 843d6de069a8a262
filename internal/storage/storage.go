package storage

import (
	"context"
	"time"
)

// Storage persists projects, their tracked files and clustered graph snapshots
type Storage interface {
	// Project operations
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, rootPath string) (*Project, error)
	UpdateProject(ctx context.Context, project *Project) error

	// File operations
	UpsertFile(ctx context.Context, file *File) error
	GetFile(ctx context.Context, projectID int64, filePath string) (*File, error)
	ListFiles(ctx context.Context, projectID int64) ([]*File, error)
	DeleteFile(ctx context.Context, fileID int64) error

	// Snapshot operations
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*Snapshot, error)
	LatestSnapshot(ctx context.Context, projectID int64) (*Snapshot, error)
	ListSnapshots(ctx context.Context, projectID int64, limit int) ([]*Snapshot, error)
	DeleteSnapshot(ctx context.Context, id string) error
	PruneSnapshots(ctx context.Context, projectID int64, keep int) (int, error)

	// Status operations
	GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Project represents an analysed Go codebase
type Project struct {
	ID            int64
	RootPath      string
	ModuleName    string
	GoVersion     string
	TotalFiles    int
	TotalChunks   int
	IndexVersion  string
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// File represents a tracked Go source file
type File struct {
	ID            int64
	ProjectID     int64
	FilePath      string // Relative to project root
	PackageName   string
	ContentHash   [32]byte
	ModTime       time.Time
	SizeBytes     int64
	ChunkCount    int
	ParseError    *string // Nullable
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Snapshot is a persisted chunk graph in node-link JSON form together with
// the settings that produced it
type Snapshot struct {
	ID          string // UUID, assigned by SaveSnapshot when empty
	ProjectID   int64
	CorpusHash  string // digest of the analysed files and settings
	Algorithm   string
	Seed        uint64
	Provider    string
	Clustered   bool
	NumChunks   int
	NumClusters int
	NumEdges    int
	Graph       []byte // node-link JSON; empty in ListSnapshots results
	CreatedAt   time.Time
}

// ProjectStatus contains statistics about an analysed project
type ProjectStatus struct {
	Project         *Project
	FilesCount      int
	FilesWithErrors int
	SnapshotsCount  int
	Latest          *Snapshot // without graph payload; nil when none
	IndexSizeMB     float64
	LastIndexedAt   time.Time
	Health          HealthStatus
}

// HealthStatus represents the health of the store
type HealthStatus struct {
	DatabaseAccessible bool
	SnapshotAvailable  bool
}
