package types

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
)

// ChunkKind represents the kind of declaration a chunk was cut from
type ChunkKind string

const (
	ChunkFunction   ChunkKind = "function"
	ChunkTypeDecl   ChunkKind = "type"
	ChunkMethod     ChunkKind = "method"
	ChunkPackage    ChunkKind = "package"
	ChunkConstGroup ChunkKind = "const_group"
	ChunkVarGroup   ChunkKind = "var_group"
)

// ChunkMetadata locates a chunk inside the repository
type ChunkMetadata struct {
	FilePath   string // Relative to project root
	StartLine  int    // 1-based, inclusive
	EndLine    int    // 1-based, inclusive
	TokenCount int
	SpanIDs    []string // Symbol spans covered by the chunk
}

// Chunk is a contiguous span of source code treated as an atomic unit for
// graph construction and clustering
type Chunk struct {
	ID          string
	Content     string
	ContentHash [32]byte
	Kind        ChunkKind
	Metadata    ChunkMetadata

	// Names declared by the chunk
	Definitions []string
}

// ChunkID builds the stable identifier of a chunk from its location
func ChunkID(filePath string, startLine, endLine int) string {
	return fmt.Sprintf("%s:%d-%d", filePath, startLine, endLine)
}

// Range returns the whole-line range covered by the chunk
func (c *Chunk) Range() Range {
	return LineRange(c.Metadata.StartLine, c.Metadata.EndLine)
}

// ValidateContent checks if the chunk content is valid
func (c *Chunk) ValidateContent() error {
	if c.Content == "" {
		return ErrEmptyContent
	}

	if c.Metadata.StartLine <= 0 || c.Metadata.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}

	if c.Metadata.StartLine > c.Metadata.EndLine {
		return errors.New("start line must be before or equal to end line")
	}

	return nil
}

// ComputeTokenCount estimates the number of tokens in the chunk
// Uses a simple heuristic: characters / 4
func (c *Chunk) ComputeTokenCount() int {
	c.Metadata.TokenCount = len(c.Content) / 4
	return c.Metadata.TokenCount
}

// ComputeContentHash computes the SHA-256 hash of the chunk content
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = sha256.Sum256([]byte(c.Content))
}

// Validate performs comprehensive validation of the chunk
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return ErrMissingChunkID
	}

	if c.Metadata.FilePath == "" {
		return ErrMissingFilePath
	}

	return c.ValidateContent()
}

// IsTestFile reports whether a path names a Go test file or lives under a
// test-only directory
func IsTestFile(path string) bool {
	if strings.HasSuffix(path, "_test.go") {
		return true
	}
	for _, part := range strings.Split(path, "/") {
		if part == "testdata" {
			return true
		}
	}
	return false
}
