package builder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dshills/codegraph/internal/capture"
	"github.com/dshills/codegraph/internal/chunker"
	"github.com/dshills/codegraph/internal/graph"
	"github.com/dshills/codegraph/internal/parser"
	"github.com/dshills/codegraph/internal/scope"
	"github.com/dshills/codegraph/pkg/types"
)

type sourceFile struct {
	path string
	src  string
}

// analyze parses files in order and returns their chunks with a resolver
// covering all of them
func analyze(t *testing.T, files ...sourceFile) ([]types.Chunk, *scope.GoResolver) {
	t.Helper()
	p := parser.New()
	c := chunker.New()
	resolver := scope.NewGoResolver("example.com/app")

	var chunks []types.Chunk
	for _, f := range files {
		res, err := p.ParseSource(f.path, []byte(f.src))
		require.NoError(t, err)
		resolver.Add(res)
		chunks = append(chunks, c.ChunkFile(res, []byte(f.src))...)
	}
	return chunks, resolver
}

func TestBuild_CallAcrossFiles(t *testing.T) {
	chunks, resolver := analyze(t,
		sourceFile{"pkg/a.go", "package pkg\n\nfunc foo() int {\n\treturn 1\n}\n"},
		sourceFile{"pkg/b.go", "package pkg\n\nfunc bar() int {\n\treturn foo()\n}\n"},
	)
	require.Len(t, chunks, 2)

	b := New(resolver, capture.NewASTCapturer(), zaptest.NewLogger(t))
	g, chunkMap, stats, err := b.Build(context.Background(), chunks, Options{})
	require.NoError(t, err)

	a, bar := chunks[0].ID, chunks[1].ID
	imports := g.Edges(graph.EdgeImport)
	calls := g.Edges(graph.EdgeCall)
	require.Len(t, imports, 1)
	require.Len(t, calls, 1)

	assert.Equal(t, bar, imports[0].Src)
	assert.Equal(t, a, imports[0].Dst)
	assert.Equal(t, "foo", imports[0].Ref)
	assert.Equal(t, bar, calls[0].Src)
	assert.Equal(t, a, calls[0].Dst)
	assert.Equal(t, "foo", calls[0].Ref)

	assert.Equal(t, 1, stats.ImportEdges)
	assert.Equal(t, 1, stats.CallEdges)
	assert.Len(t, chunkMap["pkg/a.go"], 1)

	node, ok := g.Chunk(bar)
	require.True(t, ok)
	assert.Contains(t, node.References, "foo")
	assert.NoError(t, g.Validate())
}

func TestBuild_ImportedPackageAndTypeUse(t *testing.T) {
	chunks, resolver := analyze(t,
		sourceFile{"store/store.go", `package store

type DB struct{}

func Open() *DB {
	return &DB{}
}
`},
		sourceFile{"api/api.go", `package api

import "example.com/app/store"

var shared *store.DB

func Start() {
	shared = store.Open()
}
`},
	)

	g, _, stats, err := New(resolver, capture.NewASTCapturer(), nil).
		Build(context.Background(), chunks, Options{})
	require.NoError(t, err)

	// DB is used by Open (same file), by shared (type) and Start reaches Open
	type link struct{ src, dst, ref string }
	var got []link
	for _, e := range g.Edges(graph.EdgeImport) {
		got = append(got, link{e.Src, e.Dst, e.Ref})
	}
	assert.ElementsMatch(t, []link{
		{"store/store.go:5-7", "store/store.go:3-3", "DB"},
		{"store/store.go:5-7", "store/store.go:3-3", "DB"},
		{"api/api.go:5-5", "store/store.go:3-3", "store.DB"},
		{"api/api.go:7-9", "api/api.go:5-5", "shared"},
		{"api/api.go:7-9", "store/store.go:5-7", "store.Open"},
	}, got)

	calls := g.Edges(graph.EdgeCall)
	require.Len(t, calls, 1)
	assert.Equal(t, "store.Open", calls[0].Ref)
	assert.Equal(t, 1, stats.CallEdges)
}

func TestBuild_MethodOnImportedType(t *testing.T) {
	chunks, resolver := analyze(t,
		sourceFile{"store/store.go", `package store

type DB struct{}

func Open() *DB {
	return &DB{}
}

func (d *DB) Get(k string) string {
	return k
}
`},
		sourceFile{"api/handler.go", `package api

import "example.com/app/store"

func Handle() string {
	db := store.Open()
	return db.Get("k")
}
`},
	)

	g, _, _, err := New(resolver, capture.NewASTCapturer(), zaptest.NewLogger(t)).
		Build(context.Background(), chunks, Options{})
	require.NoError(t, err)

	const handle, get = "api/handler.go:5-8", "store/store.go:9-11"
	type link struct{ src, dst, ref string }
	collect := func(kind graph.EdgeKind) []link {
		var links []link
		for _, e := range g.Edges(kind) {
			if e.Src == handle {
				links = append(links, link{e.Src, e.Dst, e.Ref})
			}
		}
		return links
	}

	assert.ElementsMatch(t, []link{
		{handle, "store/store.go:5-7", "store.Open"},
		{handle, get, "db.Get"},
	}, collect(graph.EdgeImport))
	assert.ElementsMatch(t, []link{
		{handle, "store/store.go:5-7", "store.Open"},
		{handle, get, "db.Get"},
	}, collect(graph.EdgeCall))
}

func TestBuild_SkipTests(t *testing.T) {
	chunks, resolver := analyze(t,
		sourceFile{"pkg/a.go", "package pkg\n\nfunc foo() int { return 1 }\n"},
		sourceFile{"pkg/a_test.go", "package pkg\n\nfunc useFoo() int { return foo() }\n"},
	)

	g, chunkMap, stats, err := New(resolver, capture.NewASTCapturer(), nil).
		Build(context.Background(), chunks, Options{SkipTests: true})
	require.NoError(t, err)

	assert.Equal(t, 1, g.NumNodes())
	assert.Zero(t, g.NumEdges())
	assert.Equal(t, 1, stats.SkippedTest)
	assert.Empty(t, chunkMap["pkg/a_test.go"])
}

func TestBuild_RecursionIsNotAnEdge(t *testing.T) {
	chunks, resolver := analyze(t,
		sourceFile{"pkg/fact.go", "package pkg\n\nfunc fact(n int) int {\n\tif n == 0 {\n\t\treturn 1\n\t}\n\treturn n * fact(n-1)\n}\n"},
	)

	g, _, stats, err := New(resolver, capture.NewASTCapturer(), nil).
		Build(context.Background(), chunks, Options{})
	require.NoError(t, err)

	assert.Zero(t, g.NumEdges())
	assert.Equal(t, 1, stats.SelfRefs)
}

// stubResolver resolves every name to a fixed export
type stubResolver struct {
	exportFile  string
	exportRange types.Range
	resolves    bool
}

func (s stubResolver) ScopeByRange(string, types.Range) (string, bool) { return scope.FileScope, true }
func (s stubResolver) RangeByScope(string, string) (types.Range, bool) { return s.exportRange, true }
func (s stubResolver) IsCallRef(string, types.Range) bool              { return false }
func (s stubResolver) ImportToExportScope(string, string, string) (string, string, bool) {
	return s.exportFile, "x", s.resolves
}

type stubCapturer []capture.Reference

func (s stubCapturer) Capture(context.Context, []byte) ([]capture.Reference, error) {
	return s, nil
}

func TestBuild_DropsUnresolvedAndUnowned(t *testing.T) {
	chunks := []types.Chunk{
		{ID: "a.go:1-3", Content: "x", Metadata: types.ChunkMetadata{FilePath: "a.go", StartLine: 1, EndLine: 3}},
		{ID: "b.go:1-3", Content: "y", Metadata: types.ChunkMetadata{FilePath: "b.go", StartLine: 1, EndLine: 3}},
	}
	refs := stubCapturer{{Name: "thing", Range: types.LineRange(1, 1)}}

	t.Run("unresolved", func(t *testing.T) {
		g, _, stats, err := New(stubResolver{resolves: false}, refs, nil).
			Build(context.Background(), chunks, Options{})
		require.NoError(t, err)
		assert.Zero(t, g.NumEdges())
		assert.Equal(t, 2, stats.Unresolved)
	})

	t.Run("export outside every chunk", func(t *testing.T) {
		r := stubResolver{resolves: true, exportFile: "b.go", exportRange: types.LineRange(10, 12)}
		g, _, stats, err := New(r, refs, nil).Build(context.Background(), chunks, Options{})
		require.NoError(t, err)
		assert.Zero(t, g.NumEdges())
		assert.Equal(t, 2, stats.Unowned)
	})

	t.Run("export in an unknown file", func(t *testing.T) {
		r := stubResolver{resolves: true, exportFile: "vendor.go", exportRange: types.LineRange(1, 1)}
		g, _, _, err := New(r, refs, nil).Build(context.Background(), chunks, Options{})
		require.NoError(t, err)
		assert.Zero(t, g.NumEdges())
	})
}

func TestFindChunk(t *testing.T) {
	chunks := []types.Chunk{
		{ID: "a.go:1-5", Metadata: types.ChunkMetadata{FilePath: "a.go", StartLine: 1, EndLine: 5}},
		{ID: "a.go:4-9", Metadata: types.ChunkMetadata{FilePath: "a.go", StartLine: 4, EndLine: 9}},
		{ID: "b.go:1-20", Metadata: types.ChunkMetadata{FilePath: "b.go", StartLine: 1, EndLine: 20}},
	}
	m := make(ChunkMap)
	for _, c := range chunks {
		node := graph.NewChunkNode(c)
		m[node.Metadata.FilePath] = append(m[node.Metadata.FilePath], node)
	}

	tests := []struct {
		name string
		file string
		rng  types.Range
		want string
	}{
		{"contained", "a.go", types.LineRange(2, 3), "a.go:1-5"},
		{"first overlapping wins", "a.go", types.LineRange(4, 4), "a.go:1-5"},
		{"end endpoint overlaps", "a.go", types.LineRange(0, 8), "a.go:4-9"},
		{"no overlap", "a.go", types.LineRange(30, 40), ""},
		{"other file is never searched", "c.go", types.LineRange(1, 2), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.FindChunk(tt.file, tt.rng)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}
