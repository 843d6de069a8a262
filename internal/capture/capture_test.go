package capture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codegraph/pkg/types"
)

const handleFragment = `func Handle(w io.Writer, name string) error {
	cfg := loadConfig(name)
	_, err := fmt.Fprintf(w, "%s", cfg.Title)
	return wrap(err)
}`

func names(refs []Reference) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Name)
	}
	return out
}

func find(refs []Reference, name string) (Reference, bool) {
	for _, r := range refs {
		if r.Name == name {
			return r, true
		}
	}
	return Reference{}, false
}

// runCapturerSuite checks behaviour every Capturer must share
func runCapturerSuite(t *testing.T, c Capturer) {
	ctx := context.Background()

	t.Run("declaration fragment", func(t *testing.T) {
		refs, err := c.Capture(ctx, []byte(handleFragment))
		require.NoError(t, err)

		assert.ElementsMatch(t, []string{
			"io.Writer", "string", "error",
			"loadConfig", "name",
			"fmt.Fprintf", "w", "cfg.Title",
			"wrap", "err",
		}, names(refs))

		ref, ok := find(refs, "fmt.Fprintf")
		require.True(t, ok)
		assert.Equal(t, types.Range{
			Start: types.Position{Line: 3, Column: 12},
			End:   types.Position{Line: 3, Column: 23},
		}, ref.Range)
	})

	t.Run("struct literal keys", func(t *testing.T) {
		src := `func NewServer() *Server {
	return &Server{Addr: defaultAddr}
}`
		refs, err := c.Capture(ctx, []byte(src))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Server", "Server", "defaultAddr"}, names(refs))
	})

	t.Run("whole file", func(t *testing.T) {
		src := "package x\n\nimport \"fmt\"\n\nvar v = fmt.Sprint(1)\n"
		refs, err := c.Capture(ctx, []byte(src))
		require.NoError(t, err)
		require.Len(t, refs, 1)
		assert.Equal(t, "fmt.Sprint", refs[0].Name)
		assert.Equal(t, 5, refs[0].Range.Start.Line)
		assert.Equal(t, 9, refs[0].Range.Start.Column)
	})
}

func TestASTCapturer(t *testing.T) {
	runCapturerSuite(t, NewASTCapturer())
}

func TestASTCapturer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewASTCapturer().Capture(ctx, []byte(handleFragment))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	c := New()
	require.NotNil(t, c)
	assert.NotEmpty(t, BuildMode)
}
