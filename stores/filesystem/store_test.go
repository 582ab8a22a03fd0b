package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framebooth/core"
)

func TestSaveGetDelete(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	tpl := &core.FrameTemplate{
		Slug: "wedding",
		Name: "Wedding Frame",
		Layout: core.FrameLayout{
			Canvas: core.CanvasSpec{Width: 1080, Height: 1920, Padding: 60},
			Slots:  []core.FrameSlot{{ID: "slot-a", X: 60, Y: 60, Width: 960, Height: 500}},
		},
	}
	require.NoError(t, s.Save(ctx, tpl))

	got, err := s.Get(ctx, "wedding")
	require.NoError(t, err)
	assert.Equal(t, "Wedding Frame", got.Name)
	assert.Len(t, got.Layout.Slots, 1)

	require.NoError(t, s.Delete(ctx, "wedding"))
	_, err = s.Get(ctx, "wedding")
	assert.ErrorIs(t, err, core.ErrTemplateNotFound)
}

func TestGetMissing(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, core.ErrTemplateNotFound)
}

func TestSlugCannotEscapeBaseDirectory(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	for _, slug := range []string{"", ".", "..", "../escape", "a/b"} {
		_, err := s.Get(ctx, slug)
		assert.Error(t, err, "slug %q", slug)
		assert.NotErrorIs(t, err, core.ErrTemplateNotFound, "slug %q must be rejected, not miss", slug)
	}
}

func TestListSkipsUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &core.FrameTemplate{Slug: "one", Name: "One"}))
	require.NoError(t, s.Save(ctx, &core.FrameTemplate{Slug: "two", Name: "Two"}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a template"), 0644))

	page, err := s.List(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)
	require.Len(t, page.Templates, 2)
	// List carries metadata only.
	assert.Empty(t, page.Templates[0].Images)
}
