package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framebooth/core"
)

func TestSaveGetRoundTrip(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	tpl := &core.FrameTemplate{
		Slug: "summer-strip",
		Name: "Summer Strip",
		Layout: core.FrameLayout{
			Canvas: core.CanvasSpec{Width: 1080, Height: 1920, Padding: 60},
			Slots:  []core.FrameSlot{{ID: "slot-a", X: 60, Y: 60, Width: 960, Height: 400}},
		},
	}
	require.NoError(t, s.Save(ctx, tpl))

	got, err := s.Get(ctx, "summer-strip")
	require.NoError(t, err)
	assert.Equal(t, "Summer Strip", got.Name)
	assert.Len(t, got.Layout.Slots, 1)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())

	// The store hands out copies; mutating a result must not leak back.
	got.Name = "mutated"
	again, err := s.Get(ctx, "summer-strip")
	require.NoError(t, err)
	assert.Equal(t, "Summer Strip", again.Name)
}

func TestGetUnknownSlug(t *testing.T) {
	s := NewStore()
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, core.ErrTemplateNotFound)
}

func TestSaveIsUpsertPreservingCreatedAt(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	tpl := &core.FrameTemplate{Slug: "booth", Name: "v1"}
	require.NoError(t, s.Save(ctx, tpl))
	created := tpl.CreatedAt

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.Save(ctx, &core.FrameTemplate{Slug: "booth", Name: "v2"}))

	got, err := s.Get(ctx, "booth")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Name)
	assert.Equal(t, created, got.CreatedAt)
	assert.True(t, got.UpdatedAt.After(created))
}

func TestListPaginatesMetadataOnly(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		tpl := &core.FrameTemplate{
			Slug:   fmt.Sprintf("tpl-%d", i),
			Name:   fmt.Sprintf("Template %d", i),
			Images: []core.ImageElement{{ID: "img", DataURL: "data:image/png;base64,AAAA"}},
		}
		require.NoError(t, s.Save(ctx, tpl))
		time.Sleep(2 * time.Millisecond)
	}

	page, err := s.List(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Templates, 2)
	// Most recently updated first, payloads stripped.
	assert.Equal(t, "tpl-4", page.Templates[0].Slug)
	assert.Empty(t, page.Templates[0].Images)

	last, err := s.List(ctx, 3, 2)
	require.NoError(t, err)
	assert.Len(t, last.Templates, 1)

	beyond, err := s.List(ctx, 9, 2)
	require.NoError(t, err)
	assert.Empty(t, beyond.Templates)
	assert.Equal(t, 5, beyond.TotalCount)
}

func TestDelete(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &core.FrameTemplate{Slug: "gone"}))
	require.NoError(t, s.Delete(ctx, "gone"))

	_, err := s.Get(ctx, "gone")
	assert.ErrorIs(t, err, core.ErrTemplateNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "gone"), core.ErrTemplateNotFound)
}
