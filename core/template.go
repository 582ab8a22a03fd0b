package core

import (
	"context"
	"errors"
	"time"
)

// ErrTemplateNotFound is returned by stores when no template exists for a slug.
// Resolving an unknown slug is a not-found condition, not a server error.
var ErrTemplateNotFound = errors.New("template not found")

type (
	// CanvasSpec is the fixed raster output size of a template.
	CanvasSpec struct {
		Width   int `json:"width"`
		Height  int `json:"height"`
		Padding int `json:"padding"`
	}

	// FrameStyle describes the border and fill drawn above/below all content.
	FrameStyle struct {
		Color           string  `json:"color"`
		Thickness       float64 `json:"thickness"`
		CornerRadius    float64 `json:"cornerRadius"`
		Gutter          float64 `json:"gutter"`
		BackgroundColor string  `json:"backgroundColor"`
	}

	// FrameSlot is a rectangle in canvas-pixel coordinates intended to hold
	// exactly one captured photo. Slots never overlap and always lie inside
	// the canvas bounds.
	FrameSlot struct {
		ID     string  `json:"id"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}

	// FrameLayout is the template geometry, immutable once generated for a
	// given slot count.
	FrameLayout struct {
		Canvas CanvasSpec `json:"canvas"`
		Frame  FrameStyle `json:"frame"`
		// BottomText is a legacy static caption; modern templates use Texts
		// on the template instead.
		BottomText string      `json:"bottomText,omitempty"`
		Slots      []FrameSlot `json:"slots"`
	}

	// ImageElement is a placed photo. SlotID is a weak reference: when it does
	// not resolve to an existing slot at render time the element is skipped,
	// never a hard failure.
	ImageElement struct {
		ID                string   `json:"id"`
		SlotID            string   `json:"slotId,omitempty"`
		DataURL           string   `json:"dataUrl"`
		X                 float64  `json:"x"`
		Y                 float64  `json:"y"`
		Width             float64  `json:"width"`
		Height            float64  `json:"height"`
		ScaleX            float64  `json:"scaleX"`
		ScaleY            float64  `json:"scaleY"`
		Rotation          float64  `json:"rotation"`
		ClipToSlot        bool     `json:"clipToSlot"`
		BackgroundRemoved bool     `json:"backgroundRemoved"`
		Opacity           *float64 `json:"opacity,omitempty"`
		IsLocked          bool     `json:"isLocked,omitempty"`
		IsVisible         *bool    `json:"isVisible,omitempty"`
		ZIndex            int      `json:"zIndex,omitempty"`
	}

	// StickerElement has the same geometry contract as ImageElement but is
	// never slot-bound; it always floats freely in its own z-order band.
	StickerElement struct {
		ID        string   `json:"id"`
		DataURL   string   `json:"dataUrl"`
		X         float64  `json:"x"`
		Y         float64  `json:"y"`
		Width     float64  `json:"width"`
		Height    float64  `json:"height"`
		ScaleX    float64  `json:"scaleX"`
		ScaleY    float64  `json:"scaleY"`
		Rotation  float64  `json:"rotation"`
		Opacity   *float64 `json:"opacity,omitempty"`
		IsVisible *bool    `json:"isVisible,omitempty"`
		ZIndex    int      `json:"zIndex,omitempty"`
	}

	// TextElement is positioned by top-left of its bounding box plus width,
	// not top-left of the first glyph.
	TextElement struct {
		ID         string  `json:"id"`
		Content    string  `json:"content"`
		X          float64 `json:"x"`
		Y          float64 `json:"y"`
		Width      float64 `json:"width"`
		Align      string  `json:"align"`
		FontSize   float64 `json:"fontSize"`
		FontFamily string  `json:"fontFamily"`
		Color      string  `json:"color"`
		Rotation   float64 `json:"rotation"`
	}

	// FrameTemplate is the aggregate root: the saved, shareable description of
	// a frame's layout plus any pre-placed decorative elements. Slug is the
	// stable external identifier, the persistence key and the public
	// share-link path segment.
	FrameTemplate struct {
		Slug        string           `json:"slug"`
		Name        string           `json:"name"`
		Description string           `json:"description,omitempty"`
		Layout      FrameLayout      `json:"layout"`
		Images      []ImageElement   `json:"images"`
		Stickers    []StickerElement `json:"stickers"`
		Texts       []TextElement    `json:"texts"`
		// OverlayDataURL is a derived cache (frame decoration with photo slots
		// made transparent) used to preview the frame over a live camera feed.
		// It is regenerated whenever layout/stickers/texts change and is not a
		// source of truth.
		OverlayDataURL string    `json:"overlayDataUrl,omitempty"`
		CreatedAt      time.Time `json:"createdAt"`
		UpdatedAt      time.Time `json:"updatedAt"`
	}

	// TemplatePage is one page of a template listing.
	TemplatePage struct {
		Templates  []*FrameTemplate `json:"templates"`
		TotalCount int              `json:"totalCount"`
		TotalPages int              `json:"totalPages"`
	}

	// TemplateStore defines the persistence layer for frame templates. Slug is
	// caller-supplied, so Save is an idempotent upsert, not an insert with a
	// server-assigned id.
	TemplateStore interface {
		// Get returns the template for a slug, or ErrTemplateNotFound.
		Get(ctx context.Context, slug string) (*FrameTemplate, error)

		// Save creates or updates a template keyed by its slug.
		Save(ctx context.Context, template *FrameTemplate) error

		// List returns one page of templates. The returned templates carry
		// metadata only (no element data) to keep the response light.
		List(ctx context.Context, page, pageSize int) (*TemplatePage, error)

		// Delete removes a template by slug.
		Delete(ctx context.Context, slug string) error
	}
)

// EffectiveOpacity resolves the optional opacity, defaulting to fully opaque.
func (e *ImageElement) EffectiveOpacity() float64 {
	if e.Opacity == nil {
		return 1
	}
	return clampUnit(*e.Opacity)
}

// Visible reports whether the element should render; missing means visible.
func (e *ImageElement) Visible() bool {
	return e.IsVisible == nil || *e.IsVisible
}

func (s *StickerElement) EffectiveOpacity() float64 {
	if s.Opacity == nil {
		return 1
	}
	return clampUnit(*s.Opacity)
}

func (s *StickerElement) Visible() bool {
	return s.IsVisible == nil || *s.IsVisible
}

// SlotByID resolves a slot reference against the layout. The second return is
// false when the reference is stale (for example after a slot-count change).
func (l *FrameLayout) SlotByID(id string) (*FrameSlot, bool) {
	for i := range l.Slots {
		if l.Slots[i].ID == id {
			return &l.Slots[i], true
		}
	}
	return nil, false
}

// Meta returns a copy with element payloads stripped, suitable for list views.
func (t *FrameTemplate) Meta() *FrameTemplate {
	return &FrameTemplate{
		Slug:        t.Slug,
		Name:        t.Name,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
