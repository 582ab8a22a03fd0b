// Package compositor renders frame templates into raster images.
//
// The paint order is fixed and identical at every call site: frame background,
// stickers, text, captured slot photos, slot-bound image elements, floating
// image elements, frame border. Slot-bound elements render behind nothing but
// the photos they decorate, while floating elements sit in front of the
// photos; that asymmetry is what lets a template decorate around captured
// shots without hiding them.
package compositor

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"framebooth/core"
)

// CompositionError reports that the output surface could not be created.
// Individual asset failures never produce one; those layers are skipped.
type CompositionError struct {
	Reason string
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("composition failed: %s", e.Reason)
}

// LayerSet selects which layers a render includes. Partial renders (the
// overlay cache) use an explicit set instead of mutating scene state.
type LayerSet struct {
	Background     bool
	Stickers       bool
	Texts          bool
	SlotPhotos     bool
	SlotImages     bool
	FloatingImages bool
	Border         bool
	// PunchSlots clears the slot rectangles to full transparency after the
	// background fill, so a live camera feed can show through.
	PunchSlots bool
}

// FullScene is the layer set for final composition.
func FullScene() LayerSet {
	return LayerSet{
		Background:     true,
		Stickers:       true,
		Texts:          true,
		SlotPhotos:     true,
		SlotImages:     true,
		FloatingImages: true,
		Border:         true,
	}
}

// OverlayScene is the layer set for the booth preview overlay: all frame
// decoration, no captured photos, slots punched transparent.
func OverlayScene() LayerSet {
	return LayerSet{
		Background:     true,
		Stickers:       true,
		Texts:          true,
		SlotImages:     true,
		FloatingImages: true,
		Border:         true,
		PunchSlots:     true,
	}
}

// Compose renders the full scene for a template with the given slot
// assignments and captured shots, returning a PNG data URL.
func Compose(ctx context.Context, tpl *core.FrameTemplate, assignments map[string]int, shots []string) (string, error) {
	img, err := Render(ctx, tpl, assignments, shots, FullScene())
	if err != nil {
		return "", err
	}
	return EncodePNGDataURL(img)
}

// ComposeOverlay renders the frame decoration with transparent photo slots,
// the cheap preview drawn over the live camera feed.
func ComposeOverlay(ctx context.Context, tpl *core.FrameTemplate) (string, error) {
	img, err := Render(ctx, tpl, nil, nil, OverlayScene())
	if err != nil {
		return "", err
	}
	return EncodePNGDataURL(img)
}

// Render paints the selected layers onto a fresh surface sized to the
// template canvas. Asset decoding runs concurrently; drawing is strictly
// sequential in layer order regardless of decode completion order.
func Render(ctx context.Context, tpl *core.FrameTemplate, assignments map[string]int, shots []string, layers LayerSet) (*image.RGBA, error) {
	w, h := tpl.Layout.Canvas.Width, tpl.Layout.Canvas.Height
	if w <= 0 || h <= 0 {
		return nil, &CompositionError{Reason: fmt.Sprintf("invalid canvas size %dx%d", w, h)}
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	assets := loadAssets(ctx, collectAssetURLs(tpl, assignments, shots, layers))

	// 1. Background fill.
	if layers.Background {
		bg, err := parseHexColor(tpl.Layout.Frame.BackgroundColor)
		if err != nil {
			logrus.WithField("color", tpl.Layout.Frame.BackgroundColor).Warn("Invalid background color, using white")
			bg = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
		}
		fillCanvas(dst, bg)
	}
	if layers.PunchSlots {
		for _, slot := range tpl.Layout.Slots {
			clearRect(dst, slotRect(slot))
		}
	}

	// 2. Stickers, ascending z-index.
	if layers.Stickers {
		stickers := make([]core.StickerElement, len(tpl.Stickers))
		copy(stickers, tpl.Stickers)
		sort.SliceStable(stickers, func(i, j int) bool { return stickers[i].ZIndex < stickers[j].ZIndex })
		for _, st := range stickers {
			if !st.Visible() {
				continue
			}
			src, ok := assets[st.DataURL]
			if !ok {
				continue
			}
			cx := st.X + st.Width/2
			cy := st.Y + st.Height/2
			drawTransformed(dst, src, cx, cy, st.Width*st.ScaleX, st.Height*st.ScaleY, st.Rotation, st.EffectiveOpacity(), nil)
		}
	}

	// 3. Text elements, plus the legacy bottom caption when present.
	if layers.Texts {
		for _, txt := range tpl.Texts {
			drawText(dst, txt)
		}
		if caption := tpl.Layout.BottomText; caption != "" {
			drawText(dst, bottomCaption(tpl.Layout, caption))
		}
	}

	// 4. Captured photos, in slot order, stretch-fit into their rectangles.
	if layers.SlotPhotos {
		for _, slot := range tpl.Layout.Slots {
			idx, ok := assignments[slot.ID]
			if !ok || idx < 0 || idx >= len(shots) || shots[idx] == "" {
				continue
			}
			src, ok := assets[shots[idx]]
			if !ok {
				continue
			}
			drawStretched(dst, src, slotRect(slot))
		}
	}

	// 5. Slot-bound image elements, clipped to their slot when requested,
	// positioned in the slot's local coordinate space.
	if layers.SlotImages {
		for _, slot := range tpl.Layout.Slots {
			for _, el := range sortedImages(tpl.Images) {
				if el.SlotID != slot.ID || !el.Visible() {
					continue
				}
				src, ok := assets[el.DataURL]
				if !ok {
					continue
				}
				var clip *image.Rectangle
				if el.ClipToSlot {
					r := slotRect(slot)
					clip = &r
				}
				cx := slot.X + el.X + el.Width/2
				cy := slot.Y + el.Y + el.Height/2
				drawTransformed(dst, src, cx, cy, el.Width*el.ScaleX, el.Height*el.ScaleY, el.Rotation, el.EffectiveOpacity(), clip)
			}
		}
	}

	// 6. Floating image elements, in canvas coordinates, above the photos.
	if layers.FloatingImages {
		for _, el := range sortedImages(tpl.Images) {
			if el.SlotID != "" || !el.Visible() {
				continue
			}
			src, ok := assets[el.DataURL]
			if !ok {
				continue
			}
			cx := el.X + el.Width/2
			cy := el.Y + el.Height/2
			drawTransformed(dst, src, cx, cy, el.Width*el.ScaleX, el.Height*el.ScaleY, el.Rotation, el.EffectiveOpacity(), nil)
		}
	}

	// 7. Frame border, stroked inset by half its thickness.
	if layers.Border && tpl.Layout.Frame.Thickness > 0 {
		border, err := parseHexColor(tpl.Layout.Frame.Color)
		if err != nil {
			logrus.WithField("color", tpl.Layout.Frame.Color).Warn("Invalid frame color, skipping border")
		} else {
			t := tpl.Layout.Frame.Thickness
			strokeRoundedRect(dst,
				t/2, t/2,
				float64(w)-t, float64(h)-t,
				tpl.Layout.Frame.CornerRadius, t, border)
		}
	}

	return dst, nil
}

// collectAssetURLs gathers every data URL a render will need so decoding can
// run ahead of the sequential draw pass.
func collectAssetURLs(tpl *core.FrameTemplate, assignments map[string]int, shots []string, layers LayerSet) []string {
	seen := map[string]bool{}
	var urls []string
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	if layers.Stickers {
		for _, st := range tpl.Stickers {
			if st.Visible() {
				add(st.DataURL)
			}
		}
	}
	if layers.SlotImages || layers.FloatingImages {
		for _, el := range tpl.Images {
			if el.Visible() {
				add(el.DataURL)
			}
		}
	}
	if layers.SlotPhotos {
		for _, slot := range tpl.Layout.Slots {
			if idx, ok := assignments[slot.ID]; ok && idx >= 0 && idx < len(shots) {
				add(shots[idx])
			}
		}
	}
	return urls
}

// loadAssets decodes all asset URLs concurrently. Failures are logged and the
// asset is simply absent from the result; the corresponding layer is skipped
// during the draw pass rather than failing the whole composition.
func loadAssets(ctx context.Context, urls []string) map[string]image.Image {
	assets := make(map[string]image.Image, len(urls))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			img, err := DecodeDataURL(u)
			if err != nil {
				logrus.WithError(err).Warn("Failed to decode layer asset, skipping layer")
				return
			}
			mu.Lock()
			assets[u] = img
			mu.Unlock()
		}(u)
	}
	wg.Wait()
	return assets
}

func sortedImages(images []core.ImageElement) []core.ImageElement {
	out := make([]core.ImageElement, len(images))
	copy(out, images)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ZIndex < out[j].ZIndex })
	return out
}

func slotRect(s core.FrameSlot) image.Rectangle {
	return image.Rect(int(s.X), int(s.Y), int(s.X+s.Width), int(s.Y+s.Height))
}

// bottomCaption synthesizes a text element for the legacy bottomText field,
// centered inside the bottom padding band.
func bottomCaption(l core.FrameLayout, caption string) core.TextElement {
	size := float64(l.Canvas.Padding) * 0.6
	return core.TextElement{
		ID:       "bottom-caption",
		Content:  caption,
		X:        0,
		Y:        float64(l.Canvas.Height) - float64(l.Canvas.Padding)*0.9,
		Width:    float64(l.Canvas.Width),
		Align:    "center",
		FontSize: size,
		Color:    l.Frame.Color,
	}
}
