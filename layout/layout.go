// Package layout generates frame template geometry.
package layout

import (
	"github.com/oklog/ulid/v2"

	"framebooth/core"
)

// Compile-time layout constants. Generate is deterministic for a given slot
// count: only the freshly minted slot ids differ between calls, the geometry
// is always congruent.
const (
	CanvasWidth   = 1080
	CanvasHeight  = 1920
	CanvasPadding = 60

	defaultGutter       = 40.0
	defaultThickness    = 16.0
	defaultCornerRadius = 24.0
	defaultFrameColor   = "#111111"
	defaultBackground   = "#ffffff"
)

// Generate produces a FrameLayout with slotCount evenly spaced slot
// rectangles stacked vertically, horizontally centered, separated by the
// frame gutter. slotCount values below 1 are treated as 1.
func Generate(slotCount int) core.FrameLayout {
	if slotCount < 1 {
		slotCount = 1
	}

	l := core.FrameLayout{
		Canvas: core.CanvasSpec{
			Width:   CanvasWidth,
			Height:  CanvasHeight,
			Padding: CanvasPadding,
		},
		Frame: core.FrameStyle{
			Color:           defaultFrameColor,
			Thickness:       defaultThickness,
			CornerRadius:    defaultCornerRadius,
			Gutter:          defaultGutter,
			BackgroundColor: defaultBackground,
		},
	}

	available := float64(CanvasHeight) - 2*float64(CanvasPadding) - defaultGutter*float64(slotCount-1)
	slotHeight := available / float64(slotCount)
	slotWidth := float64(CanvasWidth) - 2*float64(CanvasPadding)
	x := (float64(CanvasWidth) - slotWidth) / 2

	l.Slots = make([]core.FrameSlot, 0, slotCount)
	y := float64(CanvasPadding)
	for i := 0; i < slotCount; i++ {
		l.Slots = append(l.Slots, core.FrameSlot{
			ID:     "slot-" + ulid.Make().String(),
			X:      x,
			Y:      y,
			Width:  slotWidth,
			Height: slotHeight,
		})
		y += slotHeight + defaultGutter
	}
	return l
}

// RemapSlotRefs migrates slot references after a layout regeneration. Slot
// ids are not reused across regenerations, so every image SlotID and every
// assignment key pointing into the old layout is remapped to the new slot at
// the same position index. References whose position no longer exists are
// cleared rather than left dangling.
func RemapSlotRefs(old, next core.FrameLayout, images []core.ImageElement, assignments map[string]int) ([]core.ImageElement, map[string]int) {
	index := make(map[string]int, len(old.Slots))
	for i, s := range old.Slots {
		index[s.ID] = i
	}

	remapped := make([]core.ImageElement, len(images))
	copy(remapped, images)
	for i := range remapped {
		if remapped[i].SlotID == "" {
			continue
		}
		pos, ok := index[remapped[i].SlotID]
		if !ok || pos >= len(next.Slots) {
			remapped[i].SlotID = ""
			continue
		}
		remapped[i].SlotID = next.Slots[pos].ID
	}

	out := make(map[string]int, len(assignments))
	for slotID, shot := range assignments {
		pos, ok := index[slotID]
		if !ok || pos >= len(next.Slots) {
			continue
		}
		out[next.Slots[pos].ID] = shot
	}
	return remapped, out
}
