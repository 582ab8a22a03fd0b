package compositor

import (
	"image"
	"image/color"
	"math"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"framebooth/core"
)

var (
	fontOnce    sync.Once
	regularFont *opentype.Font
	boldFont    *opentype.Font

	faceMu    sync.Mutex
	faceCache = map[faceKey]font.Face{}
)

type faceKey struct {
	bold bool
	size float64
}

func loadFonts() {
	var err error
	regularFont, err = opentype.Parse(goregular.TTF)
	if err != nil {
		logrus.WithError(err).Error("Failed to parse regular font")
	}
	boldFont, err = opentype.Parse(gobold.TTF)
	if err != nil {
		logrus.WithError(err).Error("Failed to parse bold font")
	}
}

// faceFor returns a cached face for the requested family and size. Arbitrary
// web font families cannot be resolved server-side, so anything mentioning
// "bold" maps to Go Bold and everything else to Go Regular.
func faceFor(family string, size float64) font.Face {
	fontOnce.Do(loadFonts)
	if size <= 0 {
		size = 32
	}
	bold := strings.Contains(strings.ToLower(family), "bold")

	faceMu.Lock()
	defer faceMu.Unlock()
	key := faceKey{bold: bold, size: size}
	if f, ok := faceCache[key]; ok {
		return f
	}

	src := regularFont
	if bold && boldFont != nil {
		src = boldFont
	}
	if src == nil {
		return nil
	}
	face, err := opentype.NewFace(src, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		logrus.WithError(err).WithField("size", size).Error("Failed to build font face")
		return nil
	}
	faceCache[key] = face
	return face
}

// drawText paints one text element. The element is positioned by the top-left
// of its bounding box plus width; the align field picks where each line sits
// within that box. Rotation pivots on the top-center of the box,
// (x + width/2, y), matching the canvas transform the editor applies.
func drawText(dst *image.RGBA, el core.TextElement) {
	if strings.TrimSpace(el.Content) == "" {
		return
	}
	face := faceFor(el.FontFamily, el.FontSize)
	if face == nil {
		logrus.WithField("text_id", el.ID).Warn("No usable font face, skipping text element")
		return
	}
	col, err := parseHexColor(el.Color)
	if err != nil {
		logrus.WithFields(logrus.Fields{"text_id": el.ID, "color": el.Color}).Warn("Invalid text color, using black")
		col.R, col.G, col.B, col.A = 0, 0, 0, 0xff
	}

	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	ascent := metrics.Ascent.Ceil()
	lines := strings.Split(el.Content, "\n")

	if el.Rotation == 0 {
		drawTextLines(dst, face, col, lines, el.X, el.Y, el.Width, el.Align, ascent, lineHeight)
		return
	}

	// Rotated text renders into its own transparent surface first, then the
	// surface is transformed into place. Keeps glyph rasterization axis
	// aligned, which the font drawer requires.
	w := int(math.Ceil(el.Width))
	if w < 1 {
		w = 1
	}
	h := lineHeight * len(lines)
	tmp := image.NewRGBA(image.Rect(0, 0, w, h))
	drawTextLines(tmp, face, col, lines, 0, 0, el.Width, el.Align, ascent, lineHeight)

	// drawTransformed rotates about the surface center, so place the center
	// where the rotation about the top-center pivot (x + width/2, y) puts it:
	// the pivot plus the rotated half-height vector.
	sin, cos := math.Sincos(el.Rotation * math.Pi / 180)
	half := float64(h) / 2
	cx := el.X + el.Width/2 - sin*half
	cy := el.Y + cos*half
	drawTransformed(dst, tmp, cx, cy, float64(w), float64(h), el.Rotation, 1, nil)
}

func drawTextLines(dst *image.RGBA, face font.Face, col color.Color, lines []string, x, y, width float64, align string, ascent, lineHeight int) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(col), Face: face}
	for i, line := range lines {
		lineWidth := float64(d.MeasureString(line).Ceil())
		startX := x
		switch align {
		case "center":
			startX = x + (width-lineWidth)/2
		case "right":
			startX = x + width - lineWidth
		}
		d.Dot = fixed.P(int(math.Round(startX)), int(math.Round(y))+ascent+i*lineHeight)
		d.DrawString(line)
	}
}
