package compositor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// affine helpers. f64.Aff3 is a row-major 2x3 matrix mapping source
// coordinates into destination coordinates.

func affTranslate(tx, ty float64) f64.Aff3 {
	return f64.Aff3{1, 0, tx, 0, 1, ty}
}

func affRotate(deg float64) f64.Aff3 {
	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return f64.Aff3{cos, -sin, 0, sin, cos, 0}
}

func affScale(sx, sy float64) f64.Aff3 {
	return f64.Aff3{sx, 0, 0, 0, sy, 0}
}

// affMul composes two transforms: the result applies b, then a.
func affMul(a, b f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		a[0]*b[0] + a[1]*b[3],
		a[0]*b[1] + a[1]*b[4],
		a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3],
		a[3]*b[1] + a[4]*b[4],
		a[3]*b[2] + a[4]*b[5] + a[5],
	}
}

// drawTransformed paints src centered at (cx, cy), scaled to drawW x drawH and
// rotated clockwise by rotationDeg, optionally clipped to a destination
// rectangle. This is the single transform contract shared by stickers and
// image elements.
func drawTransformed(dst *image.RGBA, src image.Image, cx, cy, drawW, drawH, rotationDeg, opacity float64, clip *image.Rectangle) {
	if drawW <= 0 || drawH <= 0 {
		return
	}
	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return
	}

	target := dst
	if clip != nil {
		r := clip.Intersect(dst.Bounds())
		if r.Empty() {
			return
		}
		target = dst.SubImage(r).(*image.RGBA)
	}

	m := affTranslate(cx, cy)
	m = affMul(m, affRotate(rotationDeg))
	m = affMul(m, affTranslate(-drawW/2, -drawH/2))
	m = affMul(m, affScale(drawW/float64(sb.Dx()), drawH/float64(sb.Dy())))
	m = affMul(m, affTranslate(-float64(sb.Min.X), -float64(sb.Min.Y)))

	var opts *xdraw.Options
	if opacity < 1 {
		alpha := uint16(clampUnit(opacity) * 0xffff)
		opts = &xdraw.Options{SrcMask: image.NewUniform(color.Alpha16{A: alpha})}
	}
	xdraw.ApproxBiLinear.Transform(target, m, src, sb, xdraw.Over, opts)
}

// drawStretched paints src stretch-fit into the destination rectangle,
// ignoring the source aspect ratio. Captured shots were already cropped to
// the slot aspect at capture time, so no cropping happens here.
func drawStretched(dst *image.RGBA, src image.Image, dr image.Rectangle) {
	dr = dr.Intersect(dst.Bounds())
	if dr.Empty() {
		return
	}
	xdraw.ApproxBiLinear.Scale(dst, dr, src, src.Bounds(), xdraw.Over, nil)
}

func fillCanvas(dst *image.RGBA, c color.Color) {
	draw.Draw(dst, dst.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
}

// clearRect punches a rectangle fully transparent. Used by overlay rendering
// so the live camera feed shows through the photo slots.
func clearRect(dst *image.RGBA, r image.Rectangle) {
	draw.Draw(dst, r.Intersect(dst.Bounds()), image.Transparent, image.Point{}, draw.Src)
}

// insideRoundedRect tests a point against a rounded rectangle given by its
// top-left corner, size, and corner radius.
func insideRoundedRect(px, py, x, y, w, h, r float64) bool {
	if w <= 0 || h <= 0 {
		return false
	}
	if px < x || px > x+w || py < y || py > y+h {
		return false
	}
	if r <= 0 {
		return true
	}
	if max := math.Min(w, h) / 2; r > max {
		r = max
	}
	// Corner tests: only the four r x r corner squares can reject the point.
	var cx, cy float64
	switch {
	case px < x+r && py < y+r:
		cx, cy = x+r, y+r
	case px > x+w-r && py < y+r:
		cx, cy = x+w-r, y+r
	case px < x+r && py > y+h-r:
		cx, cy = x+r, y+h-r
	case px > x+w-r && py > y+h-r:
		cx, cy = x+w-r, y+h-r
	default:
		return true
	}
	dx, dy := px-cx, py-cy
	return dx*dx+dy*dy <= r*r
}

// strokeRoundedRect strokes the rounded-rectangle path (x, y, w, h) with the
// given stroke width, the stroke centered on the path. The painted band spans
// from the path inset by -thickness/2 to the path inset by +thickness/2.
func strokeRoundedRect(dst *image.RGBA, x, y, w, h, radius, thickness float64, col color.Color) {
	if thickness <= 0 || w <= 0 || h <= 0 {
		return
	}
	half := thickness / 2
	ox, oy, ow, oh := x-half, y-half, w+thickness, h+thickness
	ix, iy, iw, ih := x+half, y+half, w-thickness, h-thickness
	outerR := radius + half
	innerR := math.Max(0, radius-half)

	minX := int(math.Floor(ox))
	minY := int(math.Floor(oy))
	maxX := int(math.Ceil(ox + ow))
	maxY := int(math.Ceil(oy + oh))
	b := dst.Bounds()
	if minX < b.Min.X {
		minX = b.Min.X
	}
	if minY < b.Min.Y {
		minY = b.Min.Y
	}
	if maxX > b.Max.X {
		maxX = b.Max.X
	}
	if maxY > b.Max.Y {
		maxY = b.Max.Y
	}

	for py := minY; py < maxY; py++ {
		fy := float64(py) + 0.5
		for px := minX; px < maxX; px++ {
			fx := float64(px) + 0.5
			if !insideRoundedRect(fx, fy, ox, oy, ow, oh, outerR) {
				continue
			}
			if insideRoundedRect(fx, fy, ix, iy, iw, ih, innerR) {
				continue
			}
			dst.Set(px, py, col)
		}
	}
}

// parseHexColor parses #rgb, #rrggbb and #rrggbbaa colors plus the keyword
// "transparent". Template colors come from a web editor, so hex is the only
// format that occurs in practice.
func parseHexColor(s string) (color.NRGBA, error) {
	if s == "transparent" {
		return color.NRGBA{}, nil
	}
	if len(s) == 0 || s[0] != '#' {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 && len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	if len(hex) == 6 {
		return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
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
