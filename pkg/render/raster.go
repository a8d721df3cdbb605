package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/menta2k/facade-measure/pkg/geometry"
)

// DefaultPixelRatio is the export density multiplier
const DefaultPixelRatio = 2.0

const circleSegments = 24

// Rasterizer executes draw commands onto an NRGBA buffer. Every coordinate
// and size is multiplied by PixelRatio.
type Rasterizer struct {
	PixelRatio float64
	face       *basicfont.Face
}

// NewRasterizer creates a rasterizer with the given density; values <= 0 mean 1
func NewRasterizer(pixelRatio float64) *Rasterizer {
	if pixelRatio <= 0 {
		pixelRatio = 1
	}
	return &Rasterizer{PixelRatio: pixelRatio, face: basicfont.Face7x13}
}

// Render draws cmds in order onto a transparent width x height (screen
// pixels) surface
func (r *Rasterizer) Render(cmds []Command, width, height int) *image.NRGBA {
	w := int(math.Ceil(float64(width) * r.PixelRatio))
	h := int(math.Ceil(float64(height) * r.PixelRatio))
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst
	}
	z := vector.NewRasterizer(w, h)
	for _, c := range cmds {
		switch c.Op {
		case OpImage:
			r.drawImage(dst, c)
		case OpPath:
			r.strokePath(dst, z, c)
		case OpCircle:
			r.fillCircle(dst, z, c)
		case OpText:
			r.drawText(dst, c)
		}
	}
	return dst
}

func (r *Rasterizer) drawImage(dst *image.NRGBA, c Command) {
	if c.Image == nil || len(c.Points) == 0 {
		return
	}
	w := int(math.Round(c.Size.X * r.PixelRatio))
	h := int(math.Round(c.Size.Y * r.PixelRatio))
	if w <= 0 || h <= 0 {
		return
	}
	src := c.Image
	if b := src.Bounds(); b.Dx() != w || b.Dy() != h {
		src = imaging.Resize(src, w, h, imaging.Linear)
	}
	at := image.Pt(int(math.Round(c.Points[0].X*r.PixelRatio)), int(math.Round(c.Points[0].Y*r.PixelRatio)))
	draw.Draw(dst, image.Rectangle{Min: at, Max: at.Add(src.Bounds().Size())}, src, src.Bounds().Min, draw.Over)
}

// strokePath fills one quad per segment plus a disc at each vertex. All
// sub-paths share the same winding so overlaps never cancel out.
func (r *Rasterizer) strokePath(dst *image.NRGBA, z *vector.Rasterizer, c Command) {
	if len(c.Points) < 2 {
		return
	}
	half := math.Max(c.Style.Width, 1) * r.PixelRatio / 2
	pts := r.scaled(c.Points)

	z.Reset(dst.Bounds().Dx(), dst.Bounds().Dy())
	n := len(pts)
	segs := n - 1
	if c.Closed {
		segs = n
	}
	for i := 0; i < segs; i++ {
		addQuad(z, pts[i], pts[(i+1)%n], half)
	}
	for _, p := range pts {
		addDisc(z, p, half)
	}
	z.Draw(dst, dst.Bounds(), image.NewUniform(c.Style.Stroke), image.Point{})
}

func (r *Rasterizer) fillCircle(dst *image.NRGBA, z *vector.Rasterizer, c Command) {
	if len(c.Points) == 0 || c.Radius <= 0 {
		return
	}
	z.Reset(dst.Bounds().Dx(), dst.Bounds().Dy())
	addDisc(z, r.scaled(c.Points[:1])[0], c.Radius*r.PixelRatio)
	z.Draw(dst, dst.Bounds(), image.NewUniform(c.Style.Fill), image.Point{})
}

// drawText renders the label at 1x with a one-pixel outline, then scales it
// to the font size and pixel ratio.
func (r *Rasterizer) drawText(dst *image.NRGBA, c Command) {
	if c.Text == "" || len(c.Points) == 0 {
		return
	}
	m := r.face.Metrics()
	tw := font.MeasureString(r.face, c.Text).Ceil() + 2
	th := m.Height.Ceil() + 2
	tile := image.NewNRGBA(image.Rect(0, 0, tw, th))

	ascent := m.Ascent.Ceil()
	if c.Style.Stroke.A > 0 {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				r.drawString(tile, c.Text, 1+dx, 1+ascent+dy, c.Style.Stroke)
			}
		}
	}
	r.drawString(tile, c.Text, 1, 1+ascent, c.Style.Fill)

	size := c.Style.FontSize
	if size <= 0 {
		size = float64(m.Height.Ceil())
	}
	k := r.PixelRatio * size / float64(m.Height.Ceil())
	var src image.Image = tile
	if k != 1 {
		src = imaging.Resize(tile, int(math.Round(float64(tw)*k)), int(math.Round(float64(th)*k)), imaging.NearestNeighbor)
	}
	at := image.Pt(int(math.Round(c.Points[0].X*r.PixelRatio)), int(math.Round(c.Points[0].Y*r.PixelRatio)))
	draw.Draw(dst, image.Rectangle{Min: at, Max: at.Add(src.Bounds().Size())}, src, src.Bounds().Min, draw.Over)
}

func (r *Rasterizer) drawString(dst draw.Image, s string, x, y int, col color.NRGBA) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: r.face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func (r *Rasterizer) scaled(pts []geometry.Point) []geometry.Point {
	out := make([]geometry.Point, len(pts))
	for i, p := range pts {
		out[i] = p.Scale(r.PixelRatio)
	}
	return out
}

func addQuad(z *vector.Rasterizer, a, b geometry.Point, half float64) {
	d := b.Sub(a)
	l := geometry.Distance(a, b)
	if l == 0 {
		return
	}
	n := geometry.Pt(-d.Y/l*half, d.X/l*half)
	p0, p1, p2, p3 := a.Add(n), b.Add(n), b.Sub(n), a.Sub(n)
	z.MoveTo(float32(p0.X), float32(p0.Y))
	z.LineTo(float32(p1.X), float32(p1.Y))
	z.LineTo(float32(p2.X), float32(p2.Y))
	z.LineTo(float32(p3.X), float32(p3.Y))
	z.ClosePath()
}

// addDisc winds the same way as addQuad
func addDisc(z *vector.Rasterizer, c geometry.Point, radius float64) {
	for i := 0; i <= circleSegments; i++ {
		a := -2 * math.Pi * float64(i) / circleSegments
		x := float32(c.X + radius*math.Cos(a))
		y := float32(c.Y + radius*math.Sin(a))
		if i == 0 {
			z.MoveTo(x, y)
			continue
		}
		z.LineTo(x, y)
	}
	z.ClosePath()
}
