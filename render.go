package boundplot

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgpdf"
	"gonum.org/v1/plot/vg/vgsvg"
)

// Default snapshot size, same as the interactive window.
const (
	DefaultSnapshotWidth  = 9 * vg.Inch
	DefaultSnapshotHeight = 4.8 * vg.Inch
)

var diracColor = color.RGBA{R: 220, A: 255}

// SnapshotFormats lists the formats RenderFigure understands.
var SnapshotFormats = []string{"png", "svg", "pdf"}

// RenderFigure draws a static picture of f. When f has a mesh, the left part
// of the picture holds a square mesh inset and the main axes take the rest.
func RenderFigure(w io.Writer, f *Figure, format string, width, height vg.Length) error {
	var canvas vg.CanvasWriterTo
	switch format {
	case "png":
		canvas = vgimg.PngCanvas{Canvas: vgimg.New(width, height)}
	case "svg":
		canvas = vgsvg.New(width, height)
	case "pdf":
		canvas = vgpdf.New(width, height)
	default:
		return fmt.Errorf("unsupported snapshot format %q, expected one of %v", format, SnapshotFormats)
	}

	dc := draw.New(canvas)

	mainArea := dc
	if f.Mesh != nil {
		// Left column for the mesh, like the control column of the window.
		split := dc.Min.X + 0.35*dc.Size().X
		mainArea = subCanvas(dc, split, dc.Min.Y, dc.Max.X, dc.Max.Y)

		left := dc.Min.X + 0.05*dc.Size().X
		bottom := dc.Min.Y + 0.1*dc.Size().Y
		meshArea := subCanvas(dc, left, bottom, left+0.3*dc.Size().X, bottom+0.8*dc.Size().Y)

		meshPlot := newMeshPlot(f)
		meshPlot.Draw(squareDataArea(meshPlot, meshArea))
	}

	mainPlot, err := newMainPlot(f)
	if err != nil {
		return err
	}
	mainPlot.Draw(mainArea)

	_, err = canvas.WriteTo(w)
	return err
}

func subCanvas(dc draw.Canvas, minX, minY, maxX, maxY vg.Length) draw.Canvas {
	return draw.Canvas{
		Canvas: dc.Canvas,
		Rectangle: vg.Rectangle{
			Min: vg.Point{X: minX, Y: minY},
			Max: vg.Point{X: maxX, Y: maxY},
		},
	}
}

func newMainPlot(f *Figure) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = f.Options.Title
	p.X.Label.Text = f.Options.XLabel
	p.Y.Label.Text = f.Options.YLabel
	p.Legend.Top = true

	logX := f.XScale == ScaleLog
	logY := f.YScale == ScaleLog
	if logX {
		p.X.Scale = plot.LogScale{}
		p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	if logY {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}

	colorIndex := 0
	for _, c := range f.Curves {
		// Keep colors stable when a curve is hidden.
		curveColor := plotutil.Color(colorIndex)
		colorIndex++

		if !c.Visible {
			continue
		}

		xys := maskedXYs(f.T, c.Y, logX, logY)
		if len(xys) == 0 {
			continue
		}

		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("curve %s: %w", c.Name, err)
		}
		line.LineStyle.Color = curveColor
		line.LineStyle.Width = vg.Points(1.5)

		p.Add(line)
		p.Legend.Add(c.Label, line)
	}

	for _, s := range f.Series {
		seriesColor := plotutil.Color(colorIndex)
		colorIndex++

		xys := maskedXYs(s.Xs(), s.Ys(), logX, logY)
		if len(xys) == 0 {
			continue
		}

		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", s.Path, err)
		}
		line.LineStyle.Color = seriesColor
		points.GlyphStyle.Color = seriesColor
		points.GlyphStyle.Shape = draw.SquareGlyph{}
		points.GlyphStyle.Radius = vg.Points(3)

		p.Add(line, points)
		if s.Label != "" {
			p.Legend.Add(s.Label, line, points)
		}
	}

	if logX {
		fixLogRange(&p.X)
	}
	if logY {
		fixLogRange(&p.Y)
	}

	return p, nil
}

// maskedXYs pairs xs and ys, dropping points a log axis cannot show.
func maskedXYs(xs, ys []float64, logX, logY bool) plotter.XYs {
	xys := make(plotter.XYs, 0, len(xs))
	for i := range xs {
		x, y := xs[i], ys[i]
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			continue
		}
		if (logX && x <= 0) || (logY && y <= 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: x, Y: y})
	}
	return xys
}

// fixLogRange keeps a log axis drawable when nothing positive was added.
func fixLogRange(axis *plot.Axis) {
	if axis.Min <= 0 || math.IsInf(axis.Min, 0) || math.IsInf(axis.Max, 0) {
		axis.Min, axis.Max = 1, 10
	}
	// A single value would otherwise be widened by one on each side, which
	// can cross zero.
	if axis.Min == axis.Max {
		axis.Min, axis.Max = axis.Min/10, axis.Max*10
	}
}

// squareDataArea returns the largest canvas centered in area on which p draws
// its data over a square region. Title and tick labels take up different
// room horizontally and vertically, so the canvas itself is usually not
// square.
func squareDataArea(p *plot.Plot, area draw.Canvas) draw.Canvas {
	data := p.DataCanvas(area)
	padX := area.Size().X - data.Size().X
	padY := area.Size().Y - data.Size().Y

	side := Max(Min(area.Size().X-padX, area.Size().Y-padY), 0)
	width := side + padX
	height := side + padY

	minX := area.Min.X + (area.Size().X-width)/2
	minY := area.Min.Y + (area.Size().Y-height)/2
	return subCanvas(area, minX, minY, minX+width, minY+height)
}

func newMeshPlot(f *Figure) *plot.Plot {
	p := plot.New()
	p.Title.Text = f.Options.MeshTitle
	p.X.Min, p.X.Max = -f.MeshViewport, f.MeshViewport
	p.Y.Min, p.Y.Max = -f.MeshViewport, f.MeshViewport

	// The edges are drawn directly rather than through plotters so that the
	// fixed viewport is not widened by data ranges.
	p.Add(meshEdges{edges: f.Mesh.Edges()})

	if f.Dirac != nil {
		p.Add(diracMarker{point: *f.Dirac})
	}

	return p
}

type meshEdges struct {
	edges []Edge
}

func (m meshEdges) Plot(c draw.Canvas, p *plot.Plot) {
	trX, trY := p.Transforms(&c)
	style := draw.LineStyle{Color: color.Black, Width: vg.Points(1)}

	for _, e := range m.edges {
		c.StrokeLines(style, c.ClipLinesXY([]vg.Point{
			{X: trX(e.From.X), Y: trY(e.From.Y)},
			{X: trX(e.To.X), Y: trY(e.To.Y)},
		})...)
	}
}

type diracMarker struct {
	point DiracPoint
}

func (d diracMarker) Plot(c draw.Canvas, p *plot.Plot) {
	trX, trY := p.Transforms(&c)
	pt := vg.Point{X: trX(d.point.X), Y: trY(d.point.Y)}
	if !c.Contains(pt) {
		return
	}

	c.DrawGlyph(draw.GlyphStyle{
		Color:  diracColor,
		Radius: vg.Points(4),
		Shape:  draw.CircleGlyph{},
	}, pt)
}
