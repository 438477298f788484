package boundplot

import (
	"fmt"
	"strconv"
)

const (
	ThesisCurveName    = "thesis_bound"
	AlgebraicCurveName = "algebraic_bound"

	ThesisCurveLabel    = "C1 p^-1 (sqrt(log(p + 1)) + 1)"
	AlgebraicCurveLabel = "C2 p^-k"
)

type AxisScale string

const (
	ScaleLinear AxisScale = "linear"
	ScaleLog    AxisScale = "log"
)

// Parameter is a slider value together with the text shown in its mirrored
// text box.
type Parameter struct {
	Name string
	Min  float64
	Max  float64

	Value float64
	Text  string
}

func NewParameter(name string, settings ParameterSettings) *Parameter {
	return &Parameter{
		Name:  name,
		Min:   settings.Min,
		Max:   settings.Max,
		Value: settings.Init,
		// The text box starts with the plain value and only switches to the
		// fixed 3 decimals once the slider moves.
		Text: strconv.FormatFloat(settings.Init, 'g', -1, 64),
	}
}

// FormatParameter is how a slider value is written into its text box.
func FormatParameter(value float64) string {
	return strconv.FormatFloat(value, 'f', 3, 64)
}

func (p *Parameter) set(value float64) {
	p.Value = value
	p.Text = FormatParameter(value)
}

// BoundFunc evaluates a bound curve at t. params are in the order of
// BoundCurve.Params.
type BoundFunc func(t float64, params []float64) float64

// BoundCurve is a theoretical error bound drawn over the shared domain.
type BoundCurve struct {
	ID   uint32
	Name string

	// Legend label. Never changes; hiding the curve only flips Visible.
	Label   string
	Visible bool

	Params []*Parameter
	Y      []float64

	fn BoundFunc
}

func NewBoundCurve(id uint32, name, label string, fn BoundFunc, params ...*Parameter) *BoundCurve {
	return &BoundCurve{
		ID:      id,
		Name:    name,
		Label:   label,
		Visible: true,
		Params:  params,
		fn:      fn,
	}
}

func (c *BoundCurve) Param(name string) (*Parameter, error) {
	for _, p := range c.Params {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("curve %s has no parameter %q", c.Name, name)
}

func (c *BoundCurve) ParamValues() []float64 {
	return Map(c.Params, func(p *Parameter) float64 { return p.Value })
}

// Recompute re-evaluates this curve only, over the domain t.
func (c *BoundCurve) Recompute(t []float64) {
	params := c.ParamValues()
	if len(c.Y) != len(t) {
		c.Y = make([]float64, len(t))
	}
	for i, ti := range t {
		c.Y[i] = c.fn(ti, params)
	}
}

func (c *BoundCurve) clone() *BoundCurve {
	clone := *c
	clone.Params = Map(c.Params, func(p *Parameter) *Parameter {
		cp := *p
		return &cp
	})
	clone.Y = append([]float64(nil), c.Y...)
	return &clone
}

// Figure is the whole application state: the bound curves, the loaded data
// and the axis scales. Only the ControlPanel mutates it.
type Figure struct {
	Options FigureOptions

	// Domain shared by every bound curve.
	T      []float64
	Curves []*BoundCurve

	Series       []Series
	Mesh         *Mesh
	Dirac        *DiracPoint
	MeshViewport float64

	XScale AxisScale
	YScale AxisScale
}

// NewFigure builds the initial figure and evaluates both bound curves.
func NewFigure(settings Settings, series []Series, mesh *Mesh, dirac *DiracPoint) *Figure {
	thesis := NewBoundCurve(0, ThesisCurveName, ThesisCurveLabel,
		func(t float64, params []float64) float64 {
			return ThesisBound(t, params[0])
		},
		NewParameter("C1", settings.C1),
	)

	algebraic := NewBoundCurve(1, AlgebraicCurveName, AlgebraicCurveLabel,
		func(t float64, params []float64) float64 {
			return AlgebraicBound(t, params[0], params[1])
		},
		NewParameter("C2", settings.C2),
		NewParameter("k", settings.K),
	)

	f := &Figure{
		Options:      settings.Figure,
		T:            BoundDomain(settings.DomainStart, MaxSeriesLen(series), settings.Resolution),
		Curves:       []*BoundCurve{thesis, algebraic},
		Series:       series,
		Mesh:         mesh,
		Dirac:        dirac,
		MeshViewport: settings.MeshViewport,
		XScale:       ScaleLinear,
		YScale:       ScaleLinear,
	}

	for _, c := range f.Curves {
		c.Recompute(f.T)
	}

	return f
}

func (f *Figure) Curve(name string) (*BoundCurve, error) {
	for _, c := range f.Curves {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no curve named %q", name)
}

// LegendEntries lists the labels shown in the legend: visible bound curves
// first, then every labeled series.
func (f *Figure) LegendEntries() []string {
	entries := make([]string, 0, len(f.Curves)+len(f.Series))
	for _, c := range f.Curves {
		if c.Visible {
			entries = append(entries, c.Label)
		}
	}
	for _, s := range f.Series {
		if s.Label != "" {
			entries = append(entries, s.Label)
		}
	}
	return entries
}

// Clone copies the mutable parts of the figure. Loaded data is immutable and
// shared with the clone.
func (f *Figure) Clone() *Figure {
	clone := *f
	clone.Curves = Map(f.Curves, (*BoundCurve).clone)
	return &clone
}

func (f *Figure) FigureMessage() FigureMessage {
	return FigureMessage{
		Options: f.Options,
		T:       f.T,
		Curves: Map(f.Curves, func(c *BoundCurve) CurveInfo {
			return CurveInfo{
				ID:    c.ID,
				Name:  c.Name,
				Label: c.Label,
				Params: Map(c.Params, func(p *Parameter) ParameterInfo {
					return ParameterInfo{Name: p.Name, Min: p.Min, Max: p.Max}
				}),
			}
		}),
		Series: Map(f.Series, func(s Series) SeriesInfo {
			return SeriesInfo{Label: s.Label, X: s.Xs(), Y: s.Ys()}
		}),
		Mesh:         f.Mesh,
		Dirac:        f.Dirac,
		MeshViewport: f.MeshViewport,
	}
}

func (f *Figure) ControlState() ControlState {
	state := ControlState{
		Curves: make(map[string]CurveControls, len(f.Curves)),
		LogX:   f.XScale == ScaleLog,
		LogY:   f.YScale == ScaleLog,
	}

	for _, c := range f.Curves {
		params := make(map[string]ParameterState, len(c.Params))
		for _, p := range c.Params {
			params[p.Name] = ParameterState{Value: p.Value, Text: p.Text}
		}
		state.Curves[c.Name] = CurveControls{Visible: c.Visible, Params: params}
	}

	return state
}
