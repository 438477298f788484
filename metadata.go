package boundplot

type FigureOptions struct {
	Title     string `yaml:"title"`
	XLabel    string `yaml:"x_label"`
	YLabel    string `yaml:"y_label"`
	MeshTitle string `yaml:"mesh_title"`
}

// CurveInfo is the static part of a bound curve sent to clients. The Y values
// travel separately in CURVE messages.
type CurveInfo struct {
	ID     uint32
	Name   string
	Label  string
	Params []ParameterInfo
}

type ParameterInfo struct {
	Name string
	Min  float64
	Max  float64
}

type SeriesInfo struct {
	Label string
	X     []float64
	Y     []float64
}

// FigureMessage is everything a client needs to lay out the figure. It is
// sent once per connection, before the curves and controls.
type FigureMessage struct {
	Options      FigureOptions
	T            []float64
	Curves       []CurveInfo
	Series       []SeriesInfo
	Mesh         *Mesh       `json:",omitempty"`
	Dirac        *DiracPoint `json:",omitempty"`
	MeshViewport float64
}

// ParameterState is what a slider and its text box display.
type ParameterState struct {
	Value float64
	Text  string
}

type CurveControls struct {
	Visible bool
	Params  map[string]ParameterState
}

// ControlState mirrors every control of the panel.
type ControlState struct {
	Curves map[string]CurveControls
	LogX   bool
	LogY   bool
}

// InputErrorMessage reports a rejected text box submission.
type InputErrorMessage struct {
	Curve string
	Param string
	Text  string
	Msg   string
}
