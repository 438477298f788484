package boundplot

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

type Action string

const (
	ActionToggleCurve Action = "toggle_curve"
	ActionSlide       Action = "slide"
	ActionSubmit      Action = "submit"
	ActionToggleLogX  Action = "toggle_log_x"
	ActionToggleLogY  Action = "toggle_log_y"
)

// Command is one user interaction with a control, as sent by the browser.
type Command struct {
	Action Action  `json:"action"`
	Curve  string  `json:"curve,omitempty"`
	Param  string  `json:"param,omitempty"`
	Value  float64 `json:"value,omitempty"`
	Text   string  `json:"text,omitempty"`
}

// ControlPanel applies commands to a Figure. It is not safe for concurrent
// use; the EventLoop is the only caller once the server runs.
type ControlPanel struct {
	figure *Figure
	logger logrus.FieldLogger
}

func NewControlPanel(figure *Figure) *ControlPanel {
	return &ControlPanel{
		figure: figure,
		logger: logrus.WithField("tag", "ControlPanel"),
	}
}

func (p *ControlPanel) Figure() *Figure {
	return p.figure
}

// ToggleCurve flips the visibility of a bound curve. The curve keeps its data
// and its label; only legend membership and drawing change.
func (p *ControlPanel) ToggleCurve(name string) error {
	curve, err := p.figure.Curve(name)
	if err != nil {
		return err
	}

	curve.Visible = !curve.Visible
	return nil
}

// SetParameter is the single way a parameter changes. It stores the value,
// re-evaluates the owning curve and refreshes the mirrored text.
func (p *ControlPanel) SetParameter(curveName, paramName string, value float64) (*BoundCurve, error) {
	curve, err := p.figure.Curve(curveName)
	if err != nil {
		return nil, err
	}

	param, err := curve.Param(paramName)
	if err != nil {
		return nil, err
	}

	param.set(value)
	curve.Recompute(p.figure.T)

	p.logger.WithFields(logrus.Fields{
		"curve": curveName,
		"param": paramName,
		"value": value,
	}).Debug("parameter set")

	return curve, nil
}

// Slide handles a slider drag. A slider cannot leave its range.
func (p *ControlPanel) Slide(curveName, paramName string, value float64) (*BoundCurve, error) {
	curve, err := p.figure.Curve(curveName)
	if err != nil {
		return nil, err
	}

	param, err := curve.Param(paramName)
	if err != nil {
		return nil, err
	}

	if math.IsNaN(value) {
		return nil, fmt.Errorf("slider %s.%s sent NaN", curveName, paramName)
	}

	return p.SetParameter(curveName, paramName, Clamp(value, param.Min, param.Max))
}

// Submit handles a text box commit. The text is forced onto the slider as is,
// so values outside the slider range are accepted. Text that is not a finite
// number is rejected with an InteractiveInputError and nothing changes.
func (p *ControlPanel) Submit(curveName, paramName string, text string) (*BoundCurve, error) {
	curve, err := p.figure.Curve(curveName)
	if err != nil {
		return nil, err
	}

	if _, err := curve.Param(paramName); err != nil {
		return nil, err
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err == nil && (math.IsNaN(value) || math.IsInf(value, 0)) {
		err = errors.New("value must be finite")
	}

	if err != nil {
		return nil, &InteractiveInputError{Curve: curveName, Param: paramName, Text: text, Err: err}
	}

	return p.SetParameter(curveName, paramName, value)
}

func (p *ControlPanel) ToggleLogX() {
	p.figure.XScale = toggleScale(p.figure.XScale)
}

func (p *ControlPanel) ToggleLogY() {
	p.figure.YScale = toggleScale(p.figure.YScale)
}

func toggleScale(s AxisScale) AxisScale {
	if s == ScaleLog {
		return ScaleLinear
	}
	return ScaleLog
}

// Handle applies cmd and returns the messages describing the change: the
// recomputed curve when a parameter moved, then the new control state.
//
// A rejected text submission still yields messages (the error and the
// unchanged controls, so the text box reverts) together with the
// InteractiveInputError. Any other error means the command was invalid and
// nothing changed.
func (p *ControlPanel) Handle(cmd Command) ([]WSMessage, error) {
	var curve *BoundCurve
	var err error

	switch cmd.Action {
	case ActionToggleCurve:
		err = p.ToggleCurve(cmd.Curve)
	case ActionSlide:
		curve, err = p.Slide(cmd.Curve, cmd.Param, cmd.Value)
	case ActionSubmit:
		curve, err = p.Submit(cmd.Curve, cmd.Param, cmd.Text)
	case ActionToggleLogX:
		p.ToggleLogX()
	case ActionToggleLogY:
		p.ToggleLogY()
	default:
		err = fmt.Errorf("unknown action %q", cmd.Action)
	}

	var inputErr *InteractiveInputError
	if errors.As(err, &inputErr) {
		return []WSMessage{
			NewWSMessage(MessageTypeInputError, InputErrorMessage{
				Curve: inputErr.Curve,
				Param: inputErr.Param,
				Text:  inputErr.Text,
				Msg:   inputErr.Error(),
			}),
			NewWSMessage(MessageTypeControls, p.figure.ControlState()),
		}, err
	}

	if err != nil {
		return nil, err
	}

	messages := make([]WSMessage, 0, 2)
	if curve != nil {
		messages = append(messages, NewCurveWSMessage(curve))
	}
	messages = append(messages, NewWSMessage(MessageTypeControls, p.figure.ControlState()))

	return messages, nil
}

// SnapshotMessages describes the whole figure for a newly connected client.
func (p *ControlPanel) SnapshotMessages() []WSMessage {
	messages := make([]WSMessage, 0, len(p.figure.Curves)+2)
	messages = append(messages, NewWSMessage(MessageTypeFigure, p.figure.FigureMessage()))
	for _, c := range p.figure.Curves {
		messages = append(messages, NewCurveWSMessage(c))
	}
	messages = append(messages, NewWSMessage(MessageTypeControls, p.figure.ControlState()))
	return messages
}
