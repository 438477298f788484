package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/cactusdynamics/boundplot"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Config holds the configuration for the WS reader
type Config struct {
	ServerURL string
	Commands  []boundplot.Command
	Timeout   time.Duration
	Output    io.Writer
	Logger    logrus.FieldLogger
}

// WSReader connects to a boundplot server, optionally drives its controls
// and writes the resulting bound curves as CSV.
type WSReader struct {
	config    Config
	csvWriter *csv.Writer

	figure   *boundplot.FigureMessage
	curves   map[uint32][]float64
	controls *boundplot.ControlState
}

// NewWSReader creates a new WS reader with the given configuration
func NewWSReader(config Config) *WSReader {
	return &WSReader{
		config:    config,
		csvWriter: csv.NewWriter(config.Output),
		curves:    make(map[uint32][]float64),
	}
}

func wsURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	// Change scheme to websocket
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	u.Path = "/ws"
	return u.String(), nil
}

// Connect reads the initial figure, sends every configured command, waits
// for the controls update that ends each command's response, then writes the
// curves.
func (w *WSReader) Connect(ctx context.Context) error {
	target, err := wsURL(w.config.ServerURL)
	if err != nil {
		return err
	}

	w.config.Logger.WithField("url", target).Info("connecting to websocket")

	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// The snapshot ends with the controls, like every command response.
	if err := w.readUntilControls(ctx, conn); err != nil {
		return fmt.Errorf("reading initial figure: %w", err)
	}

	for _, cmd := range w.config.Commands {
		if err := wsjson.Write(ctx, conn, cmd); err != nil {
			return fmt.Errorf("sending command: %w", err)
		}

		if err := w.readUntilControls(ctx, conn); err != nil {
			return fmt.Errorf("waiting for %s: %w", cmd.Action, err)
		}
	}

	return w.writeCurves()
}

func (w *WSReader) readUntilControls(ctx context.Context, conn *websocket.Conn) error {
	readCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	for {
		_, messageData, err := conn.Read(readCtx)
		if err != nil {
			return err
		}

		done, err := w.processMessage(messageData)
		if err != nil {
			return err
		}

		if done {
			return nil
		}
	}
}

// processMessage processes a single websocket message and reports whether it
// was a CONTROLS message.
func (w *WSReader) processMessage(messageData []byte) (bool, error) {
	msg, err := boundplot.DecodeWSMessage(messageData)
	if err != nil {
		return false, fmt.Errorf("failed to decode message: %w", err)
	}

	switch payload := msg.Payload.(type) {
	case boundplot.FigureMessage:
		w.figure = &payload
		w.config.Logger.WithField("curves", len(payload.Curves)).Debug("received figure")
	case boundplot.CurveMessage:
		w.curves[payload.CurveID] = payload.Y
	case boundplot.ControlState:
		w.controls = &payload
		return true, nil
	case boundplot.InputErrorMessage:
		w.config.Logger.WithField("text", payload.Text).Warn(payload.Msg)
	default:
		w.config.Logger.WithField("type", fmt.Sprintf("0x%02x", msg.Header.Type)).Warn("unknown message type")
	}

	return false, nil
}

// writeCurves writes one CSV row per sample of every visible curve.
func (w *WSReader) writeCurves() error {
	if w.figure == nil {
		return fmt.Errorf("no figure received")
	}

	if err := w.csvWriter.Write([]string{"curve", "t", "y"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, curve := range w.figure.Curves {
		if w.controls != nil && !w.controls.Curves[curve.Name].Visible {
			continue
		}

		ys := w.curves[curve.ID]
		for i := 0; i < len(ys) && i < len(w.figure.T); i++ {
			row := []string{
				curve.Name,
				strconv.FormatFloat(w.figure.T[i], 'g', -1, 64),
				strconv.FormatFloat(ys[i], 'g', -1, 64),
			}
			if err := w.csvWriter.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
	}

	w.csvWriter.Flush()
	return w.csvWriter.Error()
}

func parseCommands(raw []string) ([]boundplot.Command, error) {
	commands := make([]boundplot.Command, 0, len(raw))
	for _, r := range raw {
		var cmd boundplot.Command
		if err := json.Unmarshal([]byte(r), &cmd); err != nil {
			return nil, fmt.Errorf("invalid command %q: %w", r, err)
		}
		commands = append(commands, cmd)
	}
	return commands, nil
}

func main() {
	var serverURL string
	var rawCommands []string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:           "boundplot-ws-reader",
		Short:         "Print the bound curves of a running boundplot as CSV",
		Example:       `  boundplot-ws-reader --send '{"action":"slide","curve":"thesis_bound","param":"C1","value":0.5}'`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			commands, err := parseCommands(rawCommands)
			if err != nil {
				return err
			}

			reader := NewWSReader(Config{
				ServerURL: serverURL,
				Commands:  commands,
				Timeout:   timeout,
				Output:    os.Stdout,
				Logger:    logrus.WithField("tag", "WSReader"),
			})
			return reader.Connect(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", "http://localhost:5275", "URL of the boundplot server")
	cmd.Flags().StringArrayVar(&rawCommands, "send", nil, "JSON command to send before printing, may be repeated")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "how long to wait for each response")

	logrus.SetOutput(os.Stderr)

	if err := cmd.Execute(); err != nil {
		logrus.WithError(err).Error("failed")
		os.Exit(1)
	}
}
