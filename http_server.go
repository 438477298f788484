package boundplot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/plot/vg"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const bufferSize = 1024

type HttpServer struct {
	eventLoop   *EventLoop
	host        string
	port        uint16
	openBrowser bool
	mux         *http.ServeMux
	logger      logrus.FieldLogger

	addrMutex sync.Mutex
	addr      string
}

// FigureState is the body of GET /figure.
type FigureState struct {
	Figure   FigureMessage
	Controls ControlState
	Legend   []string
}

func NewHttpServer(eventLoop *EventLoop, host string, port uint16, openBrowser bool) *HttpServer {
	s := &HttpServer{
		eventLoop:   eventLoop,
		host:        host,
		port:        port,
		openBrowser: openBrowser,
		mux:         http.NewServeMux(),
		logger:      logrus.WithField("tag", "HttpServer"),
	}

	webui, err := webuiFiles()
	if err != nil {
		panic(err)
	}

	s.mux.Handle("/", http.FileServer(http.FS(webui)))
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/figure", s.handleFigure)
	for _, format := range SnapshotFormats {
		s.mux.HandleFunc("/snapshot."+format, s.handleSnapshot(format))
	}

	return s
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "content-type")
	w.Header().Set("Access-Control-Allow-Methods", "*")
}

func (s *HttpServer) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	c, err := websocket.Accept(w, req, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.WithError(err).Warn("failed to accept new websocket connection")
		return
	}

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	logger := s.logger.WithField("remote", req.RemoteAddr)

	channel := make(chan WSMessage, bufferSize)
	wg := sync.WaitGroup{}
	wg.Add(2)

	// Writer: everything the event loop broadcasts goes out as binary frames.
	go func() {
		defer wg.Done()
		defer cancel()
		for {
			select {
			case msg := <-channel:
				buf, err := EncodeWSMessage(msg)
				if err != nil {
					// Skipping a message would leave the client with a partial
					// figure, so drop the connection instead.
					logger.WithError(err).WithField("type", msg.Header.Type).Error("failed to encode message")
					c.Close(websocket.StatusInternalError, "failed to encode message")
					return
				}

				if err := c.Write(ctx, websocket.MessageBinary, buf); err != nil {
					// At this point the websocket closed, so we don't even need to send anything
					logger.WithError(err).Debug("websocket write failed")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Reader: the browser sends one JSON command per control interaction.
	go func() {
		defer wg.Done()
		defer cancel()
		for {
			var cmd Command
			if err := wsjson.Read(ctx, c, &cmd); err != nil {
				if websocket.CloseStatus(err) == websocket.StatusNormalClosure || websocket.CloseStatus(err) == websocket.StatusGoingAway {
					logger.Info("client closed connection")
				} else if ctx.Err() == nil {
					logger.WithError(err).Warn("websocket read failed")
				}
				return
			}

			err := s.eventLoop.Submit(ctx, cmd)
			var inputErr *InteractiveInputError
			if errors.As(err, &inputErr) {
				// Already reported to the clients by the event loop.
				continue
			}

			if errors.Is(err, ErrEventLoopStopped) {
				return
			}

			if err != nil && ctx.Err() == nil {
				logger.WithError(err).WithField("command", cmd).Warn("command failed")
			}
		}
	}()

	// The channel is already being received from in another goroutine and we
	// register the channel in the handler goroutine.
	// A client that falls too far behind is dropped by the event loop;
	// canceling ends both goroutines and the browser reconnects.
	s.eventLoop.RegisterChannel(ctx, channel, cancel)

	wg.Wait()

	// The event loop may still be broadcasting to this channel until it is
	// deregistered, so keep draining it.
	go func() {
		for range channel {
		}
	}()
	s.eventLoop.DeregisterChannel(ctx, channel)
	close(channel)

	c.Close(websocket.StatusNormalClosure, "")
}

func (s *HttpServer) handleFigure(w http.ResponseWriter, req *http.Request) {
	setCORSHeaders(w)
	if req.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	figure := s.eventLoop.Snapshot()
	state := FigureState{
		Figure:   figure.FigureMessage(),
		Controls: figure.ControlState(),
		Legend:   figure.LegendEntries(),
	}

	body, err := json.Marshal(state)
	if err != nil {
		s.logger.WithError(err).Error("failed to encode figure")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(body); err != nil {
		s.logger.WithError(err).Debug("failed to write figure")
	}
}

var snapshotContentTypes = map[string]string{
	"png": "image/png",
	"svg": "image/svg+xml",
	"pdf": "application/pdf",
}

// handleSnapshot renders the current figure. Optional width and height query
// parameters are in inches.
func (s *HttpServer) handleSnapshot(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		setCORSHeaders(w)

		width, err := inchesParam(req, "width", DefaultSnapshotWidth)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		height, err := inchesParam(req, "height", DefaultSnapshotHeight)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		// Render into a buffer so a failure can still become a 500.
		var buf bytes.Buffer
		if err := RenderFigure(&buf, s.eventLoop.Snapshot(), format, width, height); err != nil {
			s.logger.WithError(err).WithField("format", format).Error("failed to render snapshot")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", snapshotContentTypes[format])
		if _, err := w.Write(buf.Bytes()); err != nil {
			s.logger.WithError(err).WithField("format", format).Warn("failed to write snapshot")
		}
	}
}

func inchesParam(req *http.Request, name string, def vg.Length) (vg.Length, error) {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value <= 0 || value > 100 {
		return 0, fmt.Errorf("invalid %s %q: expected inches in (0, 100]", name, raw)
	}

	return vg.Length(value) * vg.Inch, nil
}

// Addr returns the address the server listens on, empty before Run.
func (s *HttpServer) Addr() string {
	s.addrMutex.Lock()
	defer s.addrMutex.Unlock()
	return s.addr
}

// Run serves until ctx is canceled.
func (s *HttpServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.host, strconv.Itoa(int(s.port))))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.addrMutex.Lock()
	s.addr = ln.Addr().String()
	s.addrMutex.Unlock()

	// Request contexts derive from ctx so open websockets end with the server.
	server := &http.Server{
		Handler:     s.mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	url := fmt.Sprintf("http://%s", s.Addr())
	s.logger.Infof("starting HTTP server at %s", url)
	if s.openBrowser {
		openBrowser(url)
	}

	err = server.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
