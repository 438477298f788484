package boundplot

import (
	"context"
	"errors"
	"testing"
	"time"
)

// receive reads n messages from c or fails the test after timeout.
func receive(t *testing.T, c <-chan WSMessage, n int, timeout time.Duration) []WSMessage {
	t.Helper()

	messages := make([]WSMessage, 0, n)
	deadline := time.After(timeout)
	for len(messages) < n {
		select {
		case msg := <-c:
			messages = append(messages, msg)
		case <-deadline:
			t.Fatalf("timed out after %d of %d messages", len(messages), n)
		}
	}
	return messages
}

func expectNoMessage(t *testing.T, c <-chan WSMessage) {
	t.Helper()
	select {
	case msg := <-c:
		t.Fatalf("unexpected message of type 0x%02x", msg.Header.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func startTestLoop(t *testing.T) (*EventLoop, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	loop := NewEventLoop(NewControlPanel(newTestFigure()))
	loop.Start(ctx)

	t.Cleanup(func() {
		cancel()
		loop.Wait()
	})

	return loop, cancel
}

func TestEventLoopRegisterSendsSnapshot(t *testing.T) {
	loop, _ := startTestLoop(t)

	c := make(chan WSMessage, 16)
	loop.RegisterChannel(context.Background(), c, nil)

	messages := receive(t, c, 4, time.Second)
	if !sameTypes(messages, MessageTypeFigure, MessageTypeCurve, MessageTypeCurve, MessageTypeControls) {
		t.Fatalf("message types = %v", messageTypes(messages))
	}
	expectNoMessage(t, c)
}

func TestEventLoopBroadcast(t *testing.T) {
	loop, _ := startTestLoop(t)

	c1 := make(chan WSMessage, 16)
	c2 := make(chan WSMessage, 16)
	loop.RegisterChannel(context.Background(), c1, nil)
	loop.RegisterChannel(context.Background(), c2, nil)
	receive(t, c1, 4, time.Second)
	receive(t, c2, 4, time.Second)

	err := loop.Submit(context.Background(), Command{Action: ActionSlide, Curve: ThesisCurveName, Param: "C1", Value: 0.5})
	if err != nil {
		t.Fatal(err)
	}

	for _, c := range []chan WSMessage{c1, c2} {
		messages := receive(t, c, 2, time.Second)
		if !sameTypes(messages, MessageTypeCurve, MessageTypeControls) {
			t.Fatalf("message types = %v", messageTypes(messages))
		}
		if id := messages[0].Payload.(CurveMessage).CurveID; id != 0 {
			t.Fatalf("CurveID = %d, want 0", id)
		}
	}

	snapshot := loop.Snapshot()
	thesis, _ := snapshot.Curve(ThesisCurveName)
	if param, _ := thesis.Param("C1"); param.Value != 0.5 {
		t.Fatalf("snapshot C1 = %v, want 0.5", param.Value)
	}
}

func TestEventLoopInputError(t *testing.T) {
	loop, _ := startTestLoop(t)

	c := make(chan WSMessage, 16)
	loop.RegisterChannel(context.Background(), c, nil)
	receive(t, c, 4, time.Second)

	err := loop.Submit(context.Background(), Command{Action: ActionSubmit, Curve: ThesisCurveName, Param: "C1", Text: "oops"})
	var inputErr *InteractiveInputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InteractiveInputError, got %v", err)
	}

	messages := receive(t, c, 2, time.Second)
	if !sameTypes(messages, MessageTypeInputError, MessageTypeControls) {
		t.Fatalf("message types = %v", messageTypes(messages))
	}

	// The loop keeps going after a rejected text.
	if err := loop.Submit(context.Background(), Command{Action: ActionToggleLogY}); err != nil {
		t.Fatal(err)
	}
	receive(t, c, 1, time.Second)
}

func TestEventLoopInvalidCommandBroadcastsNothing(t *testing.T) {
	loop, _ := startTestLoop(t)

	c := make(chan WSMessage, 16)
	loop.RegisterChannel(context.Background(), c, nil)
	receive(t, c, 4, time.Second)

	if err := loop.Submit(context.Background(), Command{Action: ActionToggleCurve, Curve: "nope"}); err == nil {
		t.Fatal("expected error")
	}
	expectNoMessage(t, c)
}

func TestEventLoopDeregister(t *testing.T) {
	loop, _ := startTestLoop(t)

	c := make(chan WSMessage, 16)
	loop.RegisterChannel(context.Background(), c, nil)
	receive(t, c, 4, time.Second)

	loop.DeregisterChannel(context.Background(), c)

	if err := loop.Submit(context.Background(), Command{Action: ActionToggleLogX}); err != nil {
		t.Fatal(err)
	}
	expectNoMessage(t, c)
}

func TestEventLoopCommandsApplyInOrder(t *testing.T) {
	loop, _ := startTestLoop(t)

	values := []float64{0.1, 0.2, 0.3, 0.4, 0.5}
	for _, v := range values {
		if err := loop.Submit(context.Background(), Command{Action: ActionSlide, Curve: AlgebraicCurveName, Param: "C2", Value: v}); err != nil {
			t.Fatal(err)
		}
	}

	algebraic, _ := loop.Snapshot().Curve(AlgebraicCurveName)
	if param, _ := algebraic.Param("C2"); param.Value != 0.5 {
		t.Fatalf("C2 = %v, want 0.5", param.Value)
	}
}

func TestEventLoopStopped(t *testing.T) {
	loop, cancel := startTestLoop(t)
	cancel()
	loop.Wait()

	err := loop.Submit(context.Background(), Command{Action: ActionToggleLogX})
	if !errors.Is(err, ErrEventLoopStopped) {
		t.Fatalf("expected ErrEventLoopStopped, got %v", err)
	}
}

func TestEventLoopSubmitContextCanceled(t *testing.T) {
	// Never started, so nothing receives the command.
	loop := NewEventLoop(NewControlPanel(newTestFigure()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := loop.Submit(ctx, Command{Action: ActionToggleLogX}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestEventLoopDropsFullChannel(t *testing.T) {
	loop, _ := startTestLoop(t)

	// Room for the snapshot and one more message only.
	slow := make(chan WSMessage, 5)
	dropped := make(chan struct{}, 1)
	loop.RegisterChannel(context.Background(), slow, func() { dropped <- struct{}{} })

	healthy := make(chan WSMessage, 16)
	loop.RegisterChannel(context.Background(), healthy, nil)
	receive(t, healthy, 4, time.Second)

	// A slide produces two messages, so the slow channel overflows.
	for i := 0; i < 3; i++ {
		err := loop.Submit(context.Background(), Command{Action: ActionSlide, Curve: ThesisCurveName, Param: "C1", Value: 0.5})
		if err != nil {
			t.Fatal(err)
		}
		receive(t, healthy, 2, time.Second)
	}

	select {
	case <-dropped:
	default:
		t.Fatal("full channel was not dropped")
	}
	select {
	case <-dropped:
		t.Fatal("drop called more than once")
	default:
	}

	if got := len(slow); got != 5 {
		t.Fatalf("slow channel holds %d messages, want 5", got)
	}

	// Deregistering an already dropped channel is harmless.
	loop.DeregisterChannel(context.Background(), slow)
}
