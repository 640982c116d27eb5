package timewarp

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestPair(t *testing.T) (*Scheduler, *SimulatedDisplay) {
	t.Helper()
	d, err := NewSimulatedDisplay(500)
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewScheduler(NewExchange(), d, WithWarper(RenderModeGraphics, warpFunc(func(WarpInput) error { return nil })))
	if err != nil {
		t.Fatal(err)
	}
	return s, d
}

func TestRunPairSceneError(t *testing.T) {
	s, _ := newTestPair(t)
	sceneErr := errors.New("scene failed")

	err := RunPair(context.Background(), s, func(ctx context.Context) error {
		return sceneErr
	})
	if !errors.Is(err, sceneErr) {
		t.Errorf("RunPair() = %v, want %v", err, sceneErr)
	}
	if !s.Exchange().Closed() {
		t.Error("exchange still open after RunPair")
	}
}

func TestRunPairSceneDoneStopsScheduler(t *testing.T) {
	s, _ := newTestPair(t)

	done := make(chan error, 1)
	go func() {
		done <- RunPair(context.Background(), s, func(ctx context.Context) error {
			return s.Exchange().SubmitFrame(ctx, EyeFrame{})
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunPair() = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunPair did not return after the scene finished")
	}
}

func TestRunPairCancelReleasesBlockedScene(t *testing.T) {
	s, _ := newTestPair(t)
	ctx, cancel := context.WithCancel(context.Background())

	sceneErr := make(chan error, 1)
	done := make(chan error, 1)
	go func() {
		done <- RunPair(ctx, s, func(context.Context) error {
			// Ignore ctx so only closing the exchange can release the
			// producer.
			var err error
			for err == nil {
				err = s.Exchange().SubmitFrame(context.Background(), EyeFrame{DisplayTime: time.Now().Add(time.Hour)})
			}
			sceneErr <- err
			return err
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunPair() = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunPair did not return after cancel")
	}
	if err := <-sceneErr; !errors.Is(err, ErrExchangeClosed) {
		t.Errorf("scene SubmitFrame() = %v, want ErrExchangeClosed", err)
	}
}
