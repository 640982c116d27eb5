// Command atwdemo runs the asynchronous time warp headless: a synthetic
// scene renders eye textures on one goroutine while the scheduler warps
// them to a simulated display on another.
//
// Usage:
//
//	atwdemo [-config atwdemo.toml] [-duration 5s] [-scene-delay 0] [-v]
//
// The noop backend name selects the software rasterizer, which is always
// linked in.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gogpu/gpucontext"
	_ "github.com/gogpu/wgpu/hal/allbackends"

	"github.com/gogpu/timewarp"
	"github.com/gogpu/timewarp/gpu"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML config file (defaults when empty)")
		duration   = flag.Duration("duration", 5*time.Second, "how long to run")
		sceneDelay = flag.Duration("scene-delay", 0, "extra CPU time per scene frame")
		statsEvery = flag.Duration("stats", time.Second, "stats interval while bar graphs are on")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	timewarp.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := timewarp.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = timewarp.LoadConfig(*configPath); err != nil {
			log.Fatalf("config: %v", err)
		}
	}

	if err := run(cfg, *duration, *sceneDelay, *statsEvery); err != nil {
		log.Fatalf("atwdemo: %v", err)
	}
}

func run(cfg timewarp.Config, duration, sceneDelay, statsEvery time.Duration) error {
	rig, err := gpu.Open(cfg)
	if err != nil {
		return err
	}
	defer rig.Close()

	display, err := timewarp.NewSimulatedDisplay(cfg.RefreshRate)
	if err != nil {
		return err
	}
	toggles := timewarp.NewToggles(cfg)
	timewarp.BindKeys(gpucontext.NullEventSource{}, toggles)
	tracker := timewarp.NewSimulatedHeadTracker(time.Now())

	ex := timewarp.NewExchange(timewarp.WithFenceTimeout(cfg.FenceTimeout))
	opts := append(rig.SchedulerOptions(),
		timewarp.WithToggles(toggles),
		timewarp.WithHeadTracker(tracker))
	s, err := timewarp.NewScheduler(ex, display, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	go reportStats(ctx, s, toggles, statsEvery)

	scene := newSceneLoop(rig, s, tracker, toggles, sceneDelay)
	if err := timewarp.RunPair(ctx, s, scene.run); err != nil && !errors.Is(err, timewarp.ErrExchangeClosed) {
		return err
	}

	logStats("final", s.Stats(), display.Presents())
	return nil
}

// sceneLoop renders the stand-in scene into the rig's eye ring.
type sceneLoop struct {
	rig     *gpu.Rig
	sched   *timewarp.Scheduler
	tracker timewarp.HeadTracker
	toggles *timewarp.Toggles
	delay   time.Duration
	ring    *timewarp.EyeRing
}

func newSceneLoop(rig *gpu.Rig, s *timewarp.Scheduler, tracker timewarp.HeadTracker,
	toggles *timewarp.Toggles, delay time.Duration,
) *sceneLoop {
	return &sceneLoop{
		rig:     rig,
		sched:   s,
		tracker: tracker,
		toggles: toggles,
		delay:   delay,
		ring:    timewarp.NewEyeRing(rig.EyeRingSize()),
	}
}

func (l *sceneLoop) run(ctx context.Context) error {
	proj := timewarp.DefaultEyeProjection()
	var frame int64
	for {
		// Target the refresh after the one being scanned out.
		frame = max(frame+1, l.sched.Predictor().Timing().FrameIndex+1)
		displayTime := l.sched.Predictor().PredictedDisplayTime(frame)

		start := time.Now()
		if l.delay > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(l.delay):
			}
		}

		ref := l.ring.NextExcept(l.sched.Exchange().Displayed()...)
		ref.Layered = l.toggles.MultiView()
		fence, err := l.rig.RenderScene(ref, frame)
		if err != nil {
			return err
		}

		f := timewarp.EyeFrame{
			FrameIndex:  frame,
			DisplayTime: displayTime,
			View:        l.tracker.ViewMatrixForTime(l.toggles.ViewContext(), displayTime),
			Projection:  proj,
			CPUTime:     time.Since(start),
		}
		for eye := range timewarp.NumEyes {
			f.Textures[eye] = ref
			f.Fences[eye] = fence
			if ref.Layered {
				f.ArrayLayers[eye] = eye
			}
		}
		if err := l.sched.Exchange().SubmitFrame(ctx, f); err != nil {
			if errors.Is(err, timewarp.ErrExchangeClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func reportStats(ctx context.Context, s *timewarp.Scheduler, toggles *timewarp.Toggles, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if toggles.BarGraphs() {
				logStats("stats", s.Stats(), 0)
			}
		}
	}
}

func logStats(msg string, st timewarp.SchedulerStats, presents uint64) {
	attrs := []any{
		"mode", st.RenderMode,
		"source_fps", st.SourceFPS,
		"warp_fps", st.WarpFPS,
		"ticks", st.Ticks,
		"warps", st.Warps,
		"skipped", st.Skipped,
		"warp_errors", st.WarpErrors,
		"present_errors", st.PresentErrors,
		"submitted", st.Exchange.Submitted,
		"accepted", st.Exchange.Accepted,
		"rejected_fence", st.Exchange.RejectedFence,
		"rejected_future", st.Exchange.RejectedFuture,
	}
	if presents > 0 {
		attrs = append(attrs, "presents", presents)
	}
	timewarp.Logger().Info("atwdemo: "+msg, attrs...)
}
