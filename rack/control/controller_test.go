package control

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/rack/channel"
	"github.com/cwbudde/algo-rack/rack/device"
	"github.com/cwbudde/algo-rack/rack/lock"
	"github.com/cwbudde/algo-rack/rack/param"
	"github.com/cwbudde/algo-rack/rack/pipeline"
	"github.com/cwbudde/algo-rack/rack/plugin/builtin"
	"github.com/cwbudde/algo-rack/rack/registry"
	"github.com/cwbudde/algo-rack/rack/worker"
)

type rack struct {
	ctl      *Controller
	sim      *device.Sim
	controls *pipeline.StaticControls
	reg      *registry.Registry
}

func newRack(t *testing.T) *rack {
	t.Helper()

	f := core.ApplyFormatOptions(core.WithBlockSize(16))
	hub := NewHub()
	reg, err := registry.New(builtin.Catalog(),
		registry.WithFormat(f),
		registry.WithInputs(2, 1),
		registry.WithObserver(hub))
	if err != nil {
		t.Fatal(err)
	}

	opts := pipeline.DefaultOptions()
	opts.DisableDCFilter = true
	opts.CVInputs, opts.TriggerInputs = 2, 1
	controls := pipeline.NewStaticControls(2, 1)
	pipe, err := pipeline.New(f, reg, nil, controls, opts)
	if err != nil {
		t.Fatal(err)
	}

	sim := device.NewSim(f, device.WithGenerator(device.Constant(0.5, 0.5)), device.WithCapture(64))
	w, err := worker.New(sim, pipe, worker.WithNice(0))
	if err != nil {
		t.Fatal(err)
	}

	ctl, err := New(Config{
		Registry: reg, Pipeline: pipe, Worker: w, Device: sim,
		Hub: hub, Controls: controls, PollInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := ctl.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ctl.Close() })
	return &rack{ctl: ctl, sim: sim, controls: controls, reg: reg}
}

// waitOutput waits until the most recent output frame equals want.
func (r *rack) waitOutput(t *testing.T, want [2]float32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var last [2]float32
	for time.Now().Before(deadline) {
		out := r.sim.Captured()
		if n := len(out); n >= 2 {
			last = [2]float32{out[n-2], out[n-1]}
			if math.Abs(float64(last[0]-want[0])) < 1e-6 && math.Abs(float64(last[1]-want[1])) < 1e-6 {
				return
			}
		}
		time.Sleep(200 * time.Microsecond)
	}
	t.Fatalf("output frame %v, want %v", last, want)
}

func TestNewRequiresComponents(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestPluginCommandsReachAudio(t *testing.T) {
	t.Parallel()

	r := newRack(t)
	ctx := context.Background()
	events, cancel := r.ctl.Subscribe(8)
	defer cancel()

	r.waitOutput(t, [2]float32{0.5, 0.5})

	if err := r.ctl.SetPlugin(ctx, channel.MaskLeft, builtin.KindGain); err != nil {
		t.Fatal(err)
	}
	if err := r.ctl.SetParam(ctx, channel.MaskLeft, "gain", 0.5); err != nil {
		t.Fatal(err)
	}
	r.waitOutput(t, [2]float32{0.25, 0.5})

	for _, want := range []registry.EventType{registry.EventPluginChanged, registry.EventParamChanged} {
		select {
		case e := <-events:
			if e.Type != want || e.Mask != channel.MaskLeft {
				t.Fatalf("event %+v, want %s on left", e, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("no %s event", want)
		}
	}

	if err := r.ctl.SetPlugin(ctx, channel.MaskLeft, builtin.KindGain); !errors.Is(err, registry.ErrChannelInUse) {
		t.Fatalf("SetPlugin on owned channel: %v", err)
	}
	if err := r.ctl.Replace(ctx, channel.MaskLeft, builtin.KindPassthrough); err != nil {
		t.Fatal(err)
	}
	r.waitOutput(t, [2]float32{0.5, 0.5})

	st := r.ctl.Status()
	if st.Left != builtin.KindPassthrough || st.Right != "" || st.Stereo {
		t.Fatalf("status %+v", st)
	}

	if err := r.ctl.Replace(ctx, channel.MaskLeft, builtin.KindAnalyzer); !errors.Is(err, registry.ErrBadChannelMapping) {
		t.Fatalf("Replace with stereo kind on left: %v", err)
	}
	if st := r.ctl.Status(); st.Left != builtin.KindPassthrough {
		t.Fatalf("rejected Replace removed the running plugin: %+v", st)
	}

	if err := r.ctl.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if st := r.ctl.Status(); len(st.Slots) != 0 || st.RemainingBytes != st.ArenaBytes {
		t.Fatalf("after reset: %+v", st)
	}
}

func TestCVCommandsDriveMappedParameter(t *testing.T) {
	t.Parallel()

	r := newRack(t)
	ctx := context.Background()

	if err := r.ctl.SetPlugin(ctx, channel.MaskRight, builtin.KindGain); err != nil {
		t.Fatal(err)
	}
	if err := r.ctl.MapCV(ctx, channel.MaskRight, "gain", 1); err != nil {
		t.Fatal(err)
	}
	if err := r.ctl.SetCV(ctx, 1, 2); err != nil {
		t.Fatal(err)
	}
	r.waitOutput(t, [2]float32{0.5, 1})

	if err := r.ctl.MapCV(ctx, channel.MaskRight, "mute", 0); err != nil {
		t.Fatal(err)
	}
	if err := r.ctl.SetTrigger(ctx, 0, true); err != nil {
		t.Fatal(err)
	}
	r.waitOutput(t, [2]float32{0.5, 0})

	if err := r.ctl.MapCV(ctx, channel.MaskRight, "gain", 5); !errors.Is(err, param.ErrBadInput) {
		t.Fatalf("MapCV out of range: %v", err)
	}
}

func TestProcessingCommands(t *testing.T) {
	t.Parallel()

	r := newRack(t)
	ctx := context.Background()

	if err := r.ctl.SetRouting(ctx, pipeline.RouteSwap); err != nil {
		t.Fatal(err)
	}
	if err := r.ctl.SetGateMode(ctx, pipeline.GateBoth); err != nil {
		t.Fatal(err)
	}
	if err := r.ctl.SetDaisy(ctx, true); err != nil {
		t.Fatal(err)
	}
	if err := r.ctl.SetSoftClip(ctx, channel.MaskRight, true); err != nil {
		t.Fatal(err)
	}

	st := r.ctl.Status()
	if st.Route != pipeline.RouteSwap || st.Gate != pipeline.GateBoth || !st.Daisy || st.SoftClip != [2]bool{false, true} {
		t.Fatalf("status %+v", st)
	}

	if err := r.ctl.SetRouting(ctx, pipeline.Route(99)); err == nil {
		t.Fatal("invalid route accepted")
	}
	if err := r.ctl.SetSoftClip(ctx, channel.MaskNone, true); !errors.Is(err, registry.ErrBadChannelMapping) {
		t.Fatalf("SetSoftClip(none): %v", err)
	}

	if err := r.ctl.SetOutputLevels(ctx, 0.5, 0.25); err != nil {
		t.Fatal(err)
	}
	if l, rt := r.sim.OutputLevels(); l != 0.5 || rt != 0.25 {
		t.Fatalf("output levels %v %v", l, rt)
	}
	if err := r.ctl.RecalibrateDCOffset(ctx); err != nil {
		t.Fatal(err)
	}
	if r.sim.Recalibrations() != 1 {
		t.Fatal("recalibration not forwarded")
	}
}

func TestPauseResume(t *testing.T) {
	t.Parallel()

	r := newRack(t)
	ctx := context.Background()

	if err := r.ctl.SetPlugin(ctx, channel.MaskLeft, builtin.KindGain); err != nil {
		t.Fatal(err)
	}
	if err := r.ctl.SetParam(ctx, channel.MaskLeft, "gain", 0); err != nil {
		t.Fatal(err)
	}
	r.waitOutput(t, [2]float32{0, 0.5})

	if err := r.ctl.Pause(ctx); err != nil {
		t.Fatal(err)
	}
	r.waitOutput(t, [2]float32{0.5, 0.5})
	if r.ctl.Status().State != worker.Paused {
		t.Fatal("worker not paused")
	}
	if err := r.ctl.Pause(ctx); !errors.Is(err, worker.ErrInvalidState) {
		t.Fatalf("second Pause: %v", err)
	}

	if err := r.ctl.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	r.waitOutput(t, [2]float32{0, 0.5})
}

func TestCommandHonorsContext(t *testing.T) {
	t.Parallel()

	r := newRack(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.ctl.SetDaisy(ctx, true); !errors.Is(err, context.Canceled) {
		t.Fatalf("SetDaisy with canceled context: %v", err)
	}
}

func TestRunPublishesLevels(t *testing.T) {
	t.Parallel()

	r := newRack(t)
	if _, ok := r.ctl.Levels(); ok {
		t.Fatal("levels before Run")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.ctl.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if m, ok := r.ctl.Levels(); ok && m.OutputLevel > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no levels published")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestCloseStopsWorkerAndClearsPlugins(t *testing.T) {
	t.Parallel()

	r := newRack(t)
	if err := r.ctl.SetPlugin(context.Background(), channel.MaskBoth, builtin.KindAnalyzer); err != nil {
		t.Fatal(err)
	}
	if err := r.ctl.Close(); err != nil {
		t.Fatal(err)
	}
	if r.ctl.Status().State != worker.Stopped {
		t.Fatal("worker still running")
	}
	if r.reg.IsStereo() {
		t.Fatal("plugins left after Close")
	}
	if err := r.ctl.SetDaisy(context.Background(), true); !errors.Is(err, lock.ErrQueueClosed) {
		t.Fatalf("command after Close: %v", err)
	}
}

func TestReadouts(t *testing.T) {
	t.Parallel()

	r := newRack(t)
	if err := r.ctl.SetPlugin(context.Background(), channel.MaskBoth, builtin.KindAnalyzer); err != nil {
		t.Fatal(err)
	}
	rep, err := r.ctl.Readouts(channel.MaskBoth)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := rep["dominant_hz"]; !ok {
		t.Fatalf("readouts %v", rep)
	}
}
