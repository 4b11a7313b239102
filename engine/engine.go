package engine

import (
	"YoloDetServer/config"
	iface "YoloDetServer/interface"
	"YoloDetServer/logger"
	"YoloDetServer/postprocess"
	"YoloDetServer/preprocess"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var ErrNoBackend = errors.New("detector has no inference backend")

type nopObserver struct{}

func (nopObserver) FrameDropped(string)                   {}
func (nopObserver) FrameProcessed(*iface.DetectionResult) {}
func (nopObserver) FrameFailed(string)                    {}

// Detector runs the full pipeline for one model. At most one frame is in
// flight at a time; frames arriving while one is running are dropped.
type Detector struct {
	ID string

	cfg   iface.EngineConfig
	names []string

	// numClasses drives decoding, names are only looked up for display.
	numClasses int

	backend  iface.Inferencer
	worker   *worker
	observer iface.Observer
	stats    *Stats
	log      *zap.Logger

	state atomic.Int32
	// life is held shared by a running detection and exclusively by Load and
	// Destroy, so the backend is never closed under an inference.
	life sync.RWMutex
}

// New validates cfg and wraps backend. The detector stays REGISTERED until
// Load succeeds.
func New(cfg iface.EngineConfig, backend iface.Inferencer) (*Detector, error) {
	if err := config.ValidateEngine(cfg); err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, ErrNoBackend
	}
	d := &Detector{
		cfg:      cfg,
		backend:  backend,
		observer: nopObserver{},
		stats:    NewStats(defaultStatsWindow),
		log:      logger.Named("engine"),
	}
	d.state.Store(REGISTERED)
	return d, nil
}

// SetObserver installs the per-frame hooks. Call before Load.
func (d *Detector) SetObserver(o iface.Observer) {
	if o == nil {
		o = nopObserver{}
	}
	d.observer = o
}

// Load resolves the labels and starts the background worker when configured.
func (d *Detector) Load() error {
	d.life.Lock()
	defer d.life.Unlock()
	if s := d.state.Load(); s != REGISTERED {
		return fmt.Errorf("load detector in state %s", StateName(s))
	}
	names, err := resolveNames(d.cfg.Names)
	if err != nil {
		return err
	}
	d.names = names
	d.numClasses = numClasses(d.cfg, names)
	if d.cfg.UseBackgroundWorker {
		d.worker = newWorker(d.backend)
	}
	d.state.Store(IDLE)
	d.log.Info("detector ready",
		zap.String("id", d.ID),
		zap.String("model", d.cfg.ModelPath),
		zap.Int("inputSize", d.cfg.InputSize),
		zap.Int("classes", d.numClasses),
		zap.Int("labels", len(d.names)),
		zap.Bool("backgroundWorker", d.cfg.UseBackgroundWorker))
	return nil
}

func (d *Detector) State() int32 {
	return d.state.Load()
}

func (d *Detector) Ready() bool {
	s := d.state.Load()
	return s == IDLE || s == BUSY
}

func (d *Detector) Busy() bool {
	return d.state.Load() == BUSY
}

func (d *Detector) Labels() []string {
	d.life.RLock()
	defer d.life.RUnlock()
	return append([]string(nil), d.names...)
}

// NumClasses is the class count used to decode the model output.
func (d *Detector) NumClasses() int {
	d.life.RLock()
	defer d.life.RUnlock()
	return d.numClasses
}

// CheckConfig reports the configuration with the resolved label list inline.
func (d *Detector) CheckConfig() iface.EngineConfig {
	cfg := d.cfg
	cfg.Names = iface.NamesConf{IsFile: false, Data: d.Labels()}
	return cfg
}

func (d *Detector) Stats() StatsSnapshot {
	return d.stats.Snapshot()
}

// Detect converts img to RGBA and runs it through the pipeline. It returns
// nil, nil when the detector is not ready or another frame is in flight.
func (d *Detector) Detect(ctx context.Context, img iface.ImageData) (*iface.DetectionResult, error) {
	if !d.enter() {
		return nil, nil
	}
	defer d.life.RUnlock()
	if !d.acquire() {
		return nil, nil
	}
	defer d.release()

	start := time.Now()
	rgba, w, h, err := preprocess.ToRGBA(img)
	if err != nil {
		d.observer.FrameFailed("preprocess")
		return nil, err
	}
	return d.run(ctx, rgba, w, h, start)
}

// DetectTensor is Detect for callers that already hold packed RGBA pixels.
func (d *Detector) DetectTensor(ctx context.Context, rgba []byte, width, height int) (*iface.DetectionResult, error) {
	if !d.enter() {
		return nil, nil
	}
	defer d.life.RUnlock()
	if !d.acquire() {
		return nil, nil
	}
	defer d.release()

	if width <= 0 || height <= 0 {
		d.observer.FrameFailed("preprocess")
		return nil, fmt.Errorf("%w: dimensions %dx%d", preprocess.ErrInvalidFrame, width, height)
	}
	return d.run(ctx, rgba, width, height, time.Now())
}

// enter takes the shared side of life without waiting. A pending Load or
// Destroy makes it fail, and the frame is dropped as not ready.
func (d *Detector) enter() bool {
	if d.life.TryRLock() {
		return true
	}
	d.observer.FrameDropped(DropNotReady)
	return false
}

func (d *Detector) acquire() bool {
	if d.state.CompareAndSwap(IDLE, BUSY) {
		return true
	}
	if d.state.Load() == BUSY {
		d.observer.FrameDropped(DropBusy)
	} else {
		d.observer.FrameDropped(DropNotReady)
	}
	return false
}

func (d *Detector) release() {
	d.state.CompareAndSwap(BUSY, IDLE)
}

func (d *Detector) run(ctx context.Context, rgba []byte, width, height int, start time.Time) (res *iface.DetectionResult, err error) {
	stage := "preprocess"
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("detection panicked", zap.String("id", d.ID), zap.String("stage", stage), zap.Any("panic", r))
			d.observer.FrameFailed(stage)
			res, err = nil, fmt.Errorf("%s panicked: %v", stage, r)
		}
	}()

	tensor, lb := preprocess.Preprocess(rgba, width, height, d.cfg.InputSize)
	preMs := msSince(start)

	stage = "inference"
	t := time.Now()
	output, err := d.infer(ctx, tensor)
	if err != nil {
		d.observer.FrameFailed(stage)
		return nil, fmt.Errorf("inference: %w", err)
	}
	inferMs := msSince(t)

	stage = "postprocess"
	t = time.Now()
	raw, err := postprocess.Decode(output, d.numClasses, d.cfg.Conf)
	if err != nil {
		d.observer.FrameFailed(stage)
		return nil, err
	}
	kept := postprocess.NMS(raw, d.cfg.Iou, d.cfg.MaxDetections)
	objects := postprocess.Remap(kept, lb, d.names)
	postMs := msSince(t)

	res = &iface.DetectionResult{
		Objects:           objects,
		PreprocessTimeMs:  preMs,
		InferenceTimeMs:   inferMs,
		PostprocessTimeMs: postMs,
		InputSize:         d.cfg.InputSize,
	}
	d.stats.Add(res.TotalTimeMs())
	d.observer.FrameProcessed(res)
	d.log.Debug("frame processed",
		zap.String("id", d.ID),
		zap.Int("candidates", len(raw)),
		zap.Int("objects", len(objects)),
		zap.Float64("totalMs", res.TotalTimeMs()))
	return res, nil
}

func (d *Detector) infer(ctx context.Context, tensor []float32) ([]float32, error) {
	if d.worker != nil {
		return d.worker.run(ctx, tensor)
	}
	return d.backend.Run(ctx, tensor)
}

// Destroy waits for any in-flight frame, stops the worker and closes the
// backend. The detector cannot be reused afterwards.
func (d *Detector) Destroy() error {
	d.life.Lock()
	defer d.life.Unlock()
	if d.state.Swap(UNREGISTERED) == UNREGISTERED {
		return nil
	}
	if d.worker != nil {
		d.worker.close()
		d.worker = nil
	}
	d.names = nil
	err := d.backend.Close()
	d.log.Info("detector destroyed", zap.String("id", d.ID), zap.Error(err))
	return err
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
