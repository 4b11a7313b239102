package engine

import (
	"YoloDetServer/logger"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Info is the externally visible view of a registered detector.
type Info struct {
	ID          string        `json:"id"`
	Description string        `json:"description"`
	ModelPath   string        `json:"modelPath"`
	InputSize   int           `json:"inputSize"`
	Confidence  float32       `json:"confidence"`
	Iou         float32       `json:"iou"`
	Classes     int           `json:"classes"`
	Labels      []string      `json:"labels"`
	State       string        `json:"state"`
	Stats       StatsSnapshot `json:"stats"`
}

// Registry holds every live detector keyed by a generated id. It is shared by
// the gRPC and HTTP transports.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]*Detector
}

func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]*Detector)}
}

// Add assigns d a fresh id and registers it.
func (r *Registry) Add(d *Detector) string {
	id := uuid.NewString()
	d.ID = id
	r.mu.Lock()
	r.engines[id] = d
	r.mu.Unlock()
	logger.Log().Info("detector added", zap.String("id", id), zap.String("description", d.cfg.Description))
	return id
}

func (r *Registry) Get(id string) (*Detector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.engines[id]
	return d, ok
}

// Remove unregisters and destroys the detector.
func (r *Registry) Remove(id string) (bool, error) {
	r.mu.Lock()
	d, ok := r.engines[id]
	delete(r.engines, id)
	r.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, d.Destroy()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.engines)
}

func (r *Registry) Info(id string) (Info, bool) {
	d, ok := r.Get(id)
	if !ok {
		return Info{}, false
	}
	return d.Info(), true
}

// List returns every detector sorted by id.
func (r *Registry) List() []Info {
	r.mu.RLock()
	all := make([]*Detector, 0, len(r.engines))
	for _, d := range r.engines {
		all = append(all, d)
	}
	r.mu.RUnlock()

	infos := make([]Info, 0, len(all))
	for _, d := range all {
		infos = append(infos, d.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// DestroyAll removes and destroys every detector, logging failures.
func (r *Registry) DestroyAll() {
	r.mu.Lock()
	all := r.engines
	r.engines = make(map[string]*Detector)
	r.mu.Unlock()
	for id, d := range all {
		if err := d.Destroy(); err != nil {
			logger.Log().Error("destroy detector", zap.String("id", id), zap.Error(err))
		}
	}
}

func (d *Detector) Info() Info {
	return Info{
		ID:          d.ID,
		Description: d.cfg.Description,
		ModelPath:   d.cfg.ModelPath,
		InputSize:   d.cfg.InputSize,
		Confidence:  d.cfg.Conf,
		Iou:         d.cfg.Iou,
		Classes:     d.NumClasses(),
		Labels:      d.Labels(),
		State:       StateName(d.State()),
		Stats:       d.Stats(),
	}
}
