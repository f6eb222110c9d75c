package model

import (
	"log"
	"os"
	"sync"
)

// Registry owns the process-wide model handle. The first Get performs the
// load; sync.Once guarantees exactly one load under concurrent first access
// and every caller observes the same handle. A missing or corrupt artifact is
// logged and replaced by the fallback network rather than crashing the
// service.
type Registry struct {
	modelPath    string
	metadataPath string
	classes      []string

	once   sync.Once
	handle Handle
}

func NewRegistry(modelPath, metadataPath string, classes []string) *Registry {
	return &Registry{
		modelPath:    modelPath,
		metadataPath: metadataPath,
		classes:      classes,
	}
}

func (r *Registry) Get() Handle {
	r.once.Do(r.load)
	return r.handle
}

func (r *Registry) load() {
	if _, err := os.Stat(r.modelPath); err != nil {
		log.Printf("no model file at %s, using untrained fallback network", r.modelPath)
		r.handle = newFallbackNet(r.classes)
		return
	}

	h, err := newONNXHandle(r.modelPath, r.metadataPath)
	if err != nil {
		log.Printf("failed to load model from %s, falling back: %v", r.modelPath, err)
		r.handle = newFallbackNet(r.classes)
		return
	}
	log.Printf("loaded trained model from %s (%d classes)", r.modelPath, len(h.Classes()))
	r.handle = h
}

// Close releases the loaded handle, if it holds native resources.
func (r *Registry) Close() {
	if c, ok := r.handle.(*onnxHandle); ok {
		c.Close()
	}
}
