// Package render has renderers that stand in for the LED matrix.
package render

import (
	"context"
	"fmt"
	"sync"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/content"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/ports"

	log "github.com/sirupsen/logrus"
)

// LogRenderer writes each frame to the logger. It keeps the most recent frame
// for the status endpoint.
type LogRenderer struct {
	logger log.FieldLogger

	mu   sync.RWMutex
	kind content.Kind
	last content.Frame
}

func NewLogRenderer(logger log.FieldLogger) *LogRenderer {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &LogRenderer{logger: logger}
}

func (r *LogRenderer) Render(ctx context.Context, canvas ports.Canvas, item content.Item, frame content.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.kind, r.last = item.Kind(), frame
	r.mu.Unlock()
	r.logger.WithFields(log.Fields{
		"kind":   item.Kind().String(),
		"canvas": canvasSize(canvas),
	}).Info(frame.String())
	return nil
}

// Transition logs the change between two frames.
func (r *LogRenderer) Transition(ctx context.Context, _ ports.Canvas, from, to content.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.logger.WithFields(log.Fields{"from": from.String(), "to": to.String()}).Debug("transition")
	return nil
}

// Last returns the kind and frame most recently rendered.
func (r *LogRenderer) Last() (content.Kind, content.Frame) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.kind, r.last
}

func canvasSize(c ports.Canvas) string {
	if c.Width == 0 || c.Height == 0 {
		return "unsized"
	}
	return fmt.Sprintf("%dx%d", c.Width, c.Height)
}
