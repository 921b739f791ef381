package ports

import (
	"context"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/content"
)

// Canvas is the fixed-size pixel surface content is drawn on.
type Canvas struct {
	Width  int
	Height int
}

// Renderer draws a composed frame. It returns once the frame is on screen;
// how long it stays there is the item's business.
type Renderer interface {
	Render(ctx context.Context, canvas Canvas, item content.Item, frame content.Frame) error
}

// Transitioner optionally bridges two consecutive frames with an animation.
type Transitioner interface {
	Transition(ctx context.Context, canvas Canvas, from, to content.Frame) error
}
