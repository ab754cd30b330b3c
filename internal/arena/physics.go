package arena

import "math"

// Rules sizes the field in abstract units; only ratios matter to clients.
type Rules struct {
	Width        float64
	Height       float64
	PaddleHeight float64
	PaddleInset  float64
	PaddleSpeed  float64 // per tick
	BallSpeed    float64 // per tick, horizontal component at serve
	MaxBallSpeed float64
	ScoreLimit   int
}

func DefaultRules(scoreLimit int) Rules {
	return Rules{
		Width:        100,
		Height:       60,
		PaddleHeight: 12,
		PaddleInset:  2,
		PaddleSpeed:  1.5,
		BallSpeed:    1,
		MaxBallSpeed: 3,
		ScoreLimit:   scoreLimit,
	}
}

type EventType string

const (
	EvtNone     EventType = ""
	EvtPaddle   EventType = "paddle_hit"
	EvtPoint    EventType = "point"
	EvtGameOver EventType = "game_over"
)

// Event reports what a single Step did. Player is the 0-based index of the
// paddle that hit, scored, or won.
type Event struct {
	Type   EventType
	Player int
}

// World is one frame of a match. Step never mutates its input.
type World struct {
	Tick    int
	Ball    Vec
	Vel     Vec
	Paddles [2]float64
	Dirs    [2]Direction
	Score   [2]int
}

type Vec struct{ X, Y float64 }

// NewWorld centres everything and serves toward player 2.
func NewWorld(r Rules) World {
	w := World{Paddles: [2]float64{r.Height / 2, r.Height / 2}}
	w.serve(r, 1)
	return w
}

func (w *World) serve(r Rules, toward float64) {
	w.Ball = Vec{X: r.Width / 2, Y: r.Height / 2}
	w.Vel = Vec{X: toward * r.BallSpeed, Y: r.BallSpeed / 2}
}

func Step(w World, r Rules) (World, Event) {
	w.Tick++

	half := r.PaddleHeight / 2
	for i := range w.Paddles {
		y := w.Paddles[i] + float64(w.Dirs[i])*r.PaddleSpeed
		w.Paddles[i] = math.Min(math.Max(y, half), r.Height-half)
	}

	w.Ball.X += w.Vel.X
	w.Ball.Y += w.Vel.Y

	switch {
	case w.Ball.Y < 0:
		w.Ball.Y = -w.Ball.Y
		w.Vel.Y = -w.Vel.Y
	case w.Ball.Y > r.Height:
		w.Ball.Y = 2*r.Height - w.Ball.Y
		w.Vel.Y = -w.Vel.Y
	}

	left, right := r.PaddleInset, r.Width-r.PaddleInset
	switch {
	case w.Vel.X < 0 && w.Ball.X <= left:
		return w.edge(r, 0, left, 1)
	case w.Vel.X > 0 && w.Ball.X >= right:
		return w.edge(r, 1, right, -1)
	}
	return w, Event{Type: EvtNone}
}

// edge resolves the ball reaching player p's goal line at x. bounce is the
// sign of the outgoing horizontal velocity on a hit.
func (w World) edge(r Rules, p int, x, bounce float64) (World, Event) {
	half := r.PaddleHeight / 2
	offset := w.Ball.Y - w.Paddles[p]
	if math.Abs(offset) <= half {
		w.Ball.X = x
		speed := math.Min(math.Abs(w.Vel.X)*1.05, r.MaxBallSpeed)
		w.Vel.X = bounce * speed
		if half > 0 {
			w.Vel.Y += offset / half * r.BallSpeed / 2
		}
		return w, Event{Type: EvtPaddle, Player: p}
	}

	scorer := 1 - p
	w.Score[scorer]++
	if w.Score[scorer] >= r.ScoreLimit {
		return w, Event{Type: EvtGameOver, Player: scorer}
	}
	// The side that conceded receives the next serve.
	w.serve(r, -bounce)
	return w, Event{Type: EvtPoint, Player: scorer}
}
