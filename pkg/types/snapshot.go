package types

// Snapshot is the game_status payload produced by the bundled arena engine.
//   type: "game_status"
//   ball: { x, y }
//   paddles: [ y1, y2 ]
//   score: [ s1, s2 ]
//   tick: number
type Snapshot struct {
	Type    string     `json:"type"`
	Tick    int        `json:"tick"`
	Ball    Point      `json:"ball"`
	Paddles [2]float64 `json:"paddles"`
	Score   [2]int     `json:"score"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
