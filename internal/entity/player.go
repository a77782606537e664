package entity

// Player binds a connection to the game it plays in.
type Player struct {
	ID     string `json:"id"`
	GameID string `json:"game_id,omitempty"`
}
