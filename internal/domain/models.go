package domain

// RNG abstracts random number generation for deterministic testing.
type RNG interface {
	// Intn returns a non-negative random int in [0, n).
	Intn(n int) int
}

// Orientation represents the orientation of a drawn tarot card.
type Orientation string

const (
	Upright  Orientation = "upright"
	Reversed Orientation = "reversed"
)

// Card represents a single tarot card in a deck.
type Card struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Arcana   string   `json:"arcana"`
	Keywords []string `json:"keywords"`
	Light    []string `json:"light"`
	Shadow   []string `json:"shadow"`
	Short    string   `json:"short"`
}

// DrawnCard is a card that has been drawn into a spread position.
type DrawnCard struct {
	Card
	Position      int         `json:"position"`
	PositionLabel string      `json:"position_label"`
	Orientation   Orientation `json:"orientation"`
}

// Deck is a collection of tarot cards.
type Deck struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Cards []Card `json:"cards"`
}
