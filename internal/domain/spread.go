package domain

import "strings"

// SpreadType identifies one of the supported spread layouts.
type SpreadType string

const (
	SpreadSingleCard   SpreadType = "single_card"
	SpreadThreeCards   SpreadType = "three_cards"
	SpreadHorseshoe    SpreadType = "horseshoe"
	SpreadLoveTriangle SpreadType = "love_triangle"
	SpreadCelticCross  SpreadType = "celtic_cross"
	SpreadWeekForecast SpreadType = "week_forecast"
	SpreadYearWheel    SpreadType = "year_wheel"
)

// Layout describes a spread: its display name and the fixed position labels,
// in drawing order. The number of labels is the number of cards drawn.
type Layout struct {
	Type      SpreadType
	Name      string
	Positions []string
	// MaxQuestions caps how many clarifying questions the pipeline may ask
	// for this spread.
	MaxQuestions int
}

var layouts = map[SpreadType]Layout{
	SpreadSingleCard: {
		Type:         SpreadSingleCard,
		Name:         "Single Card",
		Positions:    []string{"The Essence"},
		MaxQuestions: 2,
	},
	SpreadThreeCards: {
		Type:         SpreadThreeCards,
		Name:         "Three Cards",
		Positions:    []string{"Past", "Present", "Future"},
		MaxQuestions: 3,
	},
	SpreadHorseshoe: {
		Type: SpreadHorseshoe,
		Name: "Horseshoe",
		Positions: []string{
			"Past", "Present", "Hidden Influences", "Obstacles",
			"Environment", "Advice", "Outcome",
		},
		MaxQuestions: 4,
	},
	SpreadLoveTriangle: {
		Type: SpreadLoveTriangle,
		Name: "Love Triangle",
		Positions: []string{
			"You", "The Other", "The Bond",
			"What Divides", "What Unites", "Direction",
		},
		MaxQuestions: 5,
	},
	SpreadCelticCross: {
		Type: SpreadCelticCross,
		Name: "Celtic Cross",
		Positions: []string{
			"Present", "Challenge", "Distant Past", "Recent Past",
			"Best Outcome", "Near Future", "Self", "Environment",
			"Hopes and Fears", "Final Outcome",
		},
		MaxQuestions: 6,
	},
	SpreadWeekForecast: {
		Type: SpreadWeekForecast,
		Name: "Week Forecast",
		Positions: []string{
			"Monday", "Tuesday", "Wednesday", "Thursday",
			"Friday", "Saturday", "Sunday",
		},
		MaxQuestions: 4,
	},
	SpreadYearWheel: {
		Type: SpreadYearWheel,
		Name: "Year Wheel",
		Positions: []string{
			"January", "February", "March", "April", "May", "June",
			"July", "August", "September", "October", "November", "December",
		},
		MaxQuestions: 5,
	},
}

// LayoutFor returns the layout for a spread type.
func LayoutFor(t SpreadType) (Layout, error) {
	l, ok := layouts[t]
	if !ok {
		return Layout{}, ErrUnknownSpread
	}
	return l, nil
}

// SpreadTypes lists the supported spread types.
func SpreadTypes() []SpreadType {
	return []SpreadType{
		SpreadSingleCard, SpreadThreeCards, SpreadHorseshoe,
		SpreadLoveTriangle, SpreadCelticCross, SpreadWeekForecast,
		SpreadYearWheel,
	}
}

// Spread is the result of drawing cards for a layout. Immutable after
// creation; one reading owns exactly one spread.
type Spread struct {
	Type  SpreadType  `json:"type"`
	Name  string      `json:"name"`
	Cards []DrawnCard `json:"cards"`
}

// Key returns a stable identifier for the spread's card/position tuple,
// used as the render cache key.
func (s Spread) Key() string {
	var b strings.Builder
	b.WriteString(string(s.Type))
	for _, c := range s.Cards {
		b.WriteByte('|')
		b.WriteString(c.ID)
		b.WriteByte(':')
		b.WriteString(string(c.Orientation))
	}
	return b.String()
}

// GenerateSpread draws unique cards from deck for the given layout using the
// provided RNG. Positions are 1-based and carry the layout's labels.
// Orientation is 50/50 upright/reversed.
func GenerateSpread(deck Deck, spreadType SpreadType, rng RNG) (Spread, error) {
	layout, err := LayoutFor(spreadType)
	if err != nil {
		return Spread{}, err
	}
	n := len(layout.Positions)
	if n > len(deck.Cards) {
		return Spread{}, ErrDeckTooSmall
	}

	// Fisher-Yates partial shuffle: only need first n elements.
	indices := make([]int, len(deck.Cards))
	for i := range indices {
		indices[i] = i
	}
	for i := len(indices) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		indices[i], indices[j] = indices[j], indices[i]
	}

	cards := make([]DrawnCard, n)
	for i := range n {
		orientation := Upright
		if rng.Intn(2) == 1 {
			orientation = Reversed
		}
		cards[i] = DrawnCard{
			Card:          deck.Cards[indices[i]],
			Position:      i + 1,
			PositionLabel: layout.Positions[i],
			Orientation:   orientation,
		}
	}

	return Spread{
		Type:  spreadType,
		Name:  layout.Name,
		Cards: cards,
	}, nil
}
