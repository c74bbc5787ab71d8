// Package characters defines the character records consumed by the ML
// models and provides loading/watching of the exported character data.
package characters

import "fmt"

// DefaultDifficulty is used when a record carries no difficulty score.
const DefaultDifficulty = 5.0

// UnknownCategory is the default for absent categorical fields.
const UnknownCategory = "Unknown"

// Character is a single guessable character as exported by the game's
// character store. All fields except ID are optional; accessors apply
// the documented defaults so callers never see missing values.
type Character struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Quote       string   `json:"quote"`
	Description string   `json:"description"`
	Source      string   `json:"source"`
	Universe    string   `json:"universe"`
	Genre       string   `json:"genre"`
	Powers      []string `json:"powers"`
	Aliases     []string `json:"aliases"`
	Alignment   string   `json:"alignment"`

	// Difficulty is a 0-10 score. A nil pointer means the record
	// carries no score and DefaultDifficulty applies.
	Difficulty *float64 `json:"difficulty,omitempty"`
}

// DifficultyOrDefault returns the difficulty score, applying the
// default for records without one.
func (c *Character) DifficultyOrDefault() float64 {
	if c.Difficulty == nil {
		return DefaultDifficulty
	}
	return *c.Difficulty
}

// UniverseOrUnknown returns the universe label, defaulting absent
// values to "Unknown".
func (c *Character) UniverseOrUnknown() string {
	if c.Universe == "" {
		return UnknownCategory
	}
	return c.Universe
}

// GenreOrUnknown returns the genre label, defaulting absent values to
// "Unknown".
func (c *Character) GenreOrUnknown() string {
	if c.Genre == "" {
		return UnknownCategory
	}
	return c.Genre
}

// Validate checks that the record carries the fields required for
// training.
func (c *Character) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("character record missing required field %q", "id")
	}
	return nil
}
