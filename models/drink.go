package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Ingredient is one layer of a drink recipe
type Ingredient struct {
	Name  string `json:"name" validate:"required,notblank,max=80"`
	Color string `json:"color" validate:"required,notblank,max=40"`
	Parts int    `json:"parts" validate:"gte=1,lte=100"`
}

// ShortIngredient is the public view of an ingredient: what a customer sees on the menu
type ShortIngredient struct {
	Color string `json:"color"`
	Parts int    `json:"parts"`
}

// Recipe is an ordered list of ingredients stored as a JSON column.
// A single ingredient object is accepted wherever a list is expected.
type Recipe []Ingredient

// UnmarshalJSON accepts either a list of ingredients or a single ingredient object
func (r *Recipe) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*r = nil
		return nil
	}

	if len(trimmed) > 0 && trimmed[0] == '{' {
		var single Ingredient
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		*r = Recipe{single}
		return nil
	}

	var list []Ingredient
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return err
	}
	*r = list
	return nil
}

// Value implements driver.Valuer
func (r Recipe) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Ingredient(r))
}

// Scan implements sql.Scanner
func (r *Recipe) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*r = Recipe{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Recipe", src)
	}
	return r.UnmarshalJSON(data)
}

// Short returns the color/parts projection of every ingredient
func (r Recipe) Short() []ShortIngredient {
	short := make([]ShortIngredient, 0, len(r))
	for _, ingredient := range r {
		short = append(short, ShortIngredient{Color: ingredient.Color, Parts: ingredient.Parts})
	}
	return short
}

// Drink represents a menu item
type Drink struct {
	ID     int64  `json:"id" db:"id"`
	Title  string `json:"title" db:"title"`
	Recipe Recipe `json:"recipe" db:"recipe"`
}

// DrinkShort is the public representation of a drink
type DrinkShort struct {
	ID     int64             `json:"id"`
	Title  string            `json:"title"`
	Recipe []ShortIngredient `json:"recipe"`
}

// ErrInvalidDrink is returned by Drink.Validate
var ErrInvalidDrink = errors.New("invalid drink")

// MaxTitleLength is the longest title the drinks table accepts
const MaxTitleLength = 80

// TableName returns the table name for the Drink model
func (Drink) TableName() string {
	return "drinks"
}

// NewDrink creates a new, unsaved Drink
func NewDrink(title string, recipe Recipe) *Drink {
	return &Drink{
		Title:  strings.TrimSpace(title),
		Recipe: recipe,
	}
}

// Short returns the public representation
func (d *Drink) Short() DrinkShort {
	return DrinkShort{
		ID:     d.ID,
		Title:  d.Title,
		Recipe: d.Recipe.Short(),
	}
}

// Long returns the full representation including ingredient names
func (d *Drink) Long() *Drink {
	return d
}

// Validate checks the invariants enforced by the drinks table
func (d *Drink) Validate() error {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidDrink)
	}
	if len(title) > MaxTitleLength {
		return fmt.Errorf("%w: title must be at most %d characters", ErrInvalidDrink, MaxTitleLength)
	}
	if len(d.Recipe) == 0 {
		return fmt.Errorf("%w: recipe must contain at least one ingredient", ErrInvalidDrink)
	}
	for i, ingredient := range d.Recipe {
		if strings.TrimSpace(ingredient.Name) == "" || strings.TrimSpace(ingredient.Color) == "" {
			return fmt.Errorf("%w: recipe[%d] needs a name and a color", ErrInvalidDrink, i)
		}
		if ingredient.Parts < 1 {
			return fmt.Errorf("%w: recipe[%d] parts must be at least 1", ErrInvalidDrink, i)
		}
	}
	return nil
}
