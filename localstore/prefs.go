package localstore

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	ThemeKey          = "theme"
	DailySalesGoalKey = "daily_sales_goal"
)

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeSystem
}

// Preferences are per-device settings kept next to the acknowledgements.
type Preferences struct {
	store *Store
}

func NewPreferences(store *Store) *Preferences {
	return &Preferences{store: store}
}

// Theme returns the chosen theme, ThemeSystem when unset.
func (p *Preferences) Theme() (Theme, error) {
	var t Theme
	ok, err := p.store.Get(ThemeKey, &t)
	if err != nil {
		return ThemeSystem, err
	}
	if !ok || !t.Valid() {
		return ThemeSystem, nil
	}
	return t, nil
}

func (p *Preferences) SetTheme(t Theme) error {
	if !t.Valid() {
		return fmt.Errorf("unknown theme %q", t)
	}
	return p.store.Set(ThemeKey, t)
}

// DailySalesGoal returns the goal, zero when unset.
func (p *Preferences) DailySalesGoal() (decimal.Decimal, error) {
	var goal decimal.Decimal
	ok, err := p.store.Get(DailySalesGoalKey, &goal)
	if err != nil || !ok {
		return decimal.Zero, err
	}
	return goal, nil
}

func (p *Preferences) SetDailySalesGoal(goal decimal.Decimal) error {
	if goal.IsNegative() {
		return fmt.Errorf("daily sales goal must not be negative")
	}
	return p.store.Set(DailySalesGoalKey, goal)
}
