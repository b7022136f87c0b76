package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Service is a bookable offering.
type Service struct {
	ID              int      `toml:"id" json:"id"`
	Name            string   `toml:"name" json:"name"`
	Emoji           string   `toml:"emoji" json:"emoji"`
	Description     string   `toml:"description" json:"description"`
	Aliases         []string `toml:"aliases" json:"aliases"`
	DurationMinutes int      `toml:"duration_minutes" json:"duration_minutes"`
	Price           int      `toml:"price" json:"price"`
}

// StaffMember is a barber whose bookings live in their own calendar.
type StaffMember struct {
	ID          int    `toml:"id" json:"id"`
	Name        string `toml:"name" json:"name"`
	Emoji       string `toml:"emoji" json:"emoji"`
	CalendarKey string `toml:"calendar_key" json:"calendar_key"`
}

// Catalog is the immutable set of services and staff the bot offers.
type Catalog struct {
	Services []Service     `toml:"services" json:"services"`
	Staff    []StaffMember `toml:"staff" json:"staff"`
}

// Default returns the shop's built-in catalog.
func Default() *Catalog {
	return &Catalog{
		Services: []Service{
			{
				ID:              1,
				Name:            "Corte de cabello",
				Emoji:           "✂️",
				Description:     "Corte desvanecido y corte con tijera arriba",
				Aliases:         []string{"corte", "corte sencillo", "corte normal", "solo corte de cabello", "corte de pelo", "corte básico", "corte de cabello"},
				DurationMinutes: 30,
				Price:           20000,
			},
			{
				ID:              2,
				Name:            "Corte con barba",
				Emoji:           "🧔",
				Description:     "Corte completo con desvanecido, tijera arriba, diseño y perfilación de barba",
				Aliases:         []string{"corte y barba", "corte completo", "corte con perfilado de barba", "corte con barba", "corte + barba"},
				DurationMinutes: 45,
				Price:           25000,
			},
			{
				ID:              3,
				Name:            "Servicio sencillo",
				Emoji:           "🪒",
				Description:     "Marcarse la barba, hacerse unas bases a los lados, marcarse el cerquillo",
				Aliases:         []string{"servicio sencillo", "marcar barba", "bases", "perfilado rápido", "retoque", "servicio básico", "solo barba"},
				DurationMinutes: 15,
				Price:           12000,
			},
		},
		Staff: []StaffMember{
			{ID: 1, Name: "Mauricio", Emoji: "👨‍💼", CalendarKey: "Citas - Mauricio"},
			{ID: 2, Name: "Stiven", Emoji: "👨‍💼", CalendarKey: "Citas - Stiven"},
		},
	}
}

// Validate checks the catalog is usable by the booking flow.
func (c *Catalog) Validate() error {
	if c == nil {
		return errors.New("catalog: nil catalog")
	}
	if len(c.Services) == 0 {
		return errors.New("catalog: at least one service is required")
	}
	if len(c.Staff) == 0 {
		return errors.New("catalog: at least one staff member is required")
	}
	seen := make(map[int]bool, len(c.Services))
	for _, s := range c.Services {
		if s.ID <= 0 || seen[s.ID] {
			return fmt.Errorf("catalog: invalid or duplicate service id %d", s.ID)
		}
		seen[s.ID] = true
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("catalog: service %d has no name", s.ID)
		}
		if s.DurationMinutes <= 0 {
			return fmt.Errorf("catalog: service %q needs a positive duration", s.Name)
		}
		if s.Price < 0 {
			return fmt.Errorf("catalog: service %q has a negative price", s.Name)
		}
	}
	seen = make(map[int]bool, len(c.Staff))
	keys := make(map[string]bool, len(c.Staff))
	for _, m := range c.Staff {
		if m.ID <= 0 || seen[m.ID] {
			return fmt.Errorf("catalog: invalid or duplicate staff id %d", m.ID)
		}
		seen[m.ID] = true
		if strings.TrimSpace(m.CalendarKey) == "" {
			return fmt.Errorf("catalog: staff %q has no calendar key", m.Name)
		}
		if keys[m.CalendarKey] {
			return fmt.Errorf("catalog: calendar key %q used twice", m.CalendarKey)
		}
		keys[m.CalendarKey] = true
	}
	return nil
}

// ServiceByID returns the service with the given id.
func (c *Catalog) ServiceByID(id int) (Service, bool) {
	for _, s := range c.Services {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}

// StaffByID returns the staff member with the given id.
func (c *Catalog) StaffByID(id int) (StaffMember, bool) {
	for _, m := range c.Staff {
		if m.ID == id {
			return m, true
		}
	}
	return StaffMember{}, false
}

// StaffByCalendarKey maps a calendar key back to its owner.
func (c *Catalog) StaffByCalendarKey(key string) (StaffMember, bool) {
	for _, m := range c.Staff {
		if m.CalendarKey == key {
			return m, true
		}
	}
	return StaffMember{}, false
}

// StaffByName matches a display name ignoring case and accents.
func (c *Catalog) StaffByName(name string) (StaffMember, bool) {
	want := Fold(name)
	for _, m := range c.Staff {
		if Fold(m.Name) == want {
			return m, true
		}
	}
	return StaffMember{}, false
}

// ServiceByName matches a display name or alias ignoring case and accents.
func (c *Catalog) ServiceByName(name string) (Service, bool) {
	want := Fold(name)
	if want == "" {
		return Service{}, false
	}
	for _, s := range c.Services {
		if Fold(s.Name) == want {
			return s, true
		}
		for _, a := range s.Aliases {
			if Fold(a) == want {
				return s, true
			}
		}
	}
	return Service{}, false
}

// MatchService picks a service from free text. A numeric option selects by
// id, an exact alias wins outright, otherwise the longest alias contained in
// the text is chosen so "corte con barba" beats "corte".
func (c *Catalog) MatchService(text string) (Service, bool) {
	folded := Fold(text)
	if folded == "" {
		return Service{}, false
	}
	if id, err := strconv.Atoi(folded); err == nil {
		return c.ServiceByID(id)
	}

	var best Service
	bestLen := 0
	for _, s := range c.Services {
		candidates := append([]string{s.Name}, s.Aliases...)
		for _, alias := range candidates {
			a := Fold(alias)
			if a == "" {
				continue
			}
			if folded == a {
				return s, true
			}
			if containsPhrase(folded, a) && len(a) > bestLen {
				best = s
				bestLen = len(a)
			}
		}
	}
	return best, bestLen > 0
}

// MatchStaff picks a staff member by option number or by a name mentioned
// anywhere in the text.
func (c *Catalog) MatchStaff(text string) (StaffMember, bool) {
	folded := Fold(text)
	if folded == "" {
		return StaffMember{}, false
	}
	if id, err := strconv.Atoi(folded); err == nil {
		return c.StaffByID(id)
	}
	for _, m := range c.Staff {
		if containsPhrase(folded, Fold(m.Name)) {
			return m, true
		}
	}
	return StaffMember{}, false
}

// ServiceAliases lists every alias, used to prime the NLU prompt.
func (c *Catalog) ServiceAliases() []string {
	var out []string
	for _, s := range c.Services {
		out = append(out, s.Aliases...)
	}
	return out
}

// StaffNames lists staff display names in catalog order.
func (c *Catalog) StaffNames() []string {
	out := make([]string, 0, len(c.Staff))
	for _, m := range c.Staff {
		out = append(out, m.Name)
	}
	return out
}

// ServiceNames lists service display names in catalog order.
func (c *Catalog) ServiceNames() []string {
	out := make([]string, 0, len(c.Services))
	for _, s := range c.Services {
		out = append(out, s.Name)
	}
	return out
}
