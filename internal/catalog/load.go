package catalog

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// LoadFile reads a TOML catalog. Sections left out of the file keep the
// built-in defaults; an empty path returns Default().
//
//	[[services]]
//	id = 1
//	name = "Corte de cabello"
//	duration_minutes = 30
//	price = 20000
//
//	[[staff]]
//	id = 1
//	name = "Mauricio"
//	calendar_key = "Citas - Mauricio"
func LoadFile(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a TOML catalog document.
func Parse(raw []byte) (*Catalog, error) {
	var file Catalog
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("catalog: decode toml: %w", err)
	}
	def := Default()
	if len(file.Services) == 0 {
		file.Services = def.Services
	}
	if len(file.Staff) == 0 {
		file.Staff = def.Staff
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// Marshal renders the catalog as TOML.
func (c *Catalog) Marshal() ([]byte, error) {
	out, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("catalog: encode toml: %w", err)
	}
	return out, nil
}

// FormatPrice renders a peso amount with Colombian thousands separators.
func FormatPrice(amount int) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := strconv.Itoa(amount)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
