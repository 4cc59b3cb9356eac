package snippet

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a snippet exchange format.
type Format string

// Supported exchange formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ParseFormat validates a format name. Empty means JSON.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unknown snippet format %q (allowed: json, yaml, toml)", name)
	}
}

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) Format {
	lower := strings.ToLower(path)

	switch {
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		return FormatYAML
	case strings.HasSuffix(lower, ".toml"):
		return FormatTOML
	default:
		return FormatJSON
	}
}

// TOML has no top-level arrays.
type tomlDocument struct {
	Snippets []Snippet `toml:"snippet"`
}

// Export writes the library to w.
func (m *Manager) Export(w io.Writer, format Format) error {
	items := m.List()

	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if err := enc.Encode(items); err != nil {
			return fmt.Errorf("encode snippets: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(items); err != nil {
			return fmt.Errorf("encode snippets: %w", err)
		}

		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode snippets: %w", err)
		}
	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(tomlDocument{Snippets: items}); err != nil {
			return fmt.Errorf("encode snippets: %w", err)
		}
	default:
		return fmt.Errorf("unknown snippet format %q", format)
	}

	return nil
}

// Import reads snippets from r and adds each one. It returns how many were
// added or updated.
func (m *Manager) Import(r io.Reader, format Format) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read snippets: %w", err)
	}

	var items []Snippet

	switch format {
	case FormatJSON, "":
		err = json.Unmarshal(data, &items)
	case FormatYAML:
		err = yaml.Unmarshal(data, &items)
	case FormatTOML:
		var doc tomlDocument

		err = toml.Unmarshal(data, &doc)
		items = doc.Snippets
	default:
		return 0, fmt.Errorf("unknown snippet format %q", format)
	}

	if err != nil {
		return 0, fmt.Errorf("decode %s snippets: %w", format, err)
	}

	count := 0

	for _, item := range items {
		if _, addErr := m.Add(item.Name, item.Command); addErr != nil {
			return count, fmt.Errorf("import %q: %w", item.Name, addErr)
		}

		count++
	}

	return count, nil
}
