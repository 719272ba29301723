package terminal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dnldd/mtbridge/shared"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Record represents a single configured terminal.
type Record struct {
	// ID is the unique terminal identifier.
	ID string
	// Symbol is the instrument served by the terminal.
	Symbol string
	// Credentials are the resolved terminal login details.
	Credentials shared.Credentials
}

// rawRecord is a terminal record before placeholder resolution.
type rawRecord struct {
	ID       string `yaml:"id"`
	Symbol   string `yaml:"symbol"`
	Server   string `yaml:"server"`
	Login    string `yaml:"login"`
	Password string `yaml:"password"`
}

// resolveEnv replaces a value of the form ${NAME} with the NAME environment variable.
//
// Unset variables resolve to an empty string.
func resolveEnv(value string) string {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		return os.Getenv(value[2 : len(value)-1])
	}

	return value
}

// parseJSONRecords parses terminal records from json of the form {"terminals":[...]}.
func parseJSONRecords(data []byte) ([]rawRecord, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed json terminal list", shared.ErrInvalidConfig)
	}

	terminals := gjson.GetBytes(data, "terminals")
	if !terminals.IsArray() {
		return nil, fmt.Errorf("%w: no terminals array found", shared.ErrInvalidConfig)
	}

	entries := terminals.Array()
	records := make([]rawRecord, 0, len(entries))
	for idx := range entries {
		entry := entries[idx]
		records = append(records, rawRecord{
			ID:       entry.Get("id").String(),
			Symbol:   entry.Get("symbol").String(),
			Server:   entry.Get("server").String(),
			Login:    entry.Get("login").String(),
			Password: entry.Get("password").String(),
		})
	}

	return records, nil
}

// parseYAMLRecords parses terminal records from yaml with a top level terminals list.
func parseYAMLRecords(data []byte) ([]rawRecord, error) {
	var doc struct {
		Terminals []rawRecord `yaml:"terminals"`
	}

	err := yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed yaml terminal list: %v", shared.ErrInvalidConfig, err)
	}

	return doc.Terminals, nil
}

// ParseRecords parses and validates terminal records in the provided format ("json" or "yaml").
func ParseRecords(data []byte, format string) ([]Record, error) {
	var raw []rawRecord
	var err error

	switch format {
	case "json":
		raw, err = parseJSONRecords(data)
	case "yaml", "yml":
		raw, err = parseYAMLRecords(data)
	default:
		return nil, fmt.Errorf("%w: unsupported terminal list format %q", shared.ErrInvalidConfig, format)
	}
	if err != nil {
		return nil, err
	}

	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: terminal list is empty", shared.ErrInvalidConfig)
	}

	var errs error
	ids := make(map[string]struct{}, len(raw))
	symbols := make(map[string]struct{}, len(raw))
	records := make([]Record, 0, len(raw))
	for idx, r := range raw {
		rec := Record{
			ID:     resolveEnv(r.ID),
			Symbol: resolveEnv(r.Symbol),
			Credentials: shared.Credentials{
				Server:   resolveEnv(r.Server),
				Password: resolveEnv(r.Password),
			},
		}

		if rec.ID == "" {
			errs = errors.Join(errs, fmt.Errorf("terminal at index %d has no id", idx))
		}
		if _, ok := ids[rec.ID]; ok && rec.ID != "" {
			errs = errors.Join(errs, fmt.Errorf("duplicate terminal id %q", rec.ID))
		}
		ids[rec.ID] = struct{}{}

		if rec.Symbol == "" {
			errs = errors.Join(errs, fmt.Errorf("terminal %q has no symbol", rec.ID))
		}
		if _, ok := symbols[rec.Symbol]; ok && rec.Symbol != "" {
			errs = errors.Join(errs, fmt.Errorf("symbol %q is served by more than one terminal", rec.Symbol))
		}
		symbols[rec.Symbol] = struct{}{}

		if rec.Credentials.Server == "" {
			errs = errors.Join(errs, fmt.Errorf("terminal %q has no server", rec.ID))
		}

		login, err := strconv.ParseUint(resolveEnv(r.Login), 10, 64)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("terminal %q has an invalid login: %v", rec.ID, err))
		}
		rec.Credentials.Login = login

		records = append(records, rec)
	}
	if errs != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidConfig, errs)
	}

	return records, nil
}

// LoadRecords loads terminal records from the provided file path.
//
// The format is derived from the file extension, defaulting to json.
func LoadRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading terminal list from '%s': %v", shared.ErrInvalidConfig, path, err)
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format != "yaml" && format != "yml" {
		format = "json"
	}

	return ParseRecords(data, format)
}
