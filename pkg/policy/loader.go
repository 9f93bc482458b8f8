package policy

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Loader reads policies from files and directories.
type Loader struct {
	logger zerolog.Logger
}

// NewLoader creates a new policy loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger: logger.With().Str("component", "policy-loader").Logger(),
	}
}

// LoadFromPaths loads policies from a list of file or directory paths.
// Missing paths are skipped.
func (l *Loader) LoadFromPaths(paths []string) ([]Policy, error) {
	var all []Policy

	for _, path := range paths {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			l.logger.Debug().Str("path", path).Msg("Policy path does not exist")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		if info.IsDir() {
			policies, err := l.loadFromDirectory(path)
			if err != nil {
				return nil, err
			}
			all = append(all, policies...)
			continue
		}

		p, err := l.loadFromFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, *p)
	}

	l.logger.Debug().
		Int("total", len(all)).
		Int("sources", len(paths)).
		Msg("Policies loaded from paths")

	return all, nil
}

// loadFromDirectory loads every .rego and .json file below dir. A file that
// fails to load is an error rather than a skipped policy.
func (l *Loader) loadFromDirectory(dir string) ([]Policy, error) {
	var policies []Policy

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := filepath.Ext(path); ext != ".rego" && ext != ".json" {
			return nil
		}

		p, err := l.loadFromFile(path)
		if err != nil {
			return err
		}
		policies = append(policies, *p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load policies from %s: %w", dir, err)
	}

	return policies, nil
}

func (l *Loader) loadFromFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy: %w", err)
	}

	var p *Policy
	switch filepath.Ext(path) {
	case ".rego":
		p = parseRegoFile(path, data)
	case ".json":
		p, err = parseJSONFile(path, data)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported policy file: %s", path)
	}
	if err := p.Severity.Validate(); err != nil {
		return nil, fmt.Errorf("policy %s: %w", p.Name, err)
	}

	l.logger.Debug().
		Str("path", path).
		Str("policy", p.Name).
		Msg("Policy loaded from file")

	return p, nil
}

// parseRegoFile names the policy after the file. Leading comments become
// the description and a "# severity: <level>" comment sets the severity.
func parseRegoFile(path string, data []byte) *Policy {
	p := &Policy{
		Name:     strings.TrimSuffix(filepath.Base(path), ".rego"),
		Rego:     string(data),
		Severity: SeverityError,
		Enabled:  true,
		Source:   path,
	}

	var description []string
	for line := range strings.Lines(string(data)) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "#") {
			break
		}
		comment := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		if sev, ok := strings.CutPrefix(comment, "severity:"); ok {
			p.Severity = Severity(strings.TrimSpace(sev))
			continue
		}
		if comment != "" {
			description = append(description, comment)
		}
	}
	p.Description = strings.Join(description, " ")

	return p
}

func parseJSONFile(path string, data []byte) (*Policy, error) {
	p := Policy{Enabled: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse JSON policy %s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), ".json")
	}
	if p.Severity == "" {
		p.Severity = SeverityError
	}
	p.Source = path
	return &p, nil
}
