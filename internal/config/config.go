package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	fe "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
)

// Manifest is the top-level book manifest.
type Manifest struct {
	Book          BookConfig          `yaml:"book"`
	Format        FormatConfig        `yaml:"format,omitempty"`
	Output        OutputConfig        `yaml:"output,omitempty"`
	Preview       PreviewConfig       `yaml:"preview,omitempty"`
	Notifications NotificationsConfig `yaml:"notifications,omitempty"`
}

// BookConfig declares book metadata and the ordered part/chapter structure.
type BookConfig struct {
	Title        string `yaml:"title"`
	Author       string `yaml:"author,omitempty"`
	Date         string `yaml:"date,omitempty"` // literal date or the "today" placeholder
	RepoURL      string `yaml:"repo-url,omitempty"`
	SiteURL      string `yaml:"site-url,omitempty"`
	Bibliography string `yaml:"bibliography,omitempty"`
	Parts        []Part `yaml:"parts"`
}

// Part is a named group of chapters. Chapter order is significant and is
// carried verbatim into the rendered navigation.
type Part struct {
	Title    string   `yaml:"title"`
	Chapters []string `yaml:"chapters"`
}

// FormatConfig maps output format names to their options. Only HTML output
// exists today.
type FormatConfig struct {
	HTML HTMLFormat `yaml:"html,omitempty"`
}

// FreezeMode controls the render cache for unchanged chapters.
type FreezeMode string

const (
	FreezeOff     FreezeMode = "off"     // always re-render
	FreezeAuto    FreezeMode = "auto"    // reuse cached HTML for unchanged chapters
	FreezeRefresh FreezeMode = "refresh" // re-render everything and repopulate the cache
)

// HTMLFormat holds HTML output options.
type HTMLFormat struct {
	Theme  string     `yaml:"theme,omitempty"`
	Freeze FreezeMode `yaml:"freeze,omitempty"`
}

// OutputConfig holds output directory options.
type OutputConfig struct {
	Directory string `yaml:"directory,omitempty"`
	Clean     bool   `yaml:"clean,omitempty"`
}

// PreviewConfig holds preview server options.
type PreviewConfig struct {
	Port int `yaml:"port,omitempty"`
}

// NotificationsConfig holds optional build event publication settings.
type NotificationsConfig struct {
	NATS *NATSConfig `yaml:"nats,omitempty"`
}

// NATSConfig configures build event publication to a NATS subject.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject,omitempty"`
}

// Load reads and parses the manifest at path, applies defaults, and validates
// its structure. Chapter path resolution is performed separately by
// Validate/ResolveChapters since it needs the manifest base directory.
func Load(path string) (*Manifest, error) {
	loadEnvFiles()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fe.ManifestError("manifest file not found").WithContext("path", path).Build()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fe.WrapError(err, fe.CategoryFileSystem, "read manifest").WithContext("path", path).Build()
	}

	// Expand ${VAR} references so secrets and site URLs can come from the environment.
	expanded := os.ExpandEnv(string(data))

	m, err := Parse([]byte(expanded))
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Parse decodes manifest YAML with strict field checking. Unknown keys are a
// manifest error: a loosely-typed manifest silently ignoring typos is worse
// than failing fast.
func Parse(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fe.WrapError(err, fe.CategoryManifest, "malformed manifest").Fatal().Build()
	}

	applyDefaults(&m)

	if err := m.validateStructure(); err != nil {
		return nil, err
	}
	return &m, nil
}

// validateStructure enforces the required-field invariants that do not need
// filesystem access.
func (m *Manifest) validateStructure() error {
	if m.Book.Title == "" {
		return fe.ValidationError("book.title is required").Build()
	}
	if len(m.Book.Parts) == 0 {
		return fe.ValidationError("book.parts must declare at least one part").Build()
	}
	for i, p := range m.Book.Parts {
		if p.Title == "" {
			return fe.ValidationError(fmt.Sprintf("book.parts[%d].title is required", i)).Build()
		}
		if len(p.Chapters) == 0 {
			return fe.ValidationError(fmt.Sprintf("part %q has an empty chapter list", p.Title)).Build()
		}
		for j, c := range p.Chapters {
			if c == "" {
				return fe.ValidationError(fmt.Sprintf("part %q chapter %d is empty", p.Title, j)).Build()
			}
		}
	}
	switch m.Format.HTML.Freeze {
	case FreezeOff, FreezeAuto, FreezeRefresh:
	default:
		return fe.ValidationError(fmt.Sprintf("format.html.freeze: unknown mode %q", m.Format.HTML.Freeze)).Build()
	}
	return nil
}

// Init creates a new manifest file with example content.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("manifest already exists: %s (use --force to overwrite)", path)
	}

	example := Manifest{
		Book: BookConfig{
			Title:  "Developer Notes",
			Author: "Your Name",
			Date:   "today",
			Parts: []Part{
				{Title: "Getting Started", Chapters: []string{"index.md"}},
				{Title: "Patterns", Chapters: []string{"patterns/dao.md", "patterns/di.md"}},
			},
		},
		Format: FormatConfig{HTML: HTMLFormat{Theme: "default", Freeze: FreezeAuto}},
		Output: OutputConfig{Directory: "./site", Clean: true},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
