package boards

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/mcdev12/retroboard/go/internal/models"
	"github.com/mcdev12/retroboard/go/internal/retro"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

// TemplateColumn is one column of a template.
type TemplateColumn struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

// Template is the set of columns a board starts with.
type Template struct {
	Columns []TemplateColumn `yaml:"columns"`
}

type catalogFile struct {
	Templates map[models.BoardTemplate]Template `yaml:"templates"`
}

// Catalog maps template kinds to their columns.
type Catalog struct {
	templates map[models.BoardTemplate]Template
}

// DefaultCatalog returns the built-in templates.
func DefaultCatalog() (*Catalog, error) {
	templates, err := parseTemplates(defaultTemplates)
	if err != nil {
		return nil, fmt.Errorf("failed to parse built-in templates: %w", err)
	}
	return &Catalog{templates: templates}, nil
}

// LoadCatalog returns the built-in templates overlaid with the file at path.
// An empty path yields the built-ins only.
func LoadCatalog(path string) (*Catalog, error) {
	catalog, err := DefaultCatalog()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates file: %w", err)
	}
	overrides, err := parseTemplates(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates file %s: %w", path, err)
	}
	for kind, tmpl := range overrides {
		catalog.templates[kind] = tmpl
	}

	log.Info().Str("path", path).Int("overrides", len(overrides)).Msg("loaded board templates")
	return catalog, nil
}

func parseTemplates(data []byte) (map[models.BoardTemplate]Template, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	for kind, tmpl := range file.Templates {
		for i, col := range tmpl.Columns {
			if col.Name == "" {
				return nil, fmt.Errorf("template %s column %d has no name", kind, i)
			}
		}
	}
	if file.Templates == nil {
		file.Templates = make(map[models.BoardTemplate]Template)
	}
	return file.Templates, nil
}

// Columns returns the columns for a template kind.
func (c *Catalog) Columns(kind models.BoardTemplate) ([]retro.NewColumn, error) {
	tmpl, ok := c.templates[kind]
	if !ok {
		return nil, retro.ValidationError("unknown board template %q", kind)
	}
	cols := make([]retro.NewColumn, 0, len(tmpl.Columns))
	for _, col := range tmpl.Columns {
		cols = append(cols, retro.NewColumn{Name: col.Name, Color: col.Color})
	}
	return cols, nil
}

// Kinds lists the known template kinds in name order.
func (c *Catalog) Kinds() []models.BoardTemplate {
	kinds := make([]models.BoardTemplate, 0, len(c.templates))
	for kind := range c.templates {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
