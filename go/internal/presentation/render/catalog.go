package render

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/musicmind/academy/go/internal/presentation/session"
)

//go:embed default_stages.yaml
var defaultStages []byte

// Kind groups stages that share a layout.
type Kind string

const (
	KindWaiting      Kind = "waiting"
	KindInstructions Kind = "instructions"
	KindSummary      Kind = "summary"
	KindActivity     Kind = "activity"
)

func (k Kind) valid() bool {
	switch k {
	case KindWaiting, KindInstructions, KindSummary, KindActivity:
		return true
	}
	return false
}

// StageDef describes one entry of the closed stage set.
type StageDef struct {
	ID       string `yaml:"id"`
	Kind     Kind   `yaml:"kind"`
	Title    string `yaml:"title"`
	Subtitle string `yaml:"subtitle"`
	Timed    bool   `yaml:"timed"`
}

type catalogFile struct {
	Stages []StageDef `yaml:"stages"`
}

// Catalog is the set of stages a lesson can show, in lesson order.
type Catalog struct {
	order  []string
	stages map[string]StageDef
}

// DefaultCatalog returns the built-in lesson stages.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultStages)
	if err != nil {
		panic(fmt.Sprintf("default stage catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a YAML stage catalog from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stage catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML stage catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse stage catalog: %w", err)
	}

	c := &Catalog{stages: make(map[string]StageDef, len(file.Stages))}
	for i, def := range file.Stages {
		def.ID = strings.TrimSpace(def.ID)
		if def.ID == "" {
			return nil, fmt.Errorf("stage %d: %w", i, ErrEmptyStageID)
		}
		if !def.Kind.valid() {
			return nil, fmt.Errorf("stage %s: %w: %q", def.ID, ErrUnknownStageKind, def.Kind)
		}
		if _, ok := c.stages[def.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStage, def.ID)
		}
		c.stages[def.ID] = def
		c.order = append(c.order, def.ID)
	}
	return c, nil
}

// Lookup returns the definition for stage.
func (c *Catalog) Lookup(stage session.Stage) (StageDef, bool) {
	def, ok := c.stages[string(stage)]
	return def, ok
}

// Stages returns the definitions in catalog order.
func (c *Catalog) Stages() []StageDef {
	out := make([]StageDef, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.stages[id])
	}
	return out
}
