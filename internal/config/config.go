// Package config loads the immutable rule tables of the intake engine: flow
// definitions, extraction rules, classifier tables, and tier definitions.
//
// Tables ship as embedded YAML defaults and may be overridden per file by a
// config directory. They are loaded once at process start and treated as
// read-only for the process lifetime; hot-reloading is out of scope.
package config

import (
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/BTreeMap/CaseFlow/internal/classify"
	"github.com/BTreeMap/CaseFlow/internal/extract"
	"github.com/BTreeMap/CaseFlow/internal/flow"
	"github.com/BTreeMap/CaseFlow/internal/models"
)

//go:embed defaults/*.yaml
var defaultsFS embed.FS

// File names recognized in an override directory.
const (
	FlowsFile      = "flows.yaml"
	ExtractionFile = "extraction.yaml"
	ClassifierFile = "classifier.yaml"
	TiersFile      = "tiers.yaml"
)

// Config bundles the compiled rule tables the engine runs on.
type Config struct {
	Rules      *extract.RuleSet
	Classifier *classify.Classifier
	Flows      *flow.Registry
	Policy     *flow.Policy
}

// Engine constructs the intake engine over the loaded tables.
func (c *Config) Engine() *flow.Engine {
	return flow.NewEngine(c.Classifier, c.Rules, c.Flows, c.Policy)
}

// Load reads and compiles every rule table. dir may be empty, in which case
// only the embedded defaults are used; otherwise files present in dir override
// the default of the same name. Validation failures abort with an error since
// no sensible default exists for a broken table.
func Load(dir string) (*Config, error) {
	rules, err := loadRules(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load extraction rules: %w", err)
	}
	classifier, err := loadClassifier(dir, rules)
	if err != nil {
		return nil, fmt.Errorf("failed to load classifier tables: %w", err)
	}
	flows, err := loadFlows(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow definitions: %w", err)
	}
	policy, err := loadTiers(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load tier definitions: %w", err)
	}
	slog.Info("Configuration tables loaded",
		"fields", len(rules.Fields()),
		"flows", len(flows.Types()),
		"tiers", len(policy.Tiers()),
		"overrideDir", dir)
	return &Config{Rules: rules, Classifier: classifier, Flows: flows, Policy: policy}, nil
}

// readTable returns the override file from dir when present, otherwise the
// embedded default.
func readTable(dir, name string) ([]byte, error) {
	if dir != "" {
		path := filepath.Join(dir, name)
		if data, err := os.ReadFile(path); err == nil {
			slog.Debug("Using override config file", "path", path)
			return data, nil
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
	return defaultsFS.ReadFile("defaults/" + name)
}

// extractionDoc mirrors extraction.yaml.
type extractionDoc struct {
	Fields []struct {
		Name          string   `yaml:"name"`
		Section       string   `yaml:"section"`
		Multi         bool     `yaml:"multi"`
		CaseSensitive bool     `yaml:"case_sensitive"`
		Patterns      []string `yaml:"patterns"`
	} `yaml:"fields"`
}

func loadRules(dir string) (*extract.RuleSet, error) {
	data, err := readTable(dir, ExtractionFile)
	if err != nil {
		return nil, err
	}
	var doc extractionDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	specs := make([]extract.FieldSpec, 0, len(doc.Fields))
	for _, f := range doc.Fields {
		if !models.KnownField(f.Name) {
			return nil, fmt.Errorf("extraction rule for unknown field %s", f.Name)
		}
		if section, _ := models.SectionForField(f.Name); section != f.Section {
			return nil, fmt.Errorf("field %s declared in section %s, schema owns it in %s", f.Name, f.Section, section)
		}
		specs = append(specs, extract.FieldSpec{
			Name:          f.Name,
			Section:       f.Section,
			Multi:         f.Multi,
			CaseSensitive: f.CaseSensitive,
			Patterns:      f.Patterns,
		})
	}
	return extract.Compile(specs)
}

// classifierDoc mirrors classifier.yaml.
type classifierDoc struct {
	Categories []struct {
		Type         string   `yaml:"type"`
		Keywords     []string `yaml:"keywords"`
		EntityFields []string `yaml:"entity_fields"`
		MinUrgency   string   `yaml:"min_urgency"`
		Workflows    []string `yaml:"workflows"`
		ResponseType string   `yaml:"response_type"`
		Tone         string   `yaml:"tone"`
		Length       string   `yaml:"length"`
	} `yaml:"categories"`
	Urgency []struct {
		Level        string   `yaml:"level"`
		Keywords     []string `yaml:"keywords"`
		EntityFields []string `yaml:"entity_fields"`
	} `yaml:"urgency"`
	Intents  []labelDoc `yaml:"intents"`
	Emotions []labelDoc `yaml:"emotions"`
}

type labelDoc struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

func loadClassifier(dir string, rules *extract.RuleSet) (*classify.Classifier, error) {
	data, err := readTable(dir, ClassifierFile)
	if err != nil {
		return nil, err
	}
	var doc classifierDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	tables := classify.Tables{}
	for _, c := range doc.Categories {
		urgency := models.UrgencyLevel(c.MinUrgency)
		if c.MinUrgency != "" && !models.IsValidUrgencyLevel(urgency) {
			return nil, fmt.Errorf("category %s has invalid min_urgency %q", c.Type, c.MinUrgency)
		}
		tables.Categories = append(tables.Categories, classify.CategoryRule{
			Type:           c.Type,
			Keywords:       c.Keywords,
			EntityFields:   c.EntityFields,
			MinUrgency:     urgency,
			Workflows:      c.Workflows,
			ResponseType:   c.ResponseType,
			ToneGuidance:   c.Tone,
			LengthGuidance: c.Length,
		})
	}
	for _, u := range doc.Urgency {
		level := models.UrgencyLevel(u.Level)
		if !models.IsValidUrgencyLevel(level) {
			return nil, fmt.Errorf("urgency rule has invalid level %q", u.Level)
		}
		tables.Urgency = append(tables.Urgency, classify.UrgencyRule{
			Level:        level,
			Keywords:     u.Keywords,
			EntityFields: u.EntityFields,
		})
	}
	for _, l := range doc.Intents {
		tables.Intents = append(tables.Intents, classify.LabelRule{Label: l.Label, Keywords: l.Keywords})
	}
	for _, l := range doc.Emotions {
		tables.Emotions = append(tables.Emotions, classify.LabelRule{Label: l.Label, Keywords: l.Keywords})
	}
	return classify.New(tables, rules), nil
}

// flowsDoc mirrors flows.yaml.
type flowsDoc struct {
	Flows []struct {
		Type        string `yaml:"type"`
		MaxMessages int    `yaml:"max_messages"`
		Steps       []struct {
			Purpose    string   `yaml:"purpose"`
			Messages   []string `yaml:"messages"`
			Collects   []string `yaml:"collects"`
			Triggers   []string `yaml:"triggers"`
			Escalation bool     `yaml:"escalation"`
		} `yaml:"steps"`
	} `yaml:"flows"`
}

func loadFlows(dir string) (*flow.Registry, error) {
	data, err := readTable(dir, FlowsFile)
	if err != nil {
		return nil, err
	}
	var doc flowsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	defs := make([]*flow.Definition, 0, len(doc.Flows))
	for _, f := range doc.Flows {
		def := &flow.Definition{Type: f.Type, MaxMessages: f.MaxMessages}
		for i, s := range f.Steps {
			def.Steps = append(def.Steps, flow.Step{
				Index:      i + 1,
				Purpose:    s.Purpose,
				Messages:   s.Messages,
				Collects:   s.Collects,
				Triggers:   s.Triggers,
				Escalation: s.Escalation,
			})
		}
		defs = append(defs, def)
	}
	return flow.NewRegistry(defs)
}

// tiersDoc mirrors tiers.yaml.
type tiersDoc struct {
	Tiers []struct {
		Tag              string   `yaml:"tag"`
		Level            int      `yaml:"level"`
		Responsibilities []string `yaml:"responsibilities"`
		ToolsAvailable   []string `yaml:"tools_available"`
		Triggers         []struct {
			Name     string   `yaml:"name"`
			Keywords []string `yaml:"keywords"`
			Reason   string   `yaml:"reason"`
			MinTier  string   `yaml:"min_tier"`
		} `yaml:"escalation_triggers"`
		CustomerClasses map[string]string `yaml:"customer_classes"`
		QualityCriteria []string          `yaml:"quality_criteria"`
	} `yaml:"tiers"`
}

func loadTiers(dir string) (*flow.Policy, error) {
	data, err := readTable(dir, TiersFile)
	if err != nil {
		return nil, err
	}
	var doc tiersDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	tiers := make([]flow.Tier, 0, len(doc.Tiers))
	for _, t := range doc.Tiers {
		tier := flow.Tier{
			Tag:              t.Tag,
			Level:            t.Level,
			Responsibilities: t.Responsibilities,
			Tools:            t.ToolsAvailable,
			CustomerClasses:  t.CustomerClasses,
			QualityCriteria:  t.QualityCriteria,
		}
		for _, tr := range t.Triggers {
			if tr.Reason == "" {
				return nil, fmt.Errorf("tier %s trigger %s has no reason", t.Tag, tr.Name)
			}
			tier.Triggers = append(tier.Triggers, flow.TriggerRule{
				Name:     tr.Name,
				Keywords: tr.Keywords,
				Reason:   tr.Reason,
				MinTier:  tr.MinTier,
			})
		}
		tiers = append(tiers, tier)
	}
	return flow.NewPolicy(tiers)
}
