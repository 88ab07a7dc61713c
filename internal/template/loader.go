package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// parseConfig decodes the templates YAML while preserving bank and
// template file order. Go maps iterate in random order, so the document
// is walked as a yaml.Node tree instead of decoding into map types.
//
// Structural problems are hard errors. An individual regex that fails to
// compile is logged and disabled, leaving the rest of the template
// usable.
func parseConfig(data []byte, logger *log.Logger) (*config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse templates YAML: %w", err)
	}
	if len(doc.Content) == 0 {
		return &config{index: map[string]*bankTemplates{}}, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("templates file must be a mapping of bank IDs")
	}

	cfg := &config{}
	for i := 0; i < len(root.Content); i += 2 {
		keyNode, valNode := root.Content[i], root.Content[i+1]
		bankID := keyNode.Value

		if valNode.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("templates for bank %q must be a list", bankID)
		}

		bank := bankTemplates{id: bankID}
		for j, tmplNode := range valNode.Content {
			tmpl, err := parseTemplate(bankID, j, tmplNode, logger)
			if err != nil {
				return nil, err
			}
			bank.templates = append(bank.templates, tmpl)
		}
		cfg.banks = append(cfg.banks, bank)
	}

	// Index after the slice is complete so the pointers cannot be
	// invalidated by append reallocation. Keys are case-folded: bank
	// hints arrive in whatever case the message source uses.
	cfg.index = make(map[string]*bankTemplates, len(cfg.banks))
	for i := range cfg.banks {
		cfg.index[strings.ToLower(cfg.banks[i].id)] = &cfg.banks[i]
	}
	return cfg, nil
}

func parseTemplate(bankID string, pos int, node *yaml.Node, logger *log.Logger) (Template, error) {
	if node.Kind != yaml.MappingNode {
		return Template{}, fmt.Errorf("template %d for bank %q must be a mapping", pos, bankID)
	}

	tmpl := Template{Name: fmt.Sprintf("%s_template_%d", bankID, pos)}
	var patternsNode *yaml.Node

	for i := 0; i < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "name":
			tmpl.Name = val.Value
		case "patterns":
			patternsNode = val
		case "required_fields":
			if val.Kind != yaml.SequenceNode {
				return Template{}, fmt.Errorf("required_fields for template %q must be a list", tmpl.Name)
			}
			for _, f := range val.Content {
				tmpl.RequiredFields = append(tmpl.RequiredFields, f.Value)
			}
		}
	}

	if patternsNode == nil {
		return Template{}, fmt.Errorf("template %q for bank %q has no patterns", tmpl.Name, bankID)
	}
	if patternsNode.Kind != yaml.MappingNode {
		return Template{}, fmt.Errorf("patterns for template %q must be a mapping of field names", tmpl.Name)
	}
	if tmpl.RequiredFields == nil {
		tmpl.RequiredFields = []string{"amount"}
	}

	for i := 0; i < len(patternsNode.Content); i += 2 {
		field := patternsNode.Content[i].Value
		raw := patternsNode.Content[i+1].Value

		re, err := regexp.Compile("(?i)" + raw)
		if err != nil {
			logger.Warn("Invalid regex pattern disabled",
				"bank", bankID, "template", tmpl.Name, "field", field, "error", err)
			re = nil
		}
		tmpl.patterns = append(tmpl.patterns, fieldPattern{field: field, re: re})
	}
	return tmpl, nil
}
