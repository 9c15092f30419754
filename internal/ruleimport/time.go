package ruleimport

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04", "2006-01-02"}

// yamlTime accepts RFC 3339 and a few shorter layouts; layouts without a
// zone are read as UTC.
type yamlTime struct {
	time.Time
}

func (t *yamlTime) UnmarshalYAML(node *yaml.Node) error {
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, node.Value)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("line %d: invalid time %q", node.Line, node.Value)
}

func (t *yamlTime) ptr() *time.Time {
	if t == nil {
		return nil
	}
	v := t.Time
	return &v
}
