package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/models"
	"github.com/redtrack-io/redtrack/internal/repository"
)

// Document is a workflow definition file. Each rule set replaces every
// transition and field rule of its (tracker, role) pair.
type Document struct {
	APIVersion string   `yaml:"apiVersion" json:"apiVersion"`
	Kind       string   `yaml:"kind" json:"kind"`
	Metadata   Metadata `yaml:"metadata" json:"metadata"`
	Spec       struct {
		Rules []RuleSet `yaml:"rules" json:"rules"`
	} `yaml:"spec" json:"spec"`
}

type Metadata struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

type RuleSet struct {
	TrackerID   int             `yaml:"tracker_id" json:"tracker_id"`
	RoleID      int             `yaml:"role_id" json:"role_id"`
	Transitions []TransitionRow `yaml:"transitions" json:"transitions"`
	Fields      []FieldRow      `yaml:"fields" json:"fields"`
}

type TransitionRow struct {
	From     int  `yaml:"from" json:"from"`
	To       int  `yaml:"to" json:"to"`
	Assignee bool `yaml:"assignee,omitempty" json:"assignee,omitempty"`
	Author   bool `yaml:"author,omitempty" json:"author,omitempty"`
}

type FieldRow struct {
	StatusID int    `yaml:"status_id" json:"status_id"`
	Field    string `yaml:"field" json:"field"`
	Rule     string `yaml:"rule" json:"rule"`
}

// ImportSummary counts what an import wrote.
type ImportSummary struct {
	RuleSets    int `json:"rule_sets"`
	Transitions int `json:"transitions"`
	Fields      int `json:"fields"`
}

const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Workflow",
  "type": "object",
  "required": ["apiVersion", "kind", "metadata", "spec"],
  "properties": {
    "apiVersion": {"type": "string", "pattern": "^redtrack/v[0-9]+$"},
    "kind": {"type": "string", "enum": ["Workflow"]},
    "metadata": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "description": {"type": "string"}
      }
    },
    "spec": {
      "type": "object",
      "required": ["rules"],
      "properties": {
        "rules": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["tracker_id", "role_id"],
            "additionalProperties": false,
            "properties": {
              "tracker_id": {"type": "integer", "minimum": 0},
              "role_id": {"type": "integer", "minimum": 0},
              "transitions": {
                "type": "array",
                "items": {
                  "type": "object",
                  "required": ["from", "to"],
                  "additionalProperties": false,
                  "properties": {
                    "from": {"type": "integer", "minimum": 0},
                    "to": {"type": "integer", "minimum": 1},
                    "assignee": {"type": "boolean"},
                    "author": {"type": "boolean"}
                  }
                }
              },
              "fields": {
                "type": "array",
                "items": {
                  "type": "object",
                  "required": ["status_id", "field", "rule"],
                  "additionalProperties": false,
                  "properties": {
                    "status_id": {"type": "integer", "minimum": 0},
                    "field": {"type": "string", "minLength": 1},
                    "rule": {"type": "string", "enum": ["required", "readonly", "hidden"]}
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(documentSchema)

// ValidationError lists every schema violation of a document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid workflow document: " + strings.Join(e.Problems, "; ")
}

// ParseDocument decodes YAML and validates it against the workflow schema.
func ParseDocument(data []byte) (*Document, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse workflow yaml: %w", err)
	}
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert workflow yaml: %w", err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(asJSON))
	if err != nil {
		return nil, fmt.Errorf("validate workflow: %w", err)
	}
	if !result.Valid() {
		verr := &ValidationError{}
		for _, e := range result.Errors() {
			verr.Problems = append(verr.Problems, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
		}
		return nil, verr
	}

	var doc Document
	if err := json.Unmarshal(asJSON, &doc); err != nil {
		return nil, fmt.Errorf("decode workflow: %w", err)
	}
	for _, set := range doc.Spec.Rules {
		for _, f := range set.Fields {
			if !models.IsKnownField(f.Field) {
				return nil, core.NewFieldError(f.Field, core.ErrUnknownField)
			}
		}
	}
	return &doc, nil
}

// Import replaces the rules of every rule set in doc.
func Import(ctx context.Context, repo repository.WorkflowRuleRepository, doc *Document) (ImportSummary, error) {
	var summary ImportSummary
	for _, set := range doc.Spec.Rules {
		transitions := make([]models.WorkflowRule, 0, len(set.Transitions))
		for _, t := range set.Transitions {
			transitions = append(transitions, models.WorkflowRule{
				OldStatusID: t.From,
				NewStatusID: t.To,
				Assignee:    t.Assignee,
				Author:      t.Author,
			})
		}
		fields := make([]models.WorkflowRule, 0, len(set.Fields))
		for _, f := range set.Fields {
			fields = append(fields, models.WorkflowRule{
				OldStatusID: f.StatusID,
				FieldName:   f.Field,
				Rule:        models.FieldRule(f.Rule),
			})
		}

		if err := repo.ReplaceRules(ctx, models.WorkflowTransition, set.TrackerID, set.RoleID, transitions); err != nil {
			return summary, fmt.Errorf("tracker %d role %d transitions: %w", set.TrackerID, set.RoleID, err)
		}
		if err := repo.ReplaceRules(ctx, models.WorkflowField, set.TrackerID, set.RoleID, fields); err != nil {
			return summary, fmt.Errorf("tracker %d role %d fields: %w", set.TrackerID, set.RoleID, err)
		}
		summary.RuleSets++
		summary.Transitions += len(transitions)
		summary.Fields += len(fields)
	}
	log.Printf("workflow: imported %q rule_sets=%d transitions=%d fields=%d",
		doc.Metadata.Name, summary.RuleSets, summary.Transitions, summary.Fields)
	return summary, nil
}
