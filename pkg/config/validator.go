// Package config validates automation definitions before they are saved:
// struct-level field rules, graph structure, and per-node config schemas.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/registry"
)

var triggerTypes = map[string]bool{
	models.TriggerLeadCreated:   true,
	models.TriggerLeadUpdated:   true,
	models.TriggerStatusChanged: true,
}

// ValidationError collects every problem found in one definition, so the
// API can return them all at once instead of one per round trip.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid automation definition: " + strings.Join(e.Problems, "; ")
}

// Validator checks automation definitions against the registered node
// types and their config schemas.
type Validator struct {
	registry *registry.Registry
	validate *validator.Validate
}

func NewValidator(reg *registry.Registry) *Validator {
	return &Validator{
		registry: reg,
		validate: validator.New(),
	}
}

// Validate returns nil or a *ValidationError listing every problem.
// Unknown node types are reported: a definition being saved should not
// rely on the engine's skip-and-continue tolerance.
func (v *Validator) Validate(automation *models.Automation) error {
	var problems []string

	if err := v.validate.Struct(automation); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			for _, fieldError := range fieldErrors {
				problems = append(problems, fmt.Sprintf("field %s failed rule %q", fieldError.Namespace(), fieldError.Tag()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	problems = append(problems, v.checkTrigger(automation)...)
	problems = append(problems, v.checkGraph(automation)...)
	problems = append(problems, v.checkNodeConfigs(automation)...)

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}

	return nil
}

func (v *Validator) checkTrigger(automation *models.Automation) []string {
	var problems []string

	if automation.Trigger.Type == "" {
		problems = append(problems, "trigger type is required")
	} else if !triggerTypes[automation.Trigger.Type] {
		problems = append(problems, fmt.Sprintf("unknown trigger type %q", automation.Trigger.Type))
	}

	for i, condition := range automation.Trigger.Conditions {
		if condition.Field == "" {
			problems = append(problems, fmt.Sprintf("trigger condition %d has no field", i))
		}

		if condition.Operator == "" {
			problems = append(problems, fmt.Sprintf("trigger condition %d has no operator", i))
		}
	}

	return problems
}

func (v *Validator) checkGraph(automation *models.Automation) []string {
	var problems []string

	if len(automation.Nodes) == 0 {
		problems = append(problems, "automation has no nodes")
	}

	nodeIDs := make(map[string]bool, len(automation.Nodes))

	for _, node := range automation.Nodes {
		if node.ID == "" {
			problems = append(problems, "node with empty id")

			continue
		}

		if nodeIDs[node.ID] {
			problems = append(problems, fmt.Sprintf("duplicate node id %q", node.ID))
		}

		nodeIDs[node.ID] = true
	}

	seen := make(map[string]bool, len(automation.Edges))

	for _, edge := range automation.Edges {
		if !nodeIDs[edge.Source] {
			problems = append(problems, fmt.Sprintf("edge references unknown source node %q", edge.Source))
		}

		if !nodeIDs[edge.Target] {
			problems = append(problems, fmt.Sprintf("edge references unknown target node %q", edge.Target))
		}

		// Two edges leaving the same node on the same handle would make
		// routing ambiguous.
		key := edge.Source + "\x00" + edge.SourceHandle
		if seen[key] && nodeIDs[edge.Source] {
			problems = append(problems, fmt.Sprintf("node %q has more than one edge on handle %q", edge.Source, edge.SourceHandle))
		}

		seen[key] = true
	}

	return problems
}

func (v *Validator) checkNodeConfigs(automation *models.Automation) []string {
	var problems []string

	for _, node := range automation.Nodes {
		if !v.registry.Known(node.Type) {
			problems = append(problems, fmt.Sprintf("node %q has unknown type %q", node.ID, node.Type))

			continue
		}

		schema := v.registry.Schema(node.Type)
		if schema == nil {
			continue
		}

		config := node.Config
		if config == nil {
			config = map[string]any{}
		}

		result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(config))
		if err != nil {
			problems = append(problems, fmt.Sprintf("node %q: schema validation failed: %v", node.ID, err))

			continue
		}

		for _, schemaError := range result.Errors() {
			problems = append(problems, fmt.Sprintf("node %q: %s", node.ID, schemaError.String()))
		}
	}

	return problems
}
