// Package template renders the {{placeholder}} vocabulary used in message,
// email and task templates. It is a pure function over the lead snapshot,
// the run's scratch context and the tenant labels: missing values render
// as an empty string, never as an error.
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dripflow/dripflow/pkg/models"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// Interpolate replaces every {{placeholder}} in input. The vocabulary is
// fixed: lead fields, tenant labels, assigned-agent fields, link
// placeholders sourced from the run context, and the catch-all
// {{context.<key>}}.
func Interpolate(input string, lead *models.Lead, runContext map[string]any, labels models.Labels) string {
	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		key := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(match, "{{"), "}}"))

		return resolve(key, lead, runContext, labels)
	})
}

func resolve(key string, lead *models.Lead, runContext map[string]any, labels models.Labels) string {
	switch key {
	case "name":
		return leadString(lead, func(l *models.Lead) string { return l.Name })
	case "firstName":
		return leadString(lead, firstName)
	case "lastName":
		return leadString(lead, func(l *models.Lead) string { return l.LastName })
	case "email":
		return leadString(lead, func(l *models.Lead) string { return l.Email })
	case "phone":
		return leadString(lead, func(l *models.Lead) string { return l.Phone })
	case "budget":
		if lead == nil || lead.Budget == 0 {
			return ""
		}

		return strconv.FormatFloat(lead.Budget, 'f', -1, 64)
	case "category":
		return leadString(lead, func(l *models.Lead) string { return l.Category })
	case "location":
		return leadString(lead, func(l *models.Lead) string { return l.Location })
	case "source":
		return leadString(lead, func(l *models.Lead) string { return l.Source })
	case "status":
		return leadString(lead, func(l *models.Lead) string { return l.Status })

	case "organizationName":
		return labels.OrganizationName
	case "appointmentLabel":
		return labels.AppointmentField

	case "agentName", "agentEmail", "agentPhone":
		return agentValue(lead, key)
	}

	if field, ok := strings.CutPrefix(key, "label."); ok {
		return labels.FieldLabel(field, "")
	}

	if contextKey, ok := strings.CutPrefix(key, "context."); ok {
		return contextString(runContext, contextKey)
	}

	// Link placeholders ({{bookingLink}}, {{paymentLink}}, ...) and any
	// other executor-written value resolve straight from the run context.
	return contextString(runContext, key)
}

func leadString(lead *models.Lead, get func(*models.Lead) string) string {
	if lead == nil {
		return ""
	}

	return get(lead)
}

func firstName(lead *models.Lead) string {
	if lead.FirstName != "" {
		return lead.FirstName
	}

	first, _, _ := strings.Cut(strings.TrimSpace(lead.Name), " ")

	return first
}

func agentValue(lead *models.Lead, key string) string {
	if lead == nil || lead.AssignedAgent == nil {
		return ""
	}

	switch key {
	case "agentName":
		return lead.AssignedAgent.Name
	case "agentEmail":
		return lead.AssignedAgent.Email
	case "agentPhone":
		return lead.AssignedAgent.Phone
	}

	return ""
}

func contextString(runContext map[string]any, key string) string {
	value, ok := runContext[key]
	if !ok || value == nil {
		return ""
	}

	return fmt.Sprint(value)
}
