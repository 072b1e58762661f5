package template

import (
	"testing"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestInterpolateLeadAndLabels(t *testing.T) {
	lead := &models.Lead{Name: "Asha Rao"}
	labels := models.Labels{AppointmentField: "Demo"}

	out := Interpolate("Hi {{name}}, your {{appointmentLabel}} is set", lead, nil, labels)
	assert.Equal(t, "Hi Asha Rao, your Demo is set", out)
}

func TestInterpolateFirstNameFallsBackToName(t *testing.T) {
	lead := &models.Lead{Name: "Asha Rao"}

	assert.Equal(t, "Asha", Interpolate("{{firstName}}", lead, nil, models.Labels{}))

	lead.FirstName = "Ash"
	assert.Equal(t, "Ash", Interpolate("{{firstName}}", lead, nil, models.Labels{}))
}

func TestInterpolateMissingValuesRenderEmpty(t *testing.T) {
	out := Interpolate("{{email}}|{{agentName}}|{{context.lastCallId}}|{{bookingLink}}", &models.Lead{}, nil, models.Labels{})
	assert.Equal(t, "|||", out)

	// A nil lead never panics either.
	assert.Equal(t, "", Interpolate("{{name}}", nil, nil, models.Labels{}))
}

func TestInterpolateAgentFields(t *testing.T) {
	lead := &models.Lead{
		Name:          "Asha",
		AssignedAgent: &models.Agent{Name: "Marcos", Email: "marcos@org.example", Phone: "+55110001"},
	}

	out := Interpolate("{{agentName}} <{{agentEmail}}> {{agentPhone}}", lead, nil, models.Labels{})
	assert.Equal(t, "Marcos <marcos@org.example> +55110001", out)
}

func TestInterpolateContextAndLinks(t *testing.T) {
	runContext := map[string]any{
		"lastCallId":  "call-42",
		"bookingLink": "https://book.example/x1",
	}

	out := Interpolate("Call {{context.lastCallId}}: {{bookingLink}}", nil, runContext, models.Labels{})
	assert.Equal(t, "Call call-42: https://book.example/x1", out)
}

func TestInterpolateTenantFieldLabels(t *testing.T) {
	labels := models.Labels{
		OrganizationName: "Acme Realty",
		Fields:           map[string]string{"appointment": "site visit"},
	}

	out := Interpolate("{{organizationName}}: {{label.appointment}} {{label.unknown}}", nil, nil, labels)
	assert.Equal(t, "Acme Realty: site visit ", out)
}

func TestInterpolateBudgetFormatting(t *testing.T) {
	lead := &models.Lead{Budget: 500000}
	assert.Equal(t, "500000", Interpolate("{{budget}}", lead, nil, models.Labels{}))

	lead.Budget = 1250.5
	assert.Equal(t, "1250.5", Interpolate("{{budget}}", lead, nil, models.Labels{}))
}

func TestInterpolateWhitespaceInsidePlaceholders(t *testing.T) {
	lead := &models.Lead{Status: "New"}
	assert.Equal(t, "New", Interpolate("{{ status }}", lead, nil, models.Labels{}))
}
