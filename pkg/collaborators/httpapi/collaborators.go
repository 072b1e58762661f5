package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
)

// New builds the full collaborator bundle backed by one shared client.
func New(baseURL, apiKey string) protocol.Collaborators {
	client := NewClient(baseURL, apiKey)

	return protocol.Collaborators{
		Messages: &MessageClient{client},
		Voice:    &VoiceClient{client},
		Mail:     &MailClient{client},
		Tasks:    &TaskClient{client},
		Leads:    &LeadClient{client},
		LabelSet: &LabelClient{client},
	}
}

// MessageClient implements protocol.MessageChannel.
type MessageClient struct {
	*Client
}

func (c *MessageClient) IsConfigured(ctx context.Context, orgID string) (bool, error) {
	var out struct {
		Configured bool `json:"configured"`
	}

	path := fmt.Sprintf("/organizations/%s/channels/whatsapp", url.PathEscape(orgID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return false, err
	}

	return out.Configured, nil
}

func (c *MessageClient) SendText(ctx context.Context, orgID, phone, text string) (*protocol.SendResult, error) {
	body := map[string]any{
		"organization_id": orgID,
		"phone":           phone,
		"text":            text,
	}

	var result protocol.SendResult
	if err := c.doJSON(ctx, http.MethodPost, "/messages/whatsapp", body, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *MessageClient) SendTemplate(ctx context.Context, orgID, phone, templateID, lang string, components []map[string]any) (*protocol.SendResult, error) {
	body := map[string]any{
		"organization_id": orgID,
		"phone":           phone,
		"template_id":     templateID,
		"language":        lang,
		"components":      components,
	}

	var result protocol.SendResult
	if err := c.doJSON(ctx, http.MethodPost, "/messages/whatsapp/template", body, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// VoiceClient implements protocol.VoiceCaller.
type VoiceClient struct {
	*Client
}

func (c *VoiceClient) PlaceCall(ctx context.Context, orgID, phone string, opts protocol.CallOptions) (*protocol.CallResult, error) {
	body := map[string]any{
		"organization_id": orgID,
		"phone":           phone,
		"options":         opts,
	}

	var result protocol.CallResult
	if err := c.doJSON(ctx, http.MethodPost, "/calls", body, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// MailClient implements protocol.Mailer.
type MailClient struct {
	*Client
}

func (c *MailClient) Send(ctx context.Context, orgID, to, subject, html string) (*protocol.SendResult, error) {
	body := map[string]any{
		"organization_id": orgID,
		"to":              to,
		"subject":         subject,
		"html":            html,
	}

	var result protocol.SendResult
	if err := c.doJSON(ctx, http.MethodPost, "/emails", body, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// TaskClient implements protocol.TaskService.
type TaskClient struct {
	*Client
}

func (c *TaskClient) CreateTask(ctx context.Context, task protocol.NewTask) (string, error) {
	var out struct {
		ID string `json:"id"`
	}

	if err := c.doJSON(ctx, http.MethodPost, "/tasks", task, &out); err != nil {
		return "", err
	}

	return out.ID, nil
}

func (c *TaskClient) CompleteTask(ctx context.Context, taskID string) error {
	path := fmt.Sprintf("/tasks/%s/complete", url.PathEscape(taskID))

	return c.doJSON(ctx, http.MethodPost, path, nil, nil)
}

func (c *TaskClient) CheckAutoCompleteForStatusChange(ctx context.Context, leadID, newStatus string) error {
	body := map[string]any{
		"lead_id": leadID,
		"status":  newStatus,
	}

	return c.doJSON(ctx, http.MethodPost, "/tasks/auto-complete", body, nil)
}

// LeadClient implements protocol.LeadStore.
type LeadClient struct {
	*Client
}

func (c *LeadClient) Get(ctx context.Context, leadID string) (*models.Lead, error) {
	var lead models.Lead

	path := "/leads/" + url.PathEscape(leadID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &lead); err != nil {
		return nil, err
	}

	return &lead, nil
}

func (c *LeadClient) Update(ctx context.Context, leadID string, fields map[string]any) error {
	path := "/leads/" + url.PathEscape(leadID)

	return c.doJSON(ctx, http.MethodPatch, path, fields, nil)
}

func (c *LeadClient) UpdateStatus(ctx context.Context, leadID, status string) error {
	path := fmt.Sprintf("/leads/%s/status", url.PathEscape(leadID))

	return c.doJSON(ctx, http.MethodPut, path, map[string]string{"status": status}, nil)
}

func (c *LeadClient) Assign(ctx context.Context, leadID, agentID string) error {
	path := fmt.Sprintf("/leads/%s/assignee", url.PathEscape(leadID))

	return c.doJSON(ctx, http.MethodPut, path, map[string]string{"agent_id": agentID}, nil)
}

func (c *LeadClient) Agents(ctx context.Context, orgID string) ([]models.Agent, error) {
	var agents []models.Agent

	path := fmt.Sprintf("/organizations/%s/agents", url.PathEscape(orgID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &agents); err != nil {
		return nil, err
	}

	return agents, nil
}

func (c *LeadClient) OpenLeadCount(ctx context.Context, agentID string) (int, error) {
	var out struct {
		Count int `json:"count"`
	}

	path := fmt.Sprintf("/agents/%s/open-leads/count", url.PathEscape(agentID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return 0, err
	}

	return out.Count, nil
}

// LabelClient implements protocol.LabelStore.
type LabelClient struct {
	*Client
}

func (c *LabelClient) Labels(ctx context.Context, orgID string) (models.Labels, error) {
	var labels models.Labels

	path := fmt.Sprintf("/organizations/%s/labels", url.PathEscape(orgID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &labels); err != nil {
		return models.Labels{}, err
	}

	return labels, nil
}
