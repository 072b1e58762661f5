// Package mocks provides hand-written in-memory fakes for the external
// collaborators and infrastructure, used across the engine's tests.
package mocks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
)

// SentMessage records one outbound message for assertions.
type SentMessage struct {
	OrgID      string
	Phone      string
	Text       string
	TemplateID string
	Language   string
}

// MessageChannelMock is a recording fake of the message collaborator.
type MessageChannelMock struct {
	mu            sync.Mutex
	Configured    bool
	ConfiguredErr error
	SendErr       error
	Sent          []SentMessage
	counter       int
}

func NewMessageChannelMock() *MessageChannelMock {
	return &MessageChannelMock{Configured: true}
}

func (m *MessageChannelMock) IsConfigured(_ context.Context, _ string) (bool, error) {
	return m.Configured, m.ConfiguredErr
}

func (m *MessageChannelMock) SendText(_ context.Context, orgID, phone, text string) (*protocol.SendResult, error) {
	if m.SendErr != nil {
		return nil, m.SendErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.counter++
	m.Sent = append(m.Sent, SentMessage{OrgID: orgID, Phone: phone, Text: text})

	return &protocol.SendResult{MessageID: fmt.Sprintf("msg-%d", m.counter)}, nil
}

func (m *MessageChannelMock) SendTemplate(_ context.Context, orgID, phone, templateID, lang string, _ []map[string]any) (*protocol.SendResult, error) {
	if m.SendErr != nil {
		return nil, m.SendErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.counter++
	m.Sent = append(m.Sent, SentMessage{OrgID: orgID, Phone: phone, TemplateID: templateID, Language: lang})

	return &protocol.SendResult{MessageID: fmt.Sprintf("msg-%d", m.counter)}, nil
}

// PlacedCall records one outbound AI call.
type PlacedCall struct {
	OrgID   string
	Phone   string
	Options protocol.CallOptions
}

// VoiceCallerMock is a recording fake of the AI-call collaborator.
type VoiceCallerMock struct {
	mu     sync.Mutex
	Status protocol.CallStatus
	Err    error
	Calls  []PlacedCall
	count  int
}

func NewVoiceCallerMock() *VoiceCallerMock {
	return &VoiceCallerMock{Status: protocol.CallStatusInitiated}
}

func (m *VoiceCallerMock) PlaceCall(_ context.Context, orgID, phone string, opts protocol.CallOptions) (*protocol.CallResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.count++
	m.Calls = append(m.Calls, PlacedCall{OrgID: orgID, Phone: phone, Options: opts})

	return &protocol.CallResult{CallID: fmt.Sprintf("call-%d", m.count), Status: m.Status}, nil
}

// SentMail records one outbound email.
type SentMail struct {
	OrgID   string
	To      string
	Subject string
	HTML    string
}

// MailerMock is a recording fake of the email collaborator.
type MailerMock struct {
	mu    sync.Mutex
	Err   error
	Sent  []SentMail
	count int
}

func NewMailerMock() *MailerMock {
	return &MailerMock{}
}

func (m *MailerMock) Send(_ context.Context, orgID, to, subject, html string) (*protocol.SendResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.count++
	m.Sent = append(m.Sent, SentMail{OrgID: orgID, To: to, Subject: subject, HTML: html})

	return &protocol.SendResult{MessageID: fmt.Sprintf("mail-%d", m.count)}, nil
}

// TaskServiceMock is a recording fake of the task collaborator.
type TaskServiceMock struct {
	mu               sync.Mutex
	CreateErr        error
	CompleteErr      error
	Created          []protocol.NewTask
	Completed        []string
	AutoCompleteFor  []string
	count            int
}

func NewTaskServiceMock() *TaskServiceMock {
	return &TaskServiceMock{}
}

func (m *TaskServiceMock) CreateTask(_ context.Context, task protocol.NewTask) (string, error) {
	if m.CreateErr != nil {
		return "", m.CreateErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.count++
	m.Created = append(m.Created, task)

	return fmt.Sprintf("task-%d", m.count), nil
}

func (m *TaskServiceMock) CompleteTask(_ context.Context, taskID string) error {
	if m.CompleteErr != nil {
		return m.CompleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Completed = append(m.Completed, taskID)

	return nil
}

func (m *TaskServiceMock) CheckAutoCompleteForStatusChange(_ context.Context, leadID, newStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AutoCompleteFor = append(m.AutoCompleteFor, leadID+":"+newStatus)

	return nil
}

// LeadStoreMock is an in-memory fake of the lead collaborator.
type LeadStoreMock struct {
	mu         sync.Mutex
	Leads      map[string]*models.Lead
	AgentList  []models.Agent
	OpenCounts map[string]int
	UpdateErr  error
}

func NewLeadStoreMock(leads ...*models.Lead) *LeadStoreMock {
	store := &LeadStoreMock{
		Leads:      make(map[string]*models.Lead),
		OpenCounts: make(map[string]int),
	}

	for _, lead := range leads {
		store.Leads[lead.ID] = lead
	}

	return store
}

var errLeadNotFound = errors.New("lead not found")

func (m *LeadStoreMock) Get(_ context.Context, leadID string) (*models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lead, ok := m.Leads[leadID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errLeadNotFound, leadID)
	}

	snapshot := *lead

	return &snapshot, nil
}

func (m *LeadStoreMock) Update(_ context.Context, leadID string, fields map[string]any) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	lead, ok := m.Leads[leadID]
	if !ok {
		return fmt.Errorf("%w: %s", errLeadNotFound, leadID)
	}

	if lead.Custom == nil {
		lead.Custom = make(map[string]any)
	}

	for key, value := range fields {
		lead.Custom[key] = value
	}

	return nil
}

func (m *LeadStoreMock) UpdateStatus(ctx context.Context, leadID, status string) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	lead, ok := m.Leads[leadID]
	if !ok {
		return fmt.Errorf("%w: %s", errLeadNotFound, leadID)
	}

	lead.Status = status
	lead.StatusHistory = append(lead.StatusHistory, models.StatusChange{Status: status})

	return nil
}

func (m *LeadStoreMock) Assign(_ context.Context, leadID, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lead, ok := m.Leads[leadID]
	if !ok {
		return fmt.Errorf("%w: %s", errLeadNotFound, leadID)
	}

	for i := range m.AgentList {
		if m.AgentList[i].ID == agentID {
			agent := m.AgentList[i]
			lead.AssignedAgent = &agent

			return nil
		}
	}

	lead.AssignedAgent = &models.Agent{ID: agentID}

	return nil
}

func (m *LeadStoreMock) Agents(_ context.Context, _ string) ([]models.Agent, error) {
	return m.AgentList, nil
}

func (m *LeadStoreMock) OpenLeadCount(_ context.Context, agentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.OpenCounts[agentID], nil
}

// LabelStoreMock returns a fixed label set.
type LabelStoreMock struct {
	Set models.Labels
}

func (m *LabelStoreMock) Labels(_ context.Context, _ string) (models.Labels, error) {
	return m.Set, nil
}

// Collaborators bundles all fakes for engine-level tests.
func Collaborators(leads *LeadStoreMock) (protocol.Collaborators, *MessageChannelMock, *VoiceCallerMock, *MailerMock, *TaskServiceMock) {
	messages := NewMessageChannelMock()
	voice := NewVoiceCallerMock()
	mailer := NewMailerMock()
	tasks := NewTaskServiceMock()

	return protocol.Collaborators{
		Messages: messages,
		Voice:    voice,
		Mail:     mailer,
		Tasks:    tasks,
		Leads:    leads,
		LabelSet: &LabelStoreMock{},
	}, messages, voice, mailer, tasks
}
