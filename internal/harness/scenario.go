package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/readmeplay/internal/store"
)

// Scenario is a scripted playback.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Document is the README text. DocumentFile is an alternative, resolved
	// relative to the scenario file.
	Document     string `yaml:"document,omitempty"`
	DocumentFile string `yaml:"document_file,omitempty"`

	// AutoExecute starts the scheduler with auto-execute off when false.
	AutoExecute *bool `yaml:"auto_execute,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step actions.
const (
	StepTick      = "tick"
	StepAccept    = "accept"
	StepFail      = "fail"
	StepDrop      = "drop"
	StepSend      = "send"
	StepKeepalive = "keepalive"
	StepToggle    = "toggle"
	StepReconnect = "reconnect"
)

// Step is one scripted event.
type Step struct {
	Action string `yaml:"action"`

	// At is the clock position for tick.
	At *float64 `yaml:"at,omitempty"`

	// Error is the socket error text for fail.
	Error string `yaml:"error,omitempty"`

	// Code is the manual execute body for send.
	Code string `yaml:"code,omitempty"`

	// Feature and On configure toggle.
	Feature string `yaml:"feature,omitempty"`
	On      *bool  `yaml:"on,omitempty"`
}

// Assertion types.
const (
	AssertSentContains = "sent_contains"
	AssertSentOrder    = "sent_order"
	AssertSentCount    = "sent_count"
	AssertFinalState   = "final_state"
	AssertJournalCount = "journal_count"
)

// Assertion checks the outcome of a run.
type Assertion struct {
	Type string `yaml:"type"`

	// Message fields matched by sent_contains; empty fields match anything.
	MessageType string `yaml:"message_type,omitempty"`
	Content     string `yaml:"content,omitempty"`
	File        string `yaml:"file,omitempty"`

	// Contents is the expected execute order for sent_order.
	Contents []string `yaml:"contents,omitempty"`

	// Count is used by sent_count and journal_count.
	Count *int `yaml:"count,omitempty"`

	// State and Pending are checked by final_state when set.
	State   string `yaml:"state,omitempty"`
	Pending *int   `yaml:"pending,omitempty"`

	// Source narrows journal_count to scheduled or manual deliveries.
	Source store.Source `yaml:"source,omitempty"`
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if s.DocumentFile != "" {
		docPath := s.DocumentFile
		if !filepath.IsAbs(docPath) {
			docPath = filepath.Join(filepath.Dir(path), docPath)
		}
		doc, err := os.ReadFile(docPath)
		if err != nil {
			return nil, fmt.Errorf("invalid scenario: document_file: %w", err)
		}
		s.Document = string(doc)
	}
	return s, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if (s.Document == "") == (s.DocumentFile == "") {
		return fmt.Errorf("exactly one of document and document_file is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s Step) error {
	switch s.Action {
	case StepTick:
		if s.At == nil {
			return fmt.Errorf("steps[%d]: at is required for tick", index)
		}
	case StepSend:
		if s.Code == "" {
			return fmt.Errorf("steps[%d]: code is required for send", index)
		}
	case StepToggle:
		if s.Feature != "exec" && s.Feature != "scroll" {
			return fmt.Errorf("steps[%d]: feature must be exec or scroll", index)
		}
		if s.On == nil {
			return fmt.Errorf("steps[%d]: on is required for toggle", index)
		}
	case StepAccept, StepFail, StepDrop, StepKeepalive, StepReconnect:
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, s.Action)
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case AssertSentContains:
		if a.MessageType == "" && a.Content == "" && a.File == "" {
			return fmt.Errorf("assertions[%d]: sent_contains needs message_type, content or file", index)
		}
	case AssertSentOrder:
		if len(a.Contents) == 0 {
			return fmt.Errorf("assertions[%d]: contents list is required for sent_order", index)
		}
	case AssertSentCount, AssertJournalCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", index, a.Type)
		}
	case AssertFinalState:
		if a.State == "" && a.Pending == nil {
			return fmt.Errorf("assertions[%d]: final_state needs state or pending", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
