package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidPayload is returned when a job payload does not match its job type schema
var ErrInvalidPayload = errors.New("invalid job payload")

// Payload is the job-type specific body of a job row
type Payload interface {
	JobType() JobType
}

// DiscoveryPayload describes a scan of a target account for recent posts
type DiscoveryPayload struct {
	TargetAccount string   `json:"targetAccount"`
	Keywords      []string `json:"keywords"`
	PostLimit     int      `json:"postLimit,omitempty"`
	// Frequency is either a number of hours or a duration string such as "6h".
	// It is parsed leniently, see RecurrenceInterval.
	Frequency json.RawMessage `json:"frequency,omitempty"`
}

// JobType implements Payload
func (DiscoveryPayload) JobType() JobType { return JobTypeDiscovery }

// MinRecurrence is the shortest interval a recurring discovery may use
const MinRecurrence = time.Minute

// maxRecurrenceHours keeps hour counts inside time.Duration
const maxRecurrenceHours = float64(math.MaxInt64 / int64(time.Hour))

// RecurrenceInterval returns the interval after which the discovery must run again.
// ok is false when no recurrence was requested. Malformed, non-positive or
// out-of-range values fall back to the provided default, and short intervals are
// raised to MinRecurrence.
func (p DiscoveryPayload) RecurrenceInterval(fallback time.Duration) (interval time.Duration, ok bool) {
	raw := strings.TrimSpace(string(p.Frequency))
	if raw == "" || raw == "null" {
		return 0, false
	}

	var hours float64
	if err := json.Unmarshal(p.Frequency, &hours); err == nil {
		return hoursInterval(hours, fallback), true
	}

	var str string
	if err := json.Unmarshal(p.Frequency, &str); err != nil {
		return fallback, true
	}
	str = strings.TrimSpace(str)
	if d, err := time.ParseDuration(str); err == nil {
		return clampInterval(d, fallback), true
	}
	if h, err := strconv.ParseFloat(str, 64); err == nil {
		return hoursInterval(h, fallback), true
	}
	return fallback, true
}

func hoursInterval(hours float64, fallback time.Duration) time.Duration {
	if math.IsNaN(hours) || hours <= 0 || hours > maxRecurrenceHours {
		return fallback
	}
	return clampInterval(time.Duration(hours*float64(time.Hour)), fallback)
}

func clampInterval(d, fallback time.Duration) time.Duration {
	switch {
	case d <= 0:
		return fallback
	case d < MinRecurrence:
		return MinRecurrence
	}
	return d
}

// ExtractionPayload describes the comment mining of a single post
type ExtractionPayload struct {
	PostID         string   `json:"postId"`
	PostCode       string   `json:"postCode,omitempty"`
	Caption        string   `json:"caption,omitempty"`
	TakenAt        int64    `json:"takenAt,omitempty"` // unix seconds
	TargetAccount  string   `json:"targetAccount,omitempty"`
	Keywords       []string `json:"keywords"`
	DiscoveryJobID uint     `json:"discoveryJobId,omitempty"`

	// Outcome fields, written back when the job finishes
	LeadsFound    int    `json:"leadsFound,omitempty"`
	LeadsSaved    int    `json:"leadsSaved,omitempty"`
	FailureReason string `json:"failureReason,omitempty"`
}

// JobType implements Payload
func (ExtractionPayload) JobType() JobType { return JobTypeExtraction }

// DMPayload describes a single outbound direct message
type DMPayload struct {
	RecipientUsername string `json:"recipientUsername"`
	Message           string `json:"message"`
	RecipientID       uint   `json:"recipientId,omitempty"`
	StepOrder         int    `json:"stepOrder,omitempty"`
	DeferredFromJobID uint   `json:"deferredFromJobId,omitempty"`
}

// JobType implements Payload
func (DMPayload) JobType() JobType { return JobTypeDM }

const discoverySchema = `{
	"type": "object",
	"required": ["targetAccount", "keywords"],
	"properties": {
		"targetAccount": {"type": "string", "minLength": 1},
		"keywords": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
		"postLimit": {"type": "integer", "minimum": 0}
	}
}`

const extractionSchema = `{
	"type": "object",
	"required": ["postId", "keywords"],
	"properties": {
		"postId": {"type": "string", "minLength": 1},
		"postCode": {"type": "string"},
		"caption": {"type": "string"},
		"takenAt": {"type": "integer"},
		"keywords": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
		"discoveryJobId": {"type": "integer", "minimum": 0}
	}
}`

const dmSchema = `{
	"type": "object",
	"required": ["recipientUsername", "message"],
	"properties": {
		"recipientUsername": {"type": "string", "minLength": 1},
		"message": {"type": "string", "minLength": 1},
		"recipientId": {"type": "integer", "minimum": 0},
		"stepOrder": {"type": "integer", "minimum": 0}
	}
}`

var payloadSchemas = map[JobType]*jsonschema.Schema{
	JobTypeDiscovery:  jsonschema.MustCompileString("discovery.json", discoverySchema),
	JobTypeExtraction: jsonschema.MustCompileString("extraction.json", extractionSchema),
	JobTypeDM:         jsonschema.MustCompileString("dm.json", dmSchema),
}

// ValidatePayload checks raw against the schema registered for jobType
func ValidatePayload(jobType JobType, raw json.RawMessage) error {
	schema, ok := payloadSchemas[jobType]
	if !ok {
		return fmt.Errorf("%w: unknown job type %q", ErrInvalidPayload, jobType)
	}
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// DecodePayload validates and decodes raw into the variant matching jobType
func DecodePayload(jobType JobType, raw json.RawMessage) (Payload, error) {
	if err := ValidatePayload(jobType, raw); err != nil {
		return nil, err
	}

	var (
		p   Payload
		err error
	)
	switch jobType {
	case JobTypeDiscovery:
		var d DiscoveryPayload
		err = json.Unmarshal(raw, &d)
		p = d
	case JobTypeExtraction:
		var e ExtractionPayload
		err = json.Unmarshal(raw, &e)
		p = e
	case JobTypeDM:
		var m DMPayload
		err = json.Unmarshal(raw, &m)
		p = m
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p, nil
}

// EncodePayload marshals p after validating it against its schema
func EncodePayload(p Payload) (json.RawMessage, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := ValidatePayload(p.JobType(), raw); err != nil {
		return nil, err
	}
	return raw, nil
}
