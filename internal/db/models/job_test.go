package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus(t *testing.T) {
	tests := []struct {
		name          string
		status        JobStatus
		stringValue   string
		jsonValue     string
		validForParse bool
		terminal      bool
	}{
		{name: "Queued status", status: JobStatusQueued, stringValue: "QUEUED", jsonValue: `"QUEUED"`, validForParse: true},
		{name: "Processing status", status: JobStatusProcessing, stringValue: "PROCESSING", jsonValue: `"PROCESSING"`, validForParse: true},
		{name: "Completed status", status: JobStatusCompleted, stringValue: "COMPLETED", jsonValue: `"COMPLETED"`, validForParse: true, terminal: true},
		{name: "Failed status", status: JobStatusFailed, stringValue: "FAILED", jsonValue: `"FAILED"`, validForParse: true, terminal: true},
		{name: "Invalid status", stringValue: "queued", jsonValue: `"queued"`},
		{name: "Invalid JSON", jsonValue: `invalid`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.status != "" {
				assert.Equal(t, tt.stringValue, tt.status.String())
				assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			}

			parsed, err := ParseJobStatus(tt.stringValue)
			var unmarshaled JobStatus
			jsonErr := unmarshaled.UnmarshalJSON([]byte(tt.jsonValue))
			if tt.validForParse {
				assert.NoError(t, err)
				assert.Equal(t, tt.status, parsed)
				assert.NoError(t, jsonErr)
				assert.Equal(t, tt.status, unmarshaled)
			} else {
				assert.Error(t, err)
				assert.Error(t, jsonErr)
			}
		})
	}
}

func TestParseJobType(t *testing.T) {
	for _, s := range []string{"DISCOVERY_JOB", "EXTRACTION_JOB", "DM"} {
		jt, err := ParseJobType(s)
		require.NoError(t, err)
		assert.Equal(t, JobType(s), jt)
	}
	_, err := ParseJobType("CLEANUP")
	assert.Error(t, err)
}

func TestJob_Validate(t *testing.T) {
	job := Job{WorkspaceID: "ws-1", JobType: JobTypeDM, ScheduledAt: time.Now()}
	assert.NoError(t, job.Validate())

	noWorkspace := job
	noWorkspace.WorkspaceID = ""
	assert.Error(t, noWorkspace.Validate())

	noSchedule := job
	noSchedule.ScheduledAt = time.Time{}
	assert.Error(t, noSchedule.Validate())

	badType := job
	badType.JobType = "SOMETHING"
	assert.Error(t, badType.Validate())
}

func TestDecodePayload(t *testing.T) {
	t.Run("discovery", func(t *testing.T) {
		p, err := DecodePayload(JobTypeDiscovery, json.RawMessage(`{"targetAccount":"emlakci","keywords":["fiyat"],"frequency":6}`))
		require.NoError(t, err)
		d, ok := p.(DiscoveryPayload)
		require.True(t, ok)
		assert.Equal(t, "emlakci", d.TargetAccount)
		assert.Equal(t, []string{"fiyat"}, d.Keywords)
	})

	t.Run("extraction", func(t *testing.T) {
		p, err := DecodePayload(JobTypeExtraction, json.RawMessage(`{"postId":"123","keywords":["fiyat","price"],"caption":"Bodrum villa"}`))
		require.NoError(t, err)
		e, ok := p.(ExtractionPayload)
		require.True(t, ok)
		assert.Equal(t, "123", e.PostID)
		assert.Equal(t, "Bodrum villa", e.Caption)
	})

	t.Run("dm", func(t *testing.T) {
		p, err := DecodePayload(JobTypeDM, json.RawMessage(`{"recipientUsername":"ali","message":"Merhaba"}`))
		require.NoError(t, err)
		assert.Equal(t, JobTypeDM, p.JobType())
	})

	invalid := []struct {
		name    string
		jobType JobType
		raw     string
	}{
		{name: "missing target account", jobType: JobTypeDiscovery, raw: `{"keywords":["fiyat"]}`},
		{name: "empty keywords", jobType: JobTypeDiscovery, raw: `{"targetAccount":"x","keywords":[]}`},
		{name: "missing post id", jobType: JobTypeExtraction, raw: `{"keywords":["fiyat"]}`},
		{name: "empty message", jobType: JobTypeDM, raw: `{"recipientUsername":"ali","message":""}`},
		{name: "not json", jobType: JobTypeDM, raw: `{`},
		{name: "empty", jobType: JobTypeDM, raw: ``},
		{name: "unknown type", jobType: "OTHER", raw: `{}`},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePayload(tt.jobType, json.RawMessage(tt.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPayload))
		})
	}
}

func TestEncodePayload(t *testing.T) {
	raw, err := EncodePayload(ExtractionPayload{PostID: "p1", Keywords: []string{"fiyat"}, FailureReason: "boom"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"failureReason":"boom"`)

	_, err = EncodePayload(DMPayload{RecipientUsername: "ali"})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestDiscoveryPayload_RecurrenceInterval(t *testing.T) {
	fallback := 24 * time.Hour
	tests := []struct {
		name      string
		frequency string
		want      time.Duration
		wantOK    bool
	}{
		{name: "absent", frequency: "", wantOK: false},
		{name: "null", frequency: "null", wantOK: false},
		{name: "hours as number", frequency: "6", want: 6 * time.Hour, wantOK: true},
		{name: "fractional hours", frequency: "0.5", want: 30 * time.Minute, wantOK: true},
		{name: "duration string", frequency: `"90m"`, want: 90 * time.Minute, wantOK: true},
		{name: "hours as string", frequency: `"12"`, want: 12 * time.Hour, wantOK: true},
		{name: "malformed string", frequency: `"daily"`, want: fallback, wantOK: true},
		{name: "zero", frequency: "0", want: fallback, wantOK: true},
		{name: "negative", frequency: "-3", want: fallback, wantOK: true},
		{name: "object", frequency: `{"every":1}`, want: fallback, wantOK: true},
		{name: "hours beyond duration range", frequency: "3e6", want: fallback, wantOK: true},
		{name: "huge hours", frequency: "1e12", want: fallback, wantOK: true},
		{name: "huge hours as string", frequency: `"1e12"`, want: fallback, wantOK: true},
		{name: "tiny hours raised to minimum", frequency: "0.00001", want: MinRecurrence, wantOK: true},
		{name: "tiny duration raised to minimum", frequency: `"1ns"`, want: MinRecurrence, wantOK: true},
		{name: "negative duration", frequency: `"-5m"`, want: fallback, wantOK: true},
		{name: "largest allowed hours", frequency: "2562047", want: 2562047 * time.Hour, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DiscoveryPayload{TargetAccount: "x", Keywords: []string{"k"}}
			if tt.frequency != "" {
				p.Frequency = json.RawMessage(tt.frequency)
			}
			got, ok := p.RecurrenceInterval(fallback)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestValidateSteps(t *testing.T) {
	assert.NoError(t, ValidateSteps([]CampaignStep{{StepOrder: 0}, {StepOrder: 1, DelayMinutes: 60}}))
	assert.Error(t, ValidateSteps([]CampaignStep{{StepOrder: 0, DelayMinutes: 5}}))
	assert.Error(t, ValidateSteps([]CampaignStep{{StepOrder: 0}, {StepOrder: 2}}))
	assert.Error(t, ValidateSteps([]CampaignStep{{StepOrder: 0}, {StepOrder: 1, DelayMinutes: -1}}))
}

func TestLead_Validate(t *testing.T) {
	lead := Lead{WorkspaceID: "ws", IgUserID: "1", IgUsername: "ali", LeadScore: 90}
	assert.NoError(t, lead.Validate())

	lead.LeadScore = 101
	assert.Error(t, lead.Validate())

	lead.LeadScore = 50
	lead.IgUserID = ""
	assert.Error(t, lead.Validate())
}
