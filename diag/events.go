package diag

import (
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/casualjim/rectify/canonical"
)

var (
	correctionJSON = []byte(`{"type":"correction"}`)
	ambiguityJSON  = []byte(`{"type":"ambiguity"}`)
	cleanedJSON    = []byte(`{"type":"stuck_requests_cleaned"}`)
)

// Correction records a termination-reason override. Corrections are
// always surfaced with before/after values, never applied silently.
type Correction struct {
	RequestID  uuid.UUID            `json:"request_id"`
	Original   canonical.StopReason `json:"original"`
	Corrected  canonical.StopReason `json:"corrected"`
	ToolCount  int                  `json:"tool_count"`
	Confidence float64              `json:"confidence"`
	Timestamp  strfmt.DateTime      `json:"timestamp,omitempty"`
}

// Ambiguity records conflicting or low-confidence detection signal: a
// provider claiming tool use the detector cannot corroborate, or a
// correction driven by sub-structured confidence. Ambiguous cases are
// surfaced, not guessed.
type Ambiguity struct {
	RequestID  uuid.UUID            `json:"request_id"`
	Declared   canonical.StopReason `json:"declared"`
	ToolCount  int                  `json:"tool_count"`
	Confidence float64              `json:"confidence"`
	Methods    []string             `json:"methods,omitempty"`
	Detail     string               `json:"detail"`
	Timestamp  strfmt.DateTime      `json:"timestamp,omitempty"`
}

// CleanedEntry describes one force-failed request.
type CleanedEntry struct {
	RequestID uuid.UUID     `json:"request_id"`
	Elapsed   time.Duration `json:"elapsed_ms"`
}

// StuckRequestsCleaned lists every request force-failed by a cleanup
// pass, rather than dropping them silently.
type StuckRequestsCleaned struct {
	SessionID      string          `json:"session_id"`
	ConversationID string          `json:"conversation_id"`
	Cleaned        []CleanedEntry  `json:"cleaned"`
	Timestamp      strfmt.DateTime `json:"timestamp,omitempty"`
}

// MarshalJSON implements custom JSON marshaling for Correction
func (c Correction) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(correctionJSON, "request_id", c.RequestID.String())
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "original", string(c.Original))
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "corrected", string(c.Corrected))
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "tool_count", c.ToolCount)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "confidence", c.Confidence)
	if err != nil {
		return nil, err
	}
	if !time.Time(c.Timestamp).IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", c.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for Correction
func (c *Correction) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	parsed := gjson.ParseBytes(data)
	if parsed.Get("type").String() != "correction" {
		return fmt.Errorf("missing or invalid type, expected 'correction'")
	}
	if err := c.RequestID.UnmarshalText([]byte(parsed.Get("request_id").String())); err != nil {
		return fmt.Errorf("invalid request_id: %w", err)
	}
	c.Original = canonical.StopReason(parsed.Get("original").String())
	c.Corrected = canonical.StopReason(parsed.Get("corrected").String())
	c.ToolCount = int(parsed.Get("tool_count").Int())
	c.Confidence = parsed.Get("confidence").Float()
	if ts := parsed.Get("timestamp"); ts.Exists() {
		if err := c.Timestamp.UnmarshalText([]byte(ts.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	return nil
}

// MarshalJSON implements custom JSON marshaling for Ambiguity
func (a Ambiguity) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(ambiguityJSON, "request_id", a.RequestID.String())
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "declared", string(a.Declared))
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "tool_count", a.ToolCount)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "confidence", a.Confidence)
	if err != nil {
		return nil, err
	}
	if len(a.Methods) > 0 {
		result, err = sjson.SetBytes(result, "methods", a.Methods)
		if err != nil {
			return nil, err
		}
	}
	result, err = sjson.SetBytes(result, "detail", a.Detail)
	if err != nil {
		return nil, err
	}
	if !time.Time(a.Timestamp).IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", a.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// MarshalJSON implements custom JSON marshaling for StuckRequestsCleaned
func (s StuckRequestsCleaned) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(cleanedJSON, "session_id", s.SessionID)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "conversation_id", s.ConversationID)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetRawBytes(result, "cleaned", []byte(`[]`))
	if err != nil {
		return nil, err
	}
	for _, entry := range s.Cleaned {
		item, err := sjson.SetBytes([]byte(`{}`), "request_id", entry.RequestID.String())
		if err != nil {
			return nil, err
		}
		item, err = sjson.SetBytes(item, "elapsed_ms", entry.Elapsed.Milliseconds())
		if err != nil {
			return nil, err
		}
		result, err = sjson.SetRawBytes(result, "cleaned.-1", item)
		if err != nil {
			return nil, err
		}
	}
	if !time.Time(s.Timestamp).IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", s.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}
