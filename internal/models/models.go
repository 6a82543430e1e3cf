package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Status is an attendance status. Statuses are mutually exclusive: a member
// has at most one at any time.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusExcused Status = "excused"
)

// AllStatuses in display order.
var AllStatuses = []Status{StatusPresent, StatusAbsent, StatusExcused}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPresent, StatusAbsent, StatusExcused:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Others returns the two statuses that conflict with s.
func (s Status) Others() []Status {
	out := make([]Status, 0, 2)
	for _, o := range AllStatuses {
		if o != s {
			out = append(out, o)
		}
	}
	return out
}

// ID is a Discord snowflake stored as a string. Documents written by the
// original bot stored snowflakes as JSON numbers, so decoding accepts both.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// AttendanceRecord is a member's current attendance state. One record per
// user; a new status transition replaces the old record.
type AttendanceRecord struct {
	Status Status `json:"status"`
	// Timestamp is kept as the raw persisted string and parsed on use.
	// Existing documents contain zone-less Python isoformat values.
	Timestamp       string `json:"timestamp"`
	Reason          string `json:"reason,omitempty"`
	OriginChannelID ID     `json:"origin_channel_id,omitempty"`
}

// UnmarshalJSON upgrades the legacy format, where a record was a bare
// timestamp string, to a present record carrying that timestamp.
func (r *AttendanceRecord) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var ts string
		if err := json.Unmarshal(b, &ts); err != nil {
			return err
		}
		*r = AttendanceRecord{Status: StatusPresent, Timestamp: ts}
		return nil
	}
	type plain AttendanceRecord
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if p.Status == "" {
		p.Status = StatusPresent
	}
	*r = AttendanceRecord(p)
	return nil
}

// Time parses the record timestamp. Accepts RFC 3339 (what this bot
// writes) and the zone-less isoformat the original bot wrote; the latter is
// interpreted in local time, matching how it was produced.
func (r AttendanceRecord) Time() (time.Time, error) {
	return ParseTimestamp(r.Timestamp)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
}

var naiveTimestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range naiveTimestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
}

// FormatTimestamp renders a timestamp the way new records are written.
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// Document is the persisted envelope: attendance configuration, the partial
// settings override, and the per-user records. It is read and rewritten
// whole on every mutation.
type Document struct {
	PresentRoleID    ID                          `json:"present_role_id,omitempty"`
	AbsentRoleID     ID                          `json:"absent_role_id,omitempty"`
	ExcusedRoleID    ID                          `json:"excused_role_id,omitempty"`
	AllowedRoleID    ID                          `json:"allowed_role_id,omitempty"`
	PingRoleID       ID                          `json:"ping_role_id,omitempty"`
	WelcomeChannelID ID                          `json:"welcome_channel_id,omitempty"`
	Settings         SettingsOverride            `json:"settings,omitempty"`
	Records          map[string]AttendanceRecord `json:"records"`
}

func NewDocument() *Document {
	return &Document{Records: make(map[string]AttendanceRecord)}
}

// UnmarshalJSON honors the original bot's attendance_role_id key when the
// current present_role_id key is absent.
func (d *Document) UnmarshalJSON(b []byte) error {
	type plain Document
	aux := struct {
		*plain
		LegacyPresentRoleID ID `json:"attendance_role_id,omitempty"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if d.PresentRoleID == "" {
		d.PresentRoleID = aux.LegacyPresentRoleID
	}
	if d.Records == nil {
		d.Records = make(map[string]AttendanceRecord)
	}
	return nil
}

// RoleID returns the role configured for a status, empty when unset.
func (d *Document) RoleID(s Status) ID {
	switch s {
	case StatusPresent:
		return d.PresentRoleID
	case StatusAbsent:
		return d.AbsentRoleID
	case StatusExcused:
		return d.ExcusedRoleID
	}
	return ""
}

// SetRoleID sets the role configured for a status.
func (d *Document) SetRoleID(s Status, roleID ID) {
	switch s {
	case StatusPresent:
		d.PresentRoleID = roleID
	case StatusAbsent:
		d.AbsentRoleID = roleID
	case StatusExcused:
		d.ExcusedRoleID = roleID
	}
}
