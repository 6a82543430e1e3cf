package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRecordLegacyStringUpgrade(t *testing.T) {
	t.Parallel()

	var rec AttendanceRecord
	if err := json.Unmarshal([]byte(`"2024-03-01T10:00:00"`), &rec); err != nil {
		t.Fatalf("unmarshal legacy record: %v", err)
	}
	if rec.Status != StatusPresent {
		t.Errorf("expected status present, got %q", rec.Status)
	}
	if rec.Timestamp != "2024-03-01T10:00:00" {
		t.Errorf("expected original timestamp preserved, got %q", rec.Timestamp)
	}
}

func TestRecordMissingStatusDefaultsPresent(t *testing.T) {
	t.Parallel()

	var rec AttendanceRecord
	if err := json.Unmarshal([]byte(`{"timestamp": "2024-03-01T10:00:00Z"}`), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.Status != StatusPresent {
		t.Errorf("expected status present, got %q", rec.Status)
	}
}

func TestDocumentLegacyPresentRoleKey(t *testing.T) {
	t.Parallel()

	raw := `{
		"attendance_role_id": 123456789012345678,
		"absent_role_id": "222",
		"records": {
			"42": "2024-03-01T10:00:00",
			"43": {"status": "excused", "timestamp": "2024-03-01T11:00:00Z", "reason": "sick"}
		}
	}`
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.PresentRoleID != "123456789012345678" {
		t.Errorf("expected legacy attendance_role_id honored, got %q", doc.PresentRoleID)
	}
	if doc.AbsentRoleID != "222" {
		t.Errorf("expected absent role 222, got %q", doc.AbsentRoleID)
	}
	if rec := doc.Records["42"]; rec.Status != StatusPresent || rec.Timestamp != "2024-03-01T10:00:00" {
		t.Errorf("legacy record not normalized: %+v", rec)
	}
	if rec := doc.Records["43"]; rec.Status != StatusExcused || rec.Reason != "sick" {
		t.Errorf("structured record mangled: %+v", rec)
	}
}

func TestDocumentNewKeyWinsOverLegacy(t *testing.T) {
	t.Parallel()

	raw := `{"present_role_id": "111", "attendance_role_id": "999"}`
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.PresentRoleID != "111" {
		t.Errorf("expected present_role_id to win, got %q", doc.PresentRoleID)
	}
}

func TestStatusOthers(t *testing.T) {
	t.Parallel()

	others := StatusPresent.Others()
	if len(others) != 2 {
		t.Fatalf("expected 2 conflicting statuses, got %d", len(others))
	}
	for _, o := range others {
		if o == StatusPresent {
			t.Errorf("Others must not contain the status itself")
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in string
		ok bool
	}{
		{"2024-03-01T10:00:00Z", true},
		{"2024-03-01T10:00:00.123456789Z", true},
		{"2024-03-01T10:00:00+08:00", true},
		{"2024-03-01T10:00:00", true},          // zone-less isoformat
		{"2024-03-01T10:00:00.123456", true},   // zone-less with fraction
		{"2024-03-01 10:00:00", true},          // isoformat with space separator
		{"not a timestamp", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := ParseTimestamp(tc.in)
		if tc.ok && err != nil {
			t.Errorf("ParseTimestamp(%q) failed: %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("ParseTimestamp(%q) unexpectedly succeeded", tc.in)
		}
	}
}

func TestFormatTimestampRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	parsed, err := ParseTimestamp(FormatTimestamp(now))
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if !parsed.Equal(now) {
		t.Errorf("round trip changed the instant: %v != %v", parsed, now)
	}
}

func TestSettingsDefaults(t *testing.T) {
	t.Parallel()

	s := SettingsOverride{}.Merged()
	if s.AttendanceExpiryHours != 24 {
		t.Errorf("expected default expiry 24, got %d", s.AttendanceExpiryHours)
	}
	if !s.AllowSelfMarking {
		t.Error("expected allow_self_marking default true")
	}
	if !s.RequireAdminExcuse {
		t.Error("expected require_admin_excuse default true")
	}
	if s.SuffixFormat != DefaultSuffix {
		t.Errorf("expected default suffix, got %q", s.SuffixFormat)
	}
	if s.DebugMode || s.AutoNickOnJoin || s.EnforceSuffix || s.RemoveSuffixOnRoleLoss {
		t.Error("expected boolean toggles to default to false")
	}
}

func TestSettingsPartialOverride(t *testing.T) {
	t.Parallel()

	hours := 48
	s := SettingsOverride{AttendanceExpiryHours: &hours}.Merged()
	if s.AttendanceExpiryHours != 48 {
		t.Errorf("expected override to apply, got %d", s.AttendanceExpiryHours)
	}
	// Every other key stays at its default.
	if !s.AllowSelfMarking || !s.RequireAdminExcuse || s.SuffixFormat != DefaultSuffix {
		t.Error("overriding one key must leave the others at default")
	}
}

func TestSettingsExpiryClamped(t *testing.T) {
	t.Parallel()

	for _, hours := range []int{0, -5} {
		h := hours
		s := SettingsOverride{AttendanceExpiryHours: &h}.Merged()
		if s.AttendanceExpiryHours != 24 {
			t.Errorf("expiry %d should fall back to default, got %d", hours, s.AttendanceExpiryHours)
		}
	}
}

func TestSettingsOverrideIsFull(t *testing.T) {
	t.Parallel()

	o := DefaultSettings().Override()
	raw, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var keys map[string]any
	if err := json.Unmarshal(raw, &keys); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []string{
		"debug_mode", "auto_nick_on_join", "enforce_suffix",
		"remove_suffix_on_role_loss", "attendance_expiry_hours",
		"allow_self_marking", "require_admin_excuse", "suffix_format",
	}
	for _, k := range want {
		if _, ok := keys[k]; !ok {
			t.Errorf("saved settings missing key %q; saves must persist the full structure", k)
		}
	}
}
