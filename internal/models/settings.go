package models

// DefaultSuffix is the decorative tag appended to member display names.
const DefaultSuffix = " [\U0001D681\U0001D674\U0001D676]"

// Settings is the effective bot configuration after merging persisted
// overrides with defaults.
type Settings struct {
	DebugMode              bool
	AutoNickOnJoin         bool
	EnforceSuffix          bool
	RemoveSuffixOnRoleLoss bool
	AttendanceExpiryHours  int
	AllowSelfMarking       bool
	RequireAdminExcuse     bool
	SuffixFormat           string
}

func DefaultSettings() Settings {
	return Settings{
		AttendanceExpiryHours: 24,
		AllowSelfMarking:      true,
		RequireAdminExcuse:    true,
		SuffixFormat:          DefaultSuffix,
	}
}

// SettingsOverride is the persisted form: a partial override where every
// absent key falls back to its default on read.
type SettingsOverride struct {
	DebugMode              *bool   `json:"debug_mode,omitempty"`
	AutoNickOnJoin         *bool   `json:"auto_nick_on_join,omitempty"`
	EnforceSuffix          *bool   `json:"enforce_suffix,omitempty"`
	RemoveSuffixOnRoleLoss *bool   `json:"remove_suffix_on_role_loss,omitempty"`
	AttendanceExpiryHours  *int    `json:"attendance_expiry_hours,omitempty"`
	AllowSelfMarking       *bool   `json:"allow_self_marking,omitempty"`
	RequireAdminExcuse     *bool   `json:"require_admin_excuse,omitempty"`
	SuffixFormat           *string `json:"suffix_format,omitempty"`
}

// Merged applies the override on top of the defaults. An expiry below one
// hour is treated as absent: a zero or negative window would expire every
// record on the next sweep tick.
func (o SettingsOverride) Merged() Settings {
	s := DefaultSettings()
	if o.DebugMode != nil {
		s.DebugMode = *o.DebugMode
	}
	if o.AutoNickOnJoin != nil {
		s.AutoNickOnJoin = *o.AutoNickOnJoin
	}
	if o.EnforceSuffix != nil {
		s.EnforceSuffix = *o.EnforceSuffix
	}
	if o.RemoveSuffixOnRoleLoss != nil {
		s.RemoveSuffixOnRoleLoss = *o.RemoveSuffixOnRoleLoss
	}
	if o.AttendanceExpiryHours != nil && *o.AttendanceExpiryHours >= 1 {
		s.AttendanceExpiryHours = *o.AttendanceExpiryHours
	}
	if o.AllowSelfMarking != nil {
		s.AllowSelfMarking = *o.AllowSelfMarking
	}
	if o.RequireAdminExcuse != nil {
		s.RequireAdminExcuse = *o.RequireAdminExcuse
	}
	if o.SuffixFormat != nil {
		s.SuffixFormat = *o.SuffixFormat
	}
	return s
}

// Override converts effective settings back to the persisted form with
// every key populated. Saves always write the full merged structure.
func (s Settings) Override() SettingsOverride {
	return SettingsOverride{
		DebugMode:              &s.DebugMode,
		AutoNickOnJoin:         &s.AutoNickOnJoin,
		EnforceSuffix:          &s.EnforceSuffix,
		RemoveSuffixOnRoleLoss: &s.RemoveSuffixOnRoleLoss,
		AttendanceExpiryHours:  &s.AttendanceExpiryHours,
		AllowSelfMarking:       &s.AllowSelfMarking,
		RequireAdminExcuse:     &s.RequireAdminExcuse,
		SuffixFormat:           &s.SuffixFormat,
	}
}
