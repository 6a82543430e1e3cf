package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/calvdc1/Registrar-bot/internal/bot"
	"github.com/calvdc1/Registrar-bot/internal/models"
)

func mentionedRole(m *discordgo.MessageCreate) string {
	if len(m.MentionRoles) > 0 {
		return m.MentionRoles[0]
	}
	return ""
}

func mentionedChannel(args []string) string {
	for _, arg := range args {
		if strings.HasPrefix(arg, "<#") && strings.HasSuffix(arg, ">") {
			return strings.TrimSuffix(strings.TrimPrefix(arg, "<#"), ">")
		}
	}
	return ""
}

func handleStatusRole(b *bot.Bot, m *discordgo.MessageCreate, status models.Status, command, confirm string) {
	if !b.HasPermission(m, discordgo.PermissionManageRoles) {
		b.Reply(m, "You do not have permission to use this command.")
		return
	}
	roleID := mentionedRole(m)
	if roleID == "" {
		b.Reply(m, fmt.Sprintf("Usage: `%s%s @Role`", b.Prefix, command))
		return
	}
	if err := b.Engine.SetStatusRole(status, roleID); err != nil {
		b.Log.Error("failed to save role config", zap.Error(err))
		b.Reply(m, genericFailure)
		return
	}
	b.Reply(m, fmt.Sprintf(confirm, roleID))
}

// HandlePresentRole sets the role granted to present members.
func HandlePresentRole(b *bot.Bot, m *discordgo.MessageCreate, args []string) {
	handleStatusRole(b, m, models.StatusPresent, "presentrole",
		"Attendance role has been set to <@&%s>. Users who say 'present' will now receive this role.")
}

// HandleAbsentRole sets the role granted to absent members.
func HandleAbsentRole(b *bot.Bot, m *discordgo.MessageCreate, args []string) {
	handleStatusRole(b, m, models.StatusAbsent, "absentrole", "Absent role has been set to <@&%s>.")
}

// HandleExcusedRole sets the role granted to excused members.
func HandleExcusedRole(b *bot.Bot, m *discordgo.MessageCreate, args []string) {
	handleStatusRole(b, m, models.StatusExcused, "excuserole", "Excused role has been set to <@&%s>.")
}

// HandlePermitRole sets the role required for self-service marking; called
// without a role it opens marking to everyone.
func HandlePermitRole(b *bot.Bot, m *discordgo.MessageCreate, args []string) {
	if !b.HasPermission(m, discordgo.PermissionManageRoles) {
		b.Reply(m, "You do not have permission to use this command.")
		return
	}
	roleID := mentionedRole(m)
	if err := b.Engine.SetAllowedRole(roleID); err != nil {
		b.Log.Error("failed to save permit role", zap.Error(err))
		b.Reply(m, genericFailure)
		return
	}
	if roleID != "" {
		b.Reply(m, fmt.Sprintf("Permission Updated: Only users with the <@&%s> role can mark attendance.", roleID))
	} else {
		b.Reply(m, "Permission Updated: Everyone can now mark attendance.")
	}
}

// HandlePingRole sets the role mentioned on expiry notifications; called
// without a role it disables the ping.
func HandlePingRole(b *bot.Bot, m *discordgo.MessageCreate, args []string) {
	if !b.HasPermission(m, discordgo.PermissionManageRoles) {
		b.Reply(m, "You do not have permission to use this command.")
		return
	}
	roleID := mentionedRole(m)
	if err := b.Engine.SetPingRole(roleID); err != nil {
		b.Log.Error("failed to save ping role", zap.Error(err))
		b.Reply(m, genericFailure)
		return
	}
	if roleID != "" {
		b.Reply(m, fmt.Sprintf("Expiry notifications will now ping <@&%s>.", roleID))
	} else {
		b.Reply(m, "Expiry notifications will no longer ping a role.")
	}
}

// HandleWelcomeChannel sets the fallback channel for expiry notifications.
func HandleWelcomeChannel(b *bot.Bot, m *discordgo.MessageCreate, args []string) {
	if !b.HasPermission(m, discordgo.PermissionManageRoles) {
		b.Reply(m, "You do not have permission to use this command.")
		return
	}
	channelID := mentionedChannel(args)
	if err := b.Engine.SetWelcomeChannel(channelID); err != nil {
		b.Log.Error("failed to save welcome channel", zap.Error(err))
		b.Reply(m, genericFailure)
		return
	}
	if channelID != "" {
		b.Reply(m, fmt.Sprintf("Expiry notifications will fall back to <#%s>.", channelID))
	} else {
		b.Reply(m, "Fallback notification channel cleared.")
	}
}

// HandleSettings shows the effective settings.
func HandleSettings(b *bot.Bot, m *discordgo.MessageCreate, args []string) {
	if !b.HasPermission(m, discordgo.PermissionManageServer) {
		b.Reply(m, "You do not have permission to use this command.")
		return
	}
	settings, err := b.Engine.LoadSettings()
	if err != nil {
		b.Log.Error("failed to load settings", zap.Error(err))
		b.Reply(m, genericFailure)
		return
	}

	text := fmt.Sprintf("```"+`
debug_mode:                 %t
auto_nick_on_join:          %t
enforce_suffix:             %t
remove_suffix_on_role_loss: %t
attendance_expiry_hours:    %d
allow_self_marking:         %t
require_admin_excuse:       %t
suffix_format:              %q
`+"```",
		settings.DebugMode,
		settings.AutoNickOnJoin,
		settings.EnforceSuffix,
		settings.RemoveSuffixOnRoleLoss,
		settings.AttendanceExpiryHours,
		settings.AllowSelfMarking,
		settings.RequireAdminExcuse,
		settings.SuffixFormat,
	)
	b.Reply(m, text)
}

// HandleSetSetting updates one setting: !set <key> <value>.
func HandleSetSetting(b *bot.Bot, m *discordgo.MessageCreate, args []string) {
	if !b.HasPermission(m, discordgo.PermissionManageServer) {
		b.Reply(m, "You do not have permission to use this command.")
		return
	}
	if len(args) < 2 {
		b.Reply(m, "Usage: `"+b.Prefix+"set <key> <value>` (see `"+b.Prefix+"settings` for keys)")
		return
	}

	settings, err := b.Engine.LoadSettings()
	if err != nil {
		b.Log.Error("failed to load settings", zap.Error(err))
		b.Reply(m, genericFailure)
		return
	}

	key := strings.ToLower(args[0])
	value := strings.Join(args[1:], " ")

	setBool := func(dst *bool) bool {
		v, err := strconv.ParseBool(value)
		if err != nil {
			b.Reply(m, fmt.Sprintf("Invalid value %q for %s, expected true or false.", value, key))
			return false
		}
		*dst = v
		return true
	}

	switch key {
	case "debug_mode":
		if !setBool(&settings.DebugMode) {
			return
		}
	case "auto_nick_on_join":
		if !setBool(&settings.AutoNickOnJoin) {
			return
		}
	case "enforce_suffix":
		if !setBool(&settings.EnforceSuffix) {
			return
		}
	case "remove_suffix_on_role_loss":
		if !setBool(&settings.RemoveSuffixOnRoleLoss) {
			return
		}
	case "allow_self_marking":
		if !setBool(&settings.AllowSelfMarking) {
			return
		}
	case "require_admin_excuse":
		if !setBool(&settings.RequireAdminExcuse) {
			return
		}
	case "attendance_expiry_hours":
		hours, err := strconv.Atoi(value)
		if err != nil || hours < 1 {
			b.Reply(m, "attendance_expiry_hours must be a whole number of hours, at least 1.")
			return
		}
		settings.AttendanceExpiryHours = hours
	case "suffix_format":
		settings.SuffixFormat = value
	default:
		b.Reply(m, fmt.Sprintf("Unknown setting %q. See `%ssettings` for available keys.", key, b.Prefix))
		return
	}

	if err := b.Engine.SaveSettings(settings); err != nil {
		b.Log.Error("failed to save settings", zap.Error(err))
		b.Reply(m, genericFailure)
		return
	}
	b.Reply(m, fmt.Sprintf("Setting `%s` updated.", key))
}
