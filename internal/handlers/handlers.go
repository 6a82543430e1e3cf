package handlers

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/calvdc1/Registrar-bot/internal/attendance"
	"github.com/calvdc1/Registrar-bot/internal/bot"
	"github.com/calvdc1/Registrar-bot/internal/models"
	"github.com/calvdc1/Registrar-bot/internal/nickname"
)

// Register wires every command, keyword and member hook into the bot's
// dispatch tables.
func Register(b *bot.Bot) {
	b.RegisterCommand("present", HandlePresent)
	b.RegisterCommand("absent", HandleAbsent)
	b.RegisterCommand("excuse", HandleExcuse)
	b.RegisterCommand("removepresent", HandleRemovePresent)
	b.RegisterCommand("attendance", HandleAttendanceReport)

	b.RegisterCommand("presentrole", HandlePresentRole)
	b.RegisterCommand("assignrole", HandlePresentRole) // legacy alias
	b.RegisterCommand("absentrole", HandleAbsentRole)
	b.RegisterCommand("excuserole", HandleExcusedRole)
	b.RegisterCommand("setpermitrole", HandlePermitRole)
	b.RegisterCommand("allowrole", HandlePermitRole) // legacy alias
	b.RegisterCommand("pingrole", HandlePingRole)
	b.RegisterCommand("welcomechannel", HandleWelcomeChannel)

	b.RegisterCommand("nick", HandleNick)
	b.RegisterCommand("setnick", HandleSetNick)
	b.RegisterCommand("settings", HandleSettings)
	b.RegisterCommand("set", HandleSetSetting)

	b.RegisterKeyword("present", HandleKeywordPresent)
	b.RegisterKeyword("excuse", HandleKeywordExcuse)

	b.OnMemberJoin(HandleMemberJoin)
	b.OnMemberUpdate(HandleMemberUpdate)
}

const genericFailure = "Something went wrong, please try again later."

func mentionedUser(m *discordgo.MessageCreate) *discordgo.User {
	if len(m.Mentions) > 0 {
		return m.Mentions[0]
	}
	return nil
}

func isMentionToken(arg string) bool {
	return strings.HasPrefix(arg, "<@") && strings.HasSuffix(arg, ">")
}

// outcomeMessage renders a transition outcome the way the original bot
// announced it, warnings first.
func outcomeMessage(b *bot.Bot, target *discordgo.User, out *attendance.Outcome) string {
	var lines []string
	for _, r := range out.Revoked {
		if r.Err != nil {
			name := r.Name
			if name == "" {
				name = r.RoleID
			}
			lines = append(lines, fmt.Sprintf(
				"Warning: Could not remove role %s from %s (Missing Permissions)",
				name, b.DisplayName(target.ID)))
		}
	}

	upper := strings.ToUpper(string(out.Status))
	switch {
	case out.Granted == nil:
		lines = append(lines, fmt.Sprintf(
			"Marked %s as **%s**. (No role configured for this status)",
			target.Mention(), upper))
	case out.Granted.Err != nil:
		lines = append(lines, fmt.Sprintf(
			"Failed to give %s role to %s (Missing Permissions)",
			out.Status, b.DisplayName(target.ID)))
	default:
		lines = append(lines, fmt.Sprintf(
			"Marked %s as **%s** and gave them the %s role.",
			target.Mention(), upper, out.Granted.Name))
	}
	return strings.Join(lines, "\n")
}

// HandlePresent marks the author, or a mentioned member, as present.
func HandlePresent(b *bot.Bot, m *discordgo.MessageCreate, args []string) {
	target := mentionedUser(m)
	self := target == nil || target.ID == m.Author.ID
	if target == nil {
		target = m.Author
	}

	if self {
		doc, err := b.Engine.Snapshot()
		if err != nil {
			b.Log.Error("failed to load document", zap.Error(err))
			b.Reply(m, genericFailure)
			return
		}
		if !doc.Settings.Merged().AllowSelfMarking {
			b.Reply(m, "Self-service attendance marking is disabled on this server.")
			return
		}
		if allowed := string(doc.AllowedRoleID); allowed != "" {
			if _, ok := b.RoleName(allowed); ok && !b.HasRole(m.Author.ID, allowed) {
				b.Reply(m, fmt.Sprintf("You need the <@&%s> role to mark attendance.", allowed))
				return
			}
		}
	} else if !b.HasPermission(m, discordgo.PermissionManageRoles) {
		b.Reply(m, "You do not have permission to mark others as present.")
		return
	}

	out, err := b.Engine.SetStatus(target.ID, models.StatusPresent, "", m.ChannelID)
	if err != nil {
		b.Log.Error("failed to set status", zap.Error(err))
		b.Reply(m, genericFailure)
		return
	}
	b.Reply(m, outcomeMessage(b, target, out))
}

// HandleAbsent marks a mentioned member as absent. Admin only.
func HandleAbsent(b *bot.Bot, m *discordgo.MessageCreate, args []string) {
	if !b.HasPermission(m, discordgo.PermissionManageRoles) {
		b.Reply(m, "You do not have permission to use this command.")
		return
	}
	target := mentionedUser(m)
	if target == nil {
		b.Reply(m, "Usage: `"+b.Prefix+"absent @User`")
		return
	}

	out, err := b.Engine.SetStatus(target.ID, models.StatusAbsent, "", m.ChannelID)
	if err != nil {
		b.Log.Error("failed to set status", zap.Error(err))
		b.Reply(m, genericFailure)
		return
	}
	b.Reply(m, outcomeMessage(b, target, out))
}

// HandleExcuse marks a member as excused, with an optional reason. Members
// may excuse themselves when require_admin_excuse is off; excusing others
// always needs Manage Roles.
func HandleExcuse(b *bot.Bot, m *discordgo.MessageCreate, args []string) {
	target := mentionedUser(m)
	self := target == nil || target.ID == m.Author.ID
	if target == nil {
		target = m.Author
	}

	isAdmin := b.HasPermission(m, discordgo.PermissionManageRoles)
	if !self && !isAdmin {
		b.Reply(m, "You do not have permission to excuse others.")
		return
	}
	if self && !isAdmin {
		settings, err := b.Engine.LoadSettings()
		if err != nil {
			b.Log.Error("failed to load settings", zap.Error(err))
			b.Reply(m, genericFailure)
			return
		}
		if settings.RequireAdminExcuse {
			b.Reply(m, "Only members with Manage Roles can mark excused on this server.")
			return
		}
	}

	var reasonWords []string
	for _, arg := range args {
		if !isMentionToken(arg) {
			reasonWords = append(reasonWords, arg)
		}
	}
	reason := strings.Join(reasonWords, " ")

	out, err := b.Engine.SetStatus(target.ID, models.StatusExcused, reason, m.ChannelID)
	if err != nil {
		b.Log.Error("failed to set status", zap.Error(err))
		b.Reply(m, genericFailure)
		return
	}
	b.Reply(m, outcomeMessage(b, target, out))
}

// HandleRemovePresent resets a member's attendance so they can mark again.
func HandleRemovePresent(b *bot.Bot, m *discordgo.MessageCreate, args []string) {
	if !b.HasPermission(m, discordgo.PermissionManageRoles) {
		b.Reply(m, "You do not have permission to use this command.")
		return
	}
	target := mentionedUser(m)
	if target == nil {
		b.Reply(m, "Usage: `"+b.Prefix+"removepresent @User`")
		return
	}

	out, err := b.Engine.Reset(target.ID)
	if err != nil {
		b.Log.Error("failed to reset attendance", zap.Error(err))
		b.Reply(m, genericFailure)
		return
	}
	for _, r := range out.Revoked {
		if r.Err != nil {
			b.Reply(m, "Warning: Could not remove role (Missing Permissions).")
		}
	}
	b.Reply(m, fmt.Sprintf("Reset attendance for %s. They can now say 'present' again.", target.Mention()))
}

// HandleAttendanceReport posts the grouped attendance embed.
func HandleAttendanceReport(b *bot.Bot, m *discordgo.MessageCreate, args []string) {
	sendReport(b, m.ChannelID)
}

func sendReport(b *bot.Bot, channelID string) {
	rep, err := b.Engine.Report()
	if err != nil {
		b.Log.Error("failed to build report", zap.Error(err))
		_ = b.SendToChannel(channelID, genericFailure)
		return
	}

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Attendance Report - %s", rep.GeneratedAt.Format("January 02, 2006")),
		Color: 0x3498db,
		Fields: []*discordgo.MessageEmbedField{
			{Name: fmt.Sprintf("✅ Present (%d)", len(rep.Present)), Value: entryList(b, rep.Present)},
			{Name: fmt.Sprintf("❌ Absent (%d)", len(rep.Absent)), Value: entryList(b, rep.Absent)},
			{Name: fmt.Sprintf("⚠️ Excused (%d)", len(rep.Excused)), Value: entryList(b, rep.Excused)},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Generated at %s", rep.GeneratedAt.Format("03:04 PM")),
		},
	}
	if err := b.SendEmbed(channelID, embed); err != nil {
		b.Log.Warn("failed to send report embed", zap.Error(err))
	}
}

func entryList(b *bot.Bot, entries []attendance.Entry) string {
	if len(entries) == 0 {
		return "None"
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		line := b.DisplayName(e.UserID)
		if e.Reason != "" {
			line += " - " + e.Reason
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// HandleKeywordPresent is the bare "present" message shortcut: role-gated,
// skipped when the member already holds the present role, acknowledged
// with a reaction and an automatic report.
func HandleKeywordPresent(b *bot.Bot, m *discordgo.MessageCreate, _ []string) {
	doc, err := b.Engine.Snapshot()
	if err != nil {
		b.Log.Error("failed to load document", zap.Error(err))
		return
	}
	if !doc.Settings.Merged().AllowSelfMarking {
		return
	}
	// Ignore silently when the author lacks the permit role, to avoid spam.
	if allowed := string(doc.AllowedRoleID); allowed != "" {
		if _, ok := b.RoleName(allowed); ok && !b.HasRole(m.Author.ID, allowed) {
			return
		}
	}

	roleID := string(doc.PresentRoleID)
	if roleID == "" {
		return
	}
	roleName, ok := b.RoleName(roleID)
	if !ok {
		return
	}
	if b.HasRole(m.Author.ID, roleID) {
		b.Reply(m, fmt.Sprintf("%s, you have already marked your attendance!", m.Author.Mention()))
		return
	}

	out, err := b.Engine.SetStatus(m.Author.ID, models.StatusPresent, "", m.ChannelID)
	if err != nil {
		b.Log.Error("failed to set status", zap.Error(err))
		b.Reply(m, genericFailure)
		return
	}
	if out.Granted != nil && out.Granted.Err != nil {
		b.Reply(m, "I tried to give you the role, but I don't have permission! Please check my role hierarchy.")
		return
	}

	b.React(m, "✅")
	b.Reply(m, fmt.Sprintf("Attendance marked for %s! You have been given the %s role.", m.Author.Mention(), roleName))
	sendReport(b, m.ChannelID)
}

// HandleKeywordExcuse is the bare "excuse" message shortcut.
func HandleKeywordExcuse(b *bot.Bot, m *discordgo.MessageCreate, _ []string) {
	doc, err := b.Engine.Snapshot()
	if err != nil {
		b.Log.Error("failed to load document", zap.Error(err))
		return
	}
	if doc.Settings.Merged().RequireAdminExcuse && !b.HasPermission(m, discordgo.PermissionManageRoles) {
		return
	}

	roleID := string(doc.ExcusedRoleID)
	if roleID == "" {
		return
	}
	roleName, ok := b.RoleName(roleID)
	if !ok {
		return
	}
	if b.HasRole(m.Author.ID, roleID) {
		b.Reply(m, fmt.Sprintf("%s, you have already marked your status as excused!", m.Author.Mention()))
		return
	}

	out, err := b.Engine.SetStatus(m.Author.ID, models.StatusExcused, "", m.ChannelID)
	if err != nil {
		b.Log.Error("failed to set status", zap.Error(err))
		b.Reply(m, genericFailure)
		return
	}
	if out.Granted != nil && out.Granted.Err != nil {
		b.Reply(m, "I tried to give you the role, but I don't have permission! Please check my role hierarchy.")
		return
	}

	b.React(m, "✅")
	b.Reply(m, fmt.Sprintf("Excused status marked for %s! You have been given the %s role.", m.Author.Mention(), roleName))
	sendReport(b, m.ChannelID)
}

// HandleMemberJoin applies the suffix to newcomers when auto_nick_on_join
// is enabled.
func HandleMemberJoin(b *bot.Bot, guildID string, member *discordgo.Member) {
	settings, err := b.Engine.LoadSettings()
	if err != nil {
		b.Log.Error("failed to load settings", zap.Error(err))
		return
	}
	if !settings.AutoNickOnJoin {
		return
	}

	nick := nickname.Apply(member.User.Username, settings.SuffixFormat)
	if nick == member.User.Username {
		return
	}
	if err := b.SetNickname(guildID, member.User.ID, nick); err != nil {
		b.Log.Warn("failed to apply join nickname",
			zap.String("user_id", member.User.ID),
			zap.Error(err))
	}
}

// HandleMemberUpdate enforces the suffix and strips it from members who
// lost their last role, per the enforce_suffix and
// remove_suffix_on_role_loss settings.
func HandleMemberUpdate(b *bot.Bot, u *discordgo.GuildMemberUpdate) {
	settings, err := b.Engine.LoadSettings()
	if err != nil {
		b.Log.Error("failed to load settings", zap.Error(err))
		return
	}

	display := u.Nick
	if display == "" {
		display = u.User.Username
	}

	if settings.RemoveSuffixOnRoleLoss && len(u.Roles) == 0 {
		stripped := nickname.Strip(display, settings.SuffixFormat, u.User.Username)
		if stripped != display {
			if err := b.SetNickname(u.GuildID, u.User.ID, stripped); err != nil {
				b.Log.Warn("failed to strip suffix", zap.Error(err))
			}
		}
		return
	}

	if settings.EnforceSuffix {
		enforced := nickname.Apply(display, settings.SuffixFormat)
		if enforced != display {
			if err := b.SetNickname(u.GuildID, u.User.ID, enforced); err != nil {
				b.Log.Warn("failed to enforce suffix", zap.Error(err))
			}
		}
	}
}
