package handlers

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/calvdc1/Registrar-bot/internal/bot"
	"github.com/calvdc1/Registrar-bot/internal/nickname"
)

// HandleNick lets a member set their own suffixed nickname, or remove the
// suffix with "nick remove".
func HandleNick(b *bot.Bot, m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		b.Reply(m, "Usage: Type `"+b.Prefix+"nick YourName` to change your nickname, or `"+b.Prefix+"nick remove` to remove the suffix.")
		return
	}

	member, err := b.Member(m.GuildID, m.Author.ID)
	if err != nil {
		b.Log.Warn("failed to resolve member", zap.Error(err))
		b.Reply(m, genericFailure)
		return
	}
	if ok, reason := b.CanManageNick(m.GuildID, member); !ok {
		b.Reply(m, "Failed: "+reason)
		return
	}

	settings, err := b.Engine.LoadSettings()
	if err != nil {
		b.Log.Error("failed to load settings", zap.Error(err))
		b.Reply(m, genericFailure)
		return
	}

	if strings.EqualFold(args[0], "remove") && len(args) == 1 {
		display := member.Nick
		if display == "" {
			display = member.User.Username
		}
		stripped := nickname.Strip(display, settings.SuffixFormat, m.Author.Username)
		if err := b.SetNickname(m.GuildID, m.Author.ID, stripped); err != nil {
			b.Log.Warn("failed to remove suffix", zap.Error(err))
			b.Reply(m, "Failed: I don't have permission to change your nickname. Ensure my role is higher than yours in the server settings.")
			return
		}
		b.Reply(m, fmt.Sprintf("Nickname suffix removed for %s.", m.Author.Mention()))
		return
	}

	nick := nickname.Apply(strings.Join(args, " "), settings.SuffixFormat)
	if err := b.SetNickname(m.GuildID, m.Author.ID, nick); err != nil {
		b.Log.Warn("failed to set nickname", zap.Error(err))
		b.Reply(m, "Failed: I don't have permission to change your nickname. Ensure my role is higher than yours in the server settings.")
		return
	}
	b.Reply(m, fmt.Sprintf("Successfully changed nickname for %s to `%s`", m.Author.Mention(), nick))
}

// HandleSetNick sets another member's suffixed nickname. Admin only.
func HandleSetNick(b *bot.Bot, m *discordgo.MessageCreate, args []string) {
	if !b.HasPermission(m, discordgo.PermissionManageNicknames) {
		b.Reply(m, "You do not have permission to use this command.")
		return
	}

	target := mentionedUser(m)
	var nameWords []string
	for _, arg := range args {
		if !isMentionToken(arg) {
			nameWords = append(nameWords, arg)
		}
	}
	if target == nil || len(nameWords) == 0 {
		b.Reply(m, "Usage: `"+b.Prefix+"setnick @Member New Name`")
		return
	}

	member, err := b.Member(m.GuildID, target.ID)
	if err != nil {
		b.Log.Warn("failed to resolve member", zap.Error(err))
		b.Reply(m, genericFailure)
		return
	}
	if ok, reason := b.CanManageNick(m.GuildID, member); !ok {
		b.Reply(m, "Failed: "+reason)
		return
	}

	settings, err := b.Engine.LoadSettings()
	if err != nil {
		b.Log.Error("failed to load settings", zap.Error(err))
		b.Reply(m, genericFailure)
		return
	}

	nick := nickname.Apply(strings.Join(nameWords, " "), settings.SuffixFormat)
	if err := b.SetNickname(m.GuildID, target.ID, nick); err != nil {
		b.Log.Warn("failed to set nickname", zap.Error(err))
		b.Reply(m, "Failed: I don't have permission to change that user's nickname.")
		return
	}
	b.Reply(m, fmt.Sprintf("Successfully changed nickname for %s to `%s`", target.Mention(), nick))
}
