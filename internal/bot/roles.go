package bot

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/calvdc1/Registrar-bot/internal/attendance"
)

// The engine is guild-agnostic; the adapter resolves users and roles by
// scanning every guild the session is in. Role IDs are unique across
// Discord, so the first guild that knows the ID wins.

// Member resolves a guild member, preferring the state cache.
func (b *Bot) Member(guildID, userID string) (*discordgo.Member, error) {
	if m, err := b.Session.State.Member(guildID, userID); err == nil {
		return m, nil
	}
	return b.Session.GuildMember(guildID, userID)
}

// memberGuild finds the guild a user is a member of.
func (b *Bot) memberGuild(userID string) (string, *discordgo.Member) {
	for _, g := range b.Session.State.Guilds {
		if m, err := b.Member(g.ID, userID); err == nil {
			return g.ID, m
		}
	}
	return "", nil
}

func (b *Bot) MemberExists(userID string) bool {
	_, m := b.memberGuild(userID)
	return m != nil
}

func (b *Bot) HasRole(userID, roleID string) bool {
	_, m := b.memberGuild(userID)
	if m == nil {
		return false
	}
	for _, r := range m.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

func (b *Bot) GrantRole(userID, roleID string) error {
	guildID, m := b.memberGuild(userID)
	if m == nil {
		return fmt.Errorf("user %s is not a member of any known guild", userID)
	}
	return wrapForbidden(b.Session.GuildMemberRoleAdd(guildID, userID, roleID))
}

func (b *Bot) RevokeRole(userID, roleID string) error {
	guildID, m := b.memberGuild(userID)
	if m == nil {
		return fmt.Errorf("user %s is not a member of any known guild", userID)
	}
	return wrapForbidden(b.Session.GuildMemberRoleRemove(guildID, userID, roleID))
}

func (b *Bot) RoleName(roleID string) (string, bool) {
	for _, g := range b.Session.State.Guilds {
		if r, err := b.Session.State.Role(g.ID, roleID); err == nil {
			return r.Name, true
		}
	}
	return "", false
}

func (b *Bot) SendToChannel(channelID, text string) error {
	_, err := b.Session.ChannelMessageSend(channelID, text)
	return wrapForbidden(err)
}

func (b *Bot) ChannelExists(channelID string) bool {
	if _, err := b.Session.State.Channel(channelID); err == nil {
		return true
	}
	_, err := b.Session.Channel(channelID)
	return err == nil
}

// DisplayName is the member's nickname when set, otherwise the account
// username; falls back to an id-based placeholder for departed members.
func (b *Bot) DisplayName(userID string) string {
	_, m := b.memberGuild(userID)
	if m == nil {
		return fmt.Sprintf("Unknown User (%s)", userID)
	}
	if m.Nick != "" {
		return m.Nick
	}
	return m.User.Username
}

// SetNickname edits a member's guild nickname.
func (b *Bot) SetNickname(guildID, userID, nick string) error {
	return wrapForbidden(b.Session.GuildMemberNickname(guildID, userID, nick))
}

// CanManageNick checks Discord's hierarchy rules before a nickname edit:
// the guild owner is untouchable, and so is anyone whose top role sits at
// or above the bot's.
func (b *Bot) CanManageNick(guildID string, member *discordgo.Member) (bool, string) {
	guild, err := b.Session.State.Guild(guildID)
	if err != nil {
		return false, "I could not resolve this server."
	}
	if member.User.ID == guild.OwnerID {
		return false, "I cannot change the Server Owner's nickname due to Discord's security limitations."
	}

	botMember, err := b.Member(guildID, b.Session.State.User.ID)
	if err != nil {
		return false, "I could not resolve my own membership in this server."
	}
	if topRolePosition(guild, member) >= topRolePosition(guild, botMember) {
		return false, fmt.Sprintf(
			"I cannot change %s's nickname because their top role is higher than or equal to mine. Please move my role higher in the Server Settings.",
			displayNameOf(member))
	}
	return true, ""
}

func topRolePosition(guild *discordgo.Guild, member *discordgo.Member) int {
	top := -1
	for _, roleID := range member.Roles {
		for _, role := range guild.Roles {
			if role.ID == roleID && role.Position > top {
				top = role.Position
			}
		}
	}
	return top
}

func displayNameOf(member *discordgo.Member) string {
	if member.Nick != "" {
		return member.Nick
	}
	return member.User.Username
}

func wrapForbidden(err error) error {
	if err == nil {
		return nil
	}
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %v", attendance.ErrForbidden, err)
	}
	return err
}
