// Package bot wraps the Discord session and routes gateway events to the
// registered handlers. All platform I/O the engine needs goes through the
// adapter methods in roles.go, so the core never touches the session.
package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/calvdc1/Registrar-bot/internal/attendance"
	"github.com/calvdc1/Registrar-bot/pkg/logger"
)

type CommandFunc func(b *Bot, m *discordgo.MessageCreate, args []string)

type MemberFunc func(b *Bot, guildID string, member *discordgo.Member)

type MemberUpdateFunc func(b *Bot, u *discordgo.GuildMemberUpdate)

type Bot struct {
	Session *discordgo.Session
	Engine  *attendance.Engine
	Prefix  string
	Log     *zap.Logger

	// Explicit dispatch tables: command word (after the prefix) and bare
	// message keywords like "present".
	commands map[string]CommandFunc
	keywords map[string]CommandFunc

	memberJoin   MemberFunc
	memberUpdate MemberUpdateFunc
}

func New(token, prefix string, log *zap.Logger) (*Bot, error) {
	if log == nil {
		log = zap.NewNop()
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentMessageContent
	session.StateEnabled = true

	b := &Bot{
		Session:  session,
		Prefix:   prefix,
		Log:      log,
		commands: make(map[string]CommandFunc),
		keywords: make(map[string]CommandFunc),
	}

	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onGuildMemberAdd)
	session.AddHandler(b.onGuildMemberUpdate)

	return b, nil
}

func (b *Bot) RegisterCommand(name string, fn CommandFunc) {
	b.commands[strings.ToLower(name)] = fn
}

func (b *Bot) RegisterKeyword(word string, fn CommandFunc) {
	b.keywords[strings.ToLower(word)] = fn
}

func (b *Bot) OnMemberJoin(fn MemberFunc) {
	b.memberJoin = fn
}

func (b *Bot) OnMemberUpdate(fn MemberUpdateFunc) {
	b.memberUpdate = fn
}

func (b *Bot) Open() error {
	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway connection: %w", err)
	}
	return nil
}

func (b *Bot) Close() error {
	return b.Session.Close()
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.Log.Info("logged in",
		zap.String("username", r.User.Username),
		zap.Int("guilds", len(r.Guilds)))
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == s.State.User.ID {
		return
	}
	if m.GuildID == "" {
		return
	}

	content := strings.TrimSpace(m.Content)
	if strings.HasPrefix(content, b.Prefix) {
		fields := strings.Fields(strings.TrimPrefix(content, b.Prefix))
		if len(fields) == 0 {
			return
		}
		name := strings.ToLower(fields[0])
		fn, ok := b.commands[name]
		if !ok {
			return
		}
		b.Log.Debug("dispatching command",
			zap.String("command", name),
			zap.String(logger.FieldUserID, m.Author.ID),
			zap.String(logger.FieldChannelID, m.ChannelID))
		fn(b, m, fields[1:])
		return
	}

	if fn, ok := b.keywords[strings.ToLower(content)]; ok {
		fn(b, m, nil)
	}
}

func (b *Bot) onGuildMemberAdd(_ *discordgo.Session, e *discordgo.GuildMemberAdd) {
	b.Log.Info("member joined",
		zap.String(logger.FieldGuildID, e.GuildID),
		zap.String(logger.FieldUserID, e.User.ID))
	if b.memberJoin != nil {
		b.memberJoin(b, e.GuildID, e.Member)
	}
}

func (b *Bot) onGuildMemberUpdate(_ *discordgo.Session, e *discordgo.GuildMemberUpdate) {
	if b.memberUpdate != nil {
		b.memberUpdate(b, e)
	}
}

// Reply sends plain text to the channel the triggering message came from.
func (b *Bot) Reply(m *discordgo.MessageCreate, text string) {
	if err := b.SendToChannel(m.ChannelID, text); err != nil {
		b.Log.Warn("failed to send reply",
			zap.String(logger.FieldChannelID, m.ChannelID),
			zap.Error(err))
	}
}

func (b *Bot) SendEmbed(channelID string, embed *discordgo.MessageEmbed) error {
	_, err := b.Session.ChannelMessageSendEmbed(channelID, embed)
	return err
}

func (b *Bot) React(m *discordgo.MessageCreate, emoji string) {
	if err := b.Session.MessageReactionAdd(m.ChannelID, m.ID, emoji); err != nil {
		b.Log.Debug("failed to add reaction", zap.Error(err))
	}
}

// HasPermission reports whether the message author holds the given
// permission bits in the channel the message was sent to.
func (b *Bot) HasPermission(m *discordgo.MessageCreate, perm int64) bool {
	perms, err := b.Session.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		b.Log.Warn("failed to resolve permissions",
			zap.String(logger.FieldUserID, m.Author.ID),
			zap.Error(err))
		return false
	}
	return perms&perm == perm
}
