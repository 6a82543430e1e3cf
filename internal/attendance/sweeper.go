package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calvdc1/Registrar-bot/internal/models"
	"github.com/calvdc1/Registrar-bot/pkg/logger"
)

// Run drives Sweep on a fixed interval until the context ends.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.log.Info("expiry sweeper started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			e.log.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			if err := e.Sweep(e.now()); err != nil {
				e.log.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep expires every record strictly older than the configured window:
// revokes the status role when the member still holds it, notifies the
// origin channel (falling back to the welcome channel), and deletes the
// expired records in one batched write. Records with a missing or
// unparsable timestamp are treated as already expired.
func (e *Engine) Sweep(now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, err := e.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load attendance data: %w", err)
	}

	// Expiry hours are read once per sweep; a mid-sweep settings change
	// applies on the next sweep.
	settings := doc.Settings.Merged()
	window := time.Duration(settings.AttendanceExpiryHours) * time.Hour

	log := e.log.With(zap.String(logger.FieldSweepID, uuid.NewString()))
	if settings.DebugMode {
		log.Info("sweep started",
			zap.Int("records", len(doc.Records)),
			zap.Duration("window", window))
	}

	expired := make(map[string]struct{})
	for userID, rec := range doc.Records {
		ts, err := rec.Time()
		if err != nil {
			log.Warn("record has unusable timestamp, expiring",
				zap.String(logger.FieldUserID, userID),
				zap.Error(err))
			expired[userID] = struct{}{}
			continue
		}

		age := now.Sub(ts)
		if age <= window {
			continue
		}

		e.expireRecord(log, doc, userID, rec)
		expired[userID] = struct{}{}
	}

	if len(expired) == 0 {
		return nil
	}

	for userID := range expired {
		delete(doc.Records, userID)
	}
	if err := e.store.Save(doc); err != nil {
		return fmt.Errorf("failed to save attendance data: %w", err)
	}

	log.Info("sweep expired records", zap.Int("expired", len(expired)))
	return nil
}

func (e *Engine) expireRecord(log *zap.Logger, doc *models.Document, userID string, rec models.AttendanceRecord) {
	roleID := string(doc.RoleID(rec.Status))
	// A member gone from the guild is skipped for role work but the record
	// is still deleted, so stale records cannot outlive membership changes.
	if roleID != "" && e.roles.MemberExists(userID) && e.roles.HasRole(userID, roleID) {
		if err := e.roles.RevokeRole(userID, roleID); err != nil {
			log.Warn("failed to revoke expired role",
				zap.String(logger.FieldUserID, userID),
				zap.String(logger.FieldRoleID, roleID),
				zap.Error(err))
		} else {
			log.Info("removed expired status role",
				zap.String(logger.FieldUserID, userID),
				zap.String(logger.FieldStatus, string(rec.Status)))
		}
	}

	channelID := string(rec.OriginChannelID)
	if channelID == "" || !e.notify.ChannelExists(channelID) {
		channelID = string(doc.WelcomeChannelID)
	}
	if channelID == "" || !e.notify.ChannelExists(channelID) {
		return
	}

	text := fmt.Sprintf("<@%s> your **%s** status has expired. You may mark your attendance again.", userID, rec.Status)
	if doc.PingRoleID != "" {
		text = fmt.Sprintf("<@&%s> %s", doc.PingRoleID, text)
	}
	if err := e.notify.SendToChannel(channelID, text); err != nil {
		log.Warn("failed to send expiry notification",
			zap.String(logger.FieldUserID, userID),
			zap.String(logger.FieldChannelID, channelID),
			zap.Error(err))
	}
}
