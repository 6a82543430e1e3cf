// Package attendance holds the status transition engine and the expiry
// reconciler. The persisted record is the source of truth; roles are a
// best-effort side effect and are allowed to diverge transiently when the
// platform denies an operation.
package attendance

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/calvdc1/Registrar-bot/internal/models"
	"github.com/calvdc1/Registrar-bot/internal/store"
	"github.com/calvdc1/Registrar-bot/pkg/logger"
)

// ErrForbidden marks a role or nickname operation the platform rejected for
// missing permissions. Callers surface it as a warning, never a failure.
var ErrForbidden = errors.New("missing permissions")

// RoleService is the narrow slice of the platform the engine needs for
// membership and roles.
type RoleService interface {
	HasRole(userID, roleID string) bool
	GrantRole(userID, roleID string) error
	RevokeRole(userID, roleID string) error
	// RoleName reports whether the role still exists, and its name.
	RoleName(roleID string) (string, bool)
	MemberExists(userID string) bool
}

// Notifier delivers expiry notifications.
type Notifier interface {
	SendToChannel(channelID, text string) error
	ChannelExists(channelID string) bool
}

type Engine struct {
	store  store.Store
	roles  RoleService
	notify Notifier
	log    *zap.Logger

	// mu serializes every load-mutate-save span. Gateway events are
	// dispatched on separate goroutines and the sweeper runs on its own,
	// so without this two concurrent transitions would overwrite each
	// other's record: the store only guards individual Load/Save calls.
	mu sync.Mutex

	now func() time.Time
}

func NewEngine(st store.Store, roles RoleService, notify Notifier, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:  st,
		roles:  roles,
		notify: notify,
		log:    log,
		now:    time.Now,
	}
}

// RoleResult is the outcome of a single role grant or revoke.
type RoleResult struct {
	RoleID string
	Name   string
	Err    error
}

// Outcome reports what a transition did, per role operation, for handler
// display. Role failures never abort the transition.
type Outcome struct {
	Status  models.Status
	Revoked []RoleResult
	// Granted is nil when the target status has no configured (or still
	// existing) role.
	Granted *RoleResult
}

// Warnings aggregates every failed role operation.
func (o *Outcome) Warnings() error {
	var err error
	for _, r := range o.Revoked {
		if r.Err != nil {
			err = multierr.Append(err, fmt.Errorf("revoke %s: %w", r.RoleID, r.Err))
		}
	}
	if o.Granted != nil && o.Granted.Err != nil {
		err = multierr.Append(err, fmt.Errorf("grant %s: %w", o.Granted.RoleID, o.Granted.Err))
	}
	return err
}

// SetStatus transitions a user to the requested status: revokes the roles
// of the two other statuses when held, grants the target's role when
// configured, and unconditionally replaces the user's record. The record
// write is the only operation that can fail the call; reason is kept only
// for excused.
func (e *Engine) SetStatus(userID string, status models.Status, reason, originChannelID string) (*Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, err := e.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance data: %w", err)
	}

	if status != models.StatusExcused {
		reason = ""
	}

	out := &Outcome{Status: status}
	for _, other := range status.Others() {
		roleID := string(doc.RoleID(other))
		if roleID == "" || !e.roles.HasRole(userID, roleID) {
			continue
		}
		res := RoleResult{RoleID: roleID}
		res.Name, _ = e.roles.RoleName(roleID)
		res.Err = e.roles.RevokeRole(userID, roleID)
		out.Revoked = append(out.Revoked, res)
	}

	if roleID := string(doc.RoleID(status)); roleID != "" {
		if name, ok := e.roles.RoleName(roleID); ok {
			res := &RoleResult{RoleID: roleID, Name: name}
			res.Err = e.roles.GrantRole(userID, roleID)
			out.Granted = res
		}
	}

	if warn := out.Warnings(); warn != nil {
		e.log.Warn("role operations failed during transition",
			zap.String(logger.FieldUserID, userID),
			zap.String(logger.FieldStatus, string(status)),
			zap.Error(warn))
	}

	doc.Records[userID] = models.AttendanceRecord{
		Status:          status,
		Timestamp:       models.FormatTimestamp(e.now()),
		Reason:          reason,
		OriginChannelID: models.ID(originChannelID),
	}
	if err := e.store.Save(doc); err != nil {
		return nil, fmt.Errorf("failed to save attendance data: %w", err)
	}

	e.log.Info("status updated",
		zap.String(logger.FieldUserID, userID),
		zap.String(logger.FieldStatus, string(status)))
	return out, nil
}

// Reset deletes a user's record and revokes the role of the recorded
// status, so they can mark attendance again. Resetting a user with no
// record is a no-op.
func (e *Engine) Reset(userID string) (*Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, err := e.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance data: %w", err)
	}

	rec, ok := doc.Records[userID]
	status := models.StatusPresent
	if ok {
		status = rec.Status
	}

	out := &Outcome{Status: status}
	if roleID := string(doc.RoleID(status)); roleID != "" && e.roles.HasRole(userID, roleID) {
		res := RoleResult{RoleID: roleID}
		res.Name, _ = e.roles.RoleName(roleID)
		res.Err = e.roles.RevokeRole(userID, roleID)
		if res.Err != nil {
			e.log.Warn("failed to revoke role on reset",
				zap.String(logger.FieldUserID, userID),
				zap.String(logger.FieldRoleID, roleID),
				zap.Error(res.Err))
		}
		out.Revoked = append(out.Revoked, res)
	}

	if !ok {
		return out, nil
	}

	delete(doc.Records, userID)
	if err := e.store.Save(doc); err != nil {
		return nil, fmt.Errorf("failed to save attendance data: %w", err)
	}
	return out, nil
}

// Entry is one user's line in a report.
type Entry struct {
	UserID string
	Reason string
}

// Report groups current records by status.
type Report struct {
	Present     []Entry
	Absent      []Entry
	Excused     []Entry
	GeneratedAt time.Time
}

func (e *Engine) Report() (*Report, error) {
	doc, err := e.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance data: %w", err)
	}

	rep := &Report{GeneratedAt: e.now()}
	ids := make([]string, 0, len(doc.Records))
	for id := range doc.Records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		rec := doc.Records[id]
		entry := Entry{UserID: id, Reason: rec.Reason}
		switch rec.Status {
		case models.StatusAbsent:
			rep.Absent = append(rep.Absent, entry)
		case models.StatusExcused:
			rep.Excused = append(rep.Excused, entry)
		default:
			rep.Present = append(rep.Present, entry)
		}
	}
	return rep, nil
}

// Snapshot returns the current document for read-only inspection by
// handlers (permission gates, settings display).
func (e *Engine) Snapshot() (*models.Document, error) {
	return e.store.Load()
}

// LoadSettings returns the effective settings, defaults merged in.
func (e *Engine) LoadSettings() (models.Settings, error) {
	doc, err := e.store.Load()
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to load attendance data: %w", err)
	}
	return doc.Settings.Merged(), nil
}

// SaveSettings persists the full merged structure, never a partial diff.
func (e *Engine) SaveSettings(s models.Settings) error {
	return e.updateConfig(func(doc *models.Document) {
		doc.Settings = s.Override()
	})
}

// SetStatusRole configures the role granted for a status; empty clears it.
func (e *Engine) SetStatusRole(status models.Status, roleID string) error {
	return e.updateConfig(func(doc *models.Document) {
		doc.SetRoleID(status, models.ID(roleID))
	})
}

// SetAllowedRole configures the role gating self-service marking; empty
// allows everyone.
func (e *Engine) SetAllowedRole(roleID string) error {
	return e.updateConfig(func(doc *models.Document) {
		doc.AllowedRoleID = models.ID(roleID)
	})
}

// SetPingRole configures the role mentioned on expiry notifications.
func (e *Engine) SetPingRole(roleID string) error {
	return e.updateConfig(func(doc *models.Document) {
		doc.PingRoleID = models.ID(roleID)
	})
}

// SetWelcomeChannel configures the fallback notification channel.
func (e *Engine) SetWelcomeChannel(channelID string) error {
	return e.updateConfig(func(doc *models.Document) {
		doc.WelcomeChannelID = models.ID(channelID)
	})
}

func (e *Engine) updateConfig(mutate func(*models.Document)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, err := e.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load attendance data: %w", err)
	}
	mutate(doc)
	if err := e.store.Save(doc); err != nil {
		return fmt.Errorf("failed to save attendance data: %w", err)
	}
	return nil
}
