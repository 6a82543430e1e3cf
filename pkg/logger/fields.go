package logger

// Standard field names for consistent logging.
const (
	FieldService   = "service"
	FieldOperation = "operation"
	FieldError     = "error"
	FieldUserID    = "user_id"
	FieldGuildID   = "guild_id"
	FieldChannelID = "channel_id"
	FieldRoleID    = "role_id"
	FieldStatus    = "status"
	FieldSweepID   = "sweep_id"
)
