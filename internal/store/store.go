// Package store persists the attendance document. The contract is
// whole-document: Load returns the full envelope, Save rewrites it
// entirely. Both backends assume a single bot process is the only writer.
package store

import (
	"github.com/calvdc1/Registrar-bot/internal/models"
)

type Store interface {
	Load() (*models.Document, error)
	Save(*models.Document) error
}
