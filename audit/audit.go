// Package audit records retractions and lifecycle transitions
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"

	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/utils"
)

// Entry is one audited change. OldState and NewState are stored as JSON.
type Entry struct {
	Table    string
	RecordId uint32
	Action   string
	OldState interface{}
	NewState interface{}
	Actor    uint32
}

// Logger records audit entries. Callers log failures and carry on.
type Logger interface {
	Audit(ctx context.Context, e Entry) error
}

func encode(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func toRecord(e Entry) (*models.AuditLog, error) {
	oldState, err := encode(e.OldState)
	if err != nil {
		return nil, fmt.Errorf("encode old state: %w", err)
	}
	newState, err := encode(e.NewState)
	if err != nil {
		return nil, fmt.Errorf("encode new state: %w", err)
	}
	return &models.AuditLog{
		Table:    e.Table,
		RecordId: e.RecordId,
		Action:   e.Action,
		OldState: oldState,
		NewState: newState,
		Actor:    e.Actor,
	}, nil
}

// GormLogger writes entries to the AuditLogs table
type GormLogger struct {
	logger *logrus.Entry
	db     *gorm.DB
}

func NewGormLogger(db *gorm.DB) *GormLogger {
	return &GormLogger{
		logger: utils.Logger.WithFields(logrus.Fields{
			"module": "audit.GormLogger",
		}),
		db: db,
	}
}

func (gl *GormLogger) Audit(ctx context.Context, e Entry) error {
	l := gl.logger.WithFields(logrus.Fields{
		"method":         "Audit",
		"param_table":    e.Table,
		"param_recordId": e.RecordId,
		"param_action":   e.Action,
	})

	record, err := toRecord(e)
	if err != nil {
		l.Error(err)
		return err
	}
	if err := gl.db.Create(record).Error; err != nil {
		l.Errorf("Unable to save audit log: %+v", err)
		return err
	}

	l.Debugf("Saved. Id: %d", record.Id)
	return nil
}

// LogLogger writes entries to a logrus logger only. Used with the in-memory store.
type LogLogger struct {
	logger *logrus.Entry
}

func NewLogLogger(logger *logrus.Logger) *LogLogger {
	if logger == nil {
		logger = utils.Logger
	}
	return &LogLogger{
		logger: logger.WithFields(logrus.Fields{
			"module": "audit",
		}),
	}
}

func (ll *LogLogger) Audit(ctx context.Context, e Entry) error {
	record, err := toRecord(e)
	if err != nil {
		return err
	}
	ll.logger.WithFields(logrus.Fields{
		"table":     record.Table,
		"record_id": record.RecordId,
		"action":    record.Action,
		"old_state": record.OldState,
		"new_state": record.NewState,
		"actor":     record.Actor,
	}).Info("audit")
	return nil
}
