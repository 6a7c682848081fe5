package models

import "time"

type AuditLog struct {
	Id        uint32    `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Table     string    `gorm:"column:tableName;not null" json:"table"`
	RecordId  uint32    `gorm:"column:recordId;not null" json:"record_id"`
	Action    string    `gorm:"not null" json:"action"`
	OldState  string    `gorm:"column:oldState;type:text" json:"old_state"`
	NewState  string    `gorm:"column:newState;type:text" json:"new_state"`
	Actor     uint32    `gorm:"not null" json:"actor"`
	CreatedAt time.Time `gorm:"column:createdAt" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "AuditLogs"
}
