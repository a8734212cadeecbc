package domain

import "time"

// InboundReceipt records that an inbound envelope was already accepted,
// keyed by (app, channel_message_id). The queue transport is at-least-once;
// a receipt lets the consumer drop redeliveries instead of replaying the
// turn's side effects.
type InboundReceipt struct {
	ID               string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	App              string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_app_channel_msg,priority:1"`
	ChannelMessageID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_app_channel_msg,priority:2"`
	CreatedAt        time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt        time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (InboundReceipt) TableName() string { return "inbound_receipts" }
