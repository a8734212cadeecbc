// Package domain defines the persistence models for conversation state,
// questions, assessments, response logs, and sent messages. These types are
// mapped with GORM and form the core data layer of the form gateway.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConversationState is the per-(user, form) resume point of a multi-step form.
// One row per pair, overwritten on every turn, never deleted: a recognized
// reset answer or starting message logically resets it instead.
//
// PreviousPath and PreviousInstanceXML are always written together; a row
// must never carry a path from one turn and an instance snapshot from another.
type ConversationState struct {
	ID                  string    `json:"id"        gorm:"type:char(36);primaryKey"`
	UserID              string    `json:"user_id"   gorm:"type:varchar(64);not null;uniqueIndex:ux_state_user_form,priority:1"`
	FormID              string    `json:"form_id"   gorm:"type:varchar(128);not null;uniqueIndex:ux_state_user_form,priority:2"`
	PreviousPath        string    `json:"previous_path" gorm:"type:text"`
	PreviousInstanceXML string    `json:"previous_instance_xml" gorm:"type:text"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TableName returns the database table name for ConversationState.
func (ConversationState) TableName() string { return "conversation_states" }

// ResponseLogEntry is an append-only record of one inbound user reply.
// Write-only from the gateway's point of view; never read back.
type ResponseLogEntry struct {
	ID              string    `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID          string    `json:"user_id" gorm:"type:varchar(64);not null;index"`
	MessageText     string    `json:"message_text" gorm:"type:text"`
	IsFinalResponse bool      `json:"is_final_response" gorm:"not null;default:false"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName returns the database table name for ResponseLogEntry.
func (ResponseLogEntry) TableName() string { return "response_log" }

// Question is one distinct form question, identified by
// (form_id, form_version, xpath). Created lazily the first time an answer to
// it is observed and immutable afterwards; many assessments reference one
// question. Uniqueness is a should: the insert is check-then-insert and two
// concurrent first visits can both create a row (the backing store's own
// concurrency control is the only arbiter).
type Question struct {
	ID           string    `json:"id"           gorm:"type:char(36);primaryKey"`
	FormID       string    `json:"form_id"      gorm:"type:varchar(128);not null;index:idx_question_identity,priority:1"`
	FormVersion  string    `json:"form_version" gorm:"type:varchar(32);not null;index:idx_question_identity,priority:2"`
	XPath        string    `json:"xpath"        gorm:"column:xpath;type:text;not null;index:idx_question_identity,priority:3"`
	QuestionType string    `json:"question_type" gorm:"type:varchar(32)"`
	Meta         string    `json:"meta"         gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name for Question.
func (Question) TableName() string { return "questions" }

// Assessment is one answer event. Append-only; multiple rows per
// (question, user) are allowed since users can revisit a question.
type Assessment struct {
	ID         string     `json:"id"          gorm:"type:char(36);primaryKey"`
	QuestionID string     `json:"question_id" gorm:"type:char(36);not null;index"`
	DeviceID   *uuid.UUID `json:"device_id,omitempty" gorm:"type:char(36)"`
	BotID      uuid.UUID  `json:"bot_id"      gorm:"type:char(36);not null"`
	UserID     string     `json:"user_id"     gorm:"type:varchar(64);not null;index"`
	Answer     string     `json:"answer"      gorm:"type:text"`
	CreatedAt  time.Time  `json:"created_at"`

	// Question is the answered question. Assessments are cascade-deleted
	// if their question is removed.
	Question Question `json:"-" gorm:"foreignKey:QuestionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Assessment.
func (Assessment) TableName() string { return "assessments" }

// SentMessage is the durable side of the last-sent-message lookup: one row
// per message the system pushed to a user. The drop-off computation reads the
// most recent SENT row per (app, user) from the configured system sender.
type SentMessage struct {
	ID               string    `json:"id"   gorm:"type:char(36);primaryKey"`
	App              string    `json:"app"  gorm:"type:varchar(128);not null;index:idx_sent_app_user,priority:1"`
	FromID           string    `json:"from_id" gorm:"type:varchar(64);not null"`
	UserID           string    `json:"user_id" gorm:"type:varchar(64);not null;index:idx_sent_app_user,priority:2"`
	MessageState     string    `json:"message_state" gorm:"type:varchar(16);not null"`
	ChannelMessageID string    `json:"channel_message_id" gorm:"type:varchar(128)"`
	Timestamp        time.Time `json:"timestamp" gorm:"not null;index"`
}

// TableName returns the database table name for SentMessage.
func (SentMessage) TableName() string { return "sent_messages" }
