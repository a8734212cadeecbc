// Package services – StateAccessor
//
// This file implements conversation state access for the turn orchestrator.
// Loads never fail the caller: any lookup error degrades to empty state so a
// turn can always proceed (it will simply take the reset path). Saves are
// upserts with last-write-wins semantics and always write the position marker
// and instance snapshot together.
package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/convoforms/go-form-gateway/internal/repo"
	"github.com/convoforms/go-form-gateway/internal/wire"
)

// PriorState is what a turn resumes from: the stored position and snapshot
// plus the answer derived from the inbound payload. HasInstance is false for
// first-time users, fresh opt-ins, and failed lookups.
type PriorState struct {
	PreviousPath        string
	PreviousInstanceXML string
	CurrentAnswer       string
	HasInstance         bool
}

// StateAccessor reads and writes per-(user, form) conversation state.
type StateAccessor struct {
	DB *gorm.DB
}

// Load returns the prior state for the message's user and formID.
//
// A fresh opt-in (lifecycle state OPTED_IN) is treated as having no prior
// state regardless of stored rows. The current answer is derived from the
// payload: media URL when a media attachment is present, else a formatted
// location string, else raw text, else "".
func (s *StateAccessor) Load(ctx context.Context, msg *wire.Message, formID string) PriorState {
	var st PriorState

	if msg.MessageState == wire.StateOptedIn {
		return st
	}

	st.CurrentAnswer = deriveAnswer(msg.Payload)

	rec, err := repo.GetState(ctx, s.DB, msg.To.UserID, formID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			log.Error().Err(err).
				Str("user_id", msg.To.UserID).
				Str("form_id", formID).
				Msg("state lookup failed, treating as empty")
		}
		return st
	}
	if msg.Payload != nil {
		st.PreviousPath = rec.PreviousPath
		st.PreviousInstanceXML = rec.PreviousInstanceXML
		st.HasInstance = rec.PreviousInstanceXML != ""
	}
	return st
}

// Save upserts the state row for (userID, formID). Path and snapshot land in
// one row write; last write wins. Failures are returned for the caller to
// log, never to abort the turn.
func (s *StateAccessor) Save(ctx context.Context, userID, formID, positionMarker, instanceXML string) error {
	_, err := repo.SaveState(ctx, s.DB, userID, formID, positionMarker, instanceXML)
	return err
}

func deriveAnswer(p *wire.Payload) string {
	switch {
	case p == nil:
		return ""
	case p.Media != nil:
		return p.Media.URL
	case p.Location != nil:
		return wire.LocationText(p.Location)
	default:
		return p.Text
	}
}
