// Package services – TurnService
//
// This file implements the turn orchestrator: the top-level control flow for
// one inbound conversation turn. It resolves the target form, loads prior
// state, decides between resetting and resuming the traversal, invokes the
// form engine, resolves continue/terminate/chain from the resulting position
// marker, settles all persistence side effects concurrently, and builds the
// outbound reply.
//
// Observability: Process is OpenTelemetry-instrumented; spans include user
// and form identifiers.
package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/convoforms/go-form-gateway/internal/clients"
	"github.com/convoforms/go-form-gateway/internal/forms"
	"github.com/convoforms/go-form-gateway/internal/repo"
	"github.com/convoforms/go-form-gateway/internal/wire"
)

// Profiles is the federated user-profile lookup.
type Profiles interface {
	UserByPhone(ctx context.Context, botID, userID string) (clients.ProfileDocument, error)
}

// Directory resolves successor bots when a form chains.
type Directory interface {
	BotNameByID(ctx context.Context, botID string) (string, error)
	FirstFormByBotID(ctx context.Context, botID string) (string, error)
}

// Uploader receives finished form-instance snapshots.
type Uploader interface {
	Submit(ctx context.Context, instanceXML string) error
}

// TurnService orchestrates one inbound message into one outbound reply.
type TurnService struct {
	DB        *gorm.DB
	Engine    forms.Engine
	State     *StateAccessor
	Recorder  *Recorder
	Profiles  Profiles
	Directory Directory
	Uploader  Uploader

	FormsDir       string
	ResetAnswer    string // answer value that forces a fresh traversal
	SelectionPath  string // marker of the candidate-selection question ("" disables)
	SelectionField string // hidden field dropped once a selection is made

	locks keyedMutex
}

// turnPlan is the per-call traversal context threaded through the reset,
// resume, and branch steps. It is a local value, never shared between turns.
type turnPlan struct {
	formID   string
	formPath string
	starting bool
	prior    PriorState
	hidden   []forms.HiddenField
	profile  clients.ProfileDocument
}

// Process handles one parsed inbound message and returns the reply to
// publish. A nil error with a non-nil message is the only case that produces
// output; ErrFormNotResolved means the turn is dropped silently.
func (s *TurnService) Process(ctx context.Context, msg *wire.Message) (*wire.Message, error) {
	tr, ok := msg.Transformer()
	if !ok {
		return nil, ErrFormNotResolved
	}

	tracer := otel.Tracer("services/TurnService")
	ctx, span := tracer.Start(ctx, "Process",
		trace.WithAttributes(
			attribute.String("user.id", msg.To.UserID),
			attribute.String("form.id", tr.MetaValue("formID")),
		),
	)
	defer span.End()

	plan := turnPlan{formID: tr.MetaValue("formID")}
	if plan.formID == "" {
		log.Error().Msg("unable to find form id in conversation descriptor")
		return nil, ErrFormNotResolved
	}
	var err error
	plan.formPath, err = forms.FormPath(s.FormsDir, plan.formID)
	if err != nil {
		log.Error().Str("form_id", plan.formID).Msg("form definition not found")
		return nil, ErrFormNotResolved
	}

	starting := tr.MetaValue("startingMessage")
	plan.starting = msg.Payload != nil && msg.Payload.Text != "" && msg.Payload.Text == starting

	// Two concurrent turns for the same (user, form) must not interleave
	// their state read-modify-write.
	unlock := s.locks.lock(msg.To.UserID + "|" + plan.formID)
	defer unlock()

	plan.prior = s.State.Load(ctx, msg, plan.formID)

	plan.profile, err = s.lookupProfile(ctx, tr.MetaValue("botId"), msg.To.UserID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", msg.To.UserID).Msg("profile lookup failed, continuing without it")
	}
	plan.hidden, err = forms.ParseHiddenFields(tr.MetaValue("hiddenFields"))
	if err != nil {
		log.Error().Err(err).Msg("hidden fields meta unreadable")
	}

	result, err := s.traverse(ctx, msg, &plan)
	if err != nil {
		return nil, err
	}
	if result.Question == nil || result.NextMessage == nil {
		return nil, ErrNoTraversalResult
	}
	log.Info().Str("xpath", result.Question.XPath).Msg("next question resolved")

	// Previously rendered question, skipped entirely on a starting message.
	var prevQ *forms.QuestionDescriptor
	var prevPayload *wire.Payload
	if !plan.starting && plan.prior.PreviousPath != "" {
		prevQ, prevPayload, err = s.Engine.QuestionAt(ctx, forms.QuestionLookup{
			FormID:   plan.formID,
			FormPath: plan.formPath,
			XPath:    plan.prior.PreviousPath,
		})
		if err != nil {
			log.Warn().Err(err).Str("xpath", plan.prior.PreviousPath).Msg("previous question lookup failed")
		}
	}

	// Branch on the result's position marker: chain into a successor bot, or
	// carry on with this form (mid-form and terminal build the same reply).
	replyFormID, replyResult := plan.formID, result
	if forms.HasChain(result.CurrentIndex) {
		replyFormID, replyResult, err = s.chain(ctx, msg, result.CurrentIndex)
		if err != nil {
			return nil, err
		}
	}

	s.settle(ctx, msg, &plan, tr, result, replyFormID, replyResult, prevQ, prevPayload)

	return s.reply(msg, replyResult)
}

// traverse runs the reset-or-resume decision and one engine step.
//
// Reset triggers when no previous snapshot exists, the previous answer equals
// the reset marker, or this is a starting message. Resume reuses the stored
// position and snapshot as-is, except on the designated selection marker,
// where the chosen candidate's fields are merged into an appended instance
// fragment first.
func (s *TurnService) traverse(ctx context.Context, msg *wire.Message, plan *turnPlan) (*forms.TraversalResult, error) {
	if !plan.prior.HasInstance || plan.prior.CurrentAnswer == s.ResetAnswer || plan.starting {
		return s.reset(ctx, msg, plan)
	}

	req := forms.StartRequest{
		FormID:       plan.formID,
		FormPath:     plan.formPath,
		PreviousPath: plan.prior.PreviousPath,
		Answer:       &plan.prior.CurrentAnswer,
		InstanceXML:  plan.prior.PreviousInstanceXML,
		UserID:       msg.To.UserID,
		App:          msg.App,
		Payload:      msg.Payload,
	}

	if s.SelectionPath != "" && plan.prior.PreviousPath == s.SelectionPath {
		appended, err := s.appendSelection(msg, plan)
		if err != nil {
			log.Error().Err(err).Msg("candidate selection merge failed, resuming with stored snapshot")
		} else {
			req.InstanceXML = appended
		}
	}

	res, err := s.Engine.Start(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("resume traversal: %w", err)
	}
	return res, nil
}

// reset initializes a fresh traversal: seed an instance for the form, stamp
// adapter properties and the user's phone number, merge hidden fields with
// the federated profile, then compute the first question. The recorded
// answer is forced to the reset marker.
func (s *TurnService) reset(ctx context.Context, msg *wire.Message, plan *turnPlan) (*forms.TraversalResult, error) {
	plan.prior.CurrentAnswer = s.ResetAnswer

	seed, err := s.Engine.Start(ctx, forms.StartRequest{
		FormID:   plan.formID,
		FormPath: plan.formPath,
		UserID:   msg.To.UserID,
		App:      msg.App,
	})
	if err != nil {
		return nil, fmt.Errorf("seed traversal: %w", err)
	}

	instanceXML := seed.CurrentResponseState
	if inst, perr := forms.ParseInstance(seed.CurrentResponseState); perr != nil {
		log.Error().Err(perr).Msg("seed instance unparseable, starting unenriched")
	} else {
		inst.SetAdapterProperties(msg.Channel, msg.Provider)
		inst.SetField("phone_number", msg.To.UserID)
		inst.MergeHiddenFields(plan.hidden, plan.profile)
		if xmlStr, xerr := inst.XML(); xerr == nil {
			instanceXML = xmlStr
		}
	}

	res, err := s.Engine.Start(ctx, forms.StartRequest{
		FormID:      plan.formID,
		FormPath:    plan.formPath,
		InstanceXML: instanceXML,
		UserID:      msg.To.UserID,
		App:         msg.App,
		Payload:     msg.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("reset traversal: %w", err)
	}
	return res, nil
}

// appendSelection handles the selection special case: the previous question
// asked the user to pick one externally-fetched candidate by identifier. The
// matching candidate's fields are merged over the hidden-field set — minus
// the now-stale selection field — and the enriched fragment is concatenated
// onto the previous instance XML, never replacing it.
func (s *TurnService) appendSelection(msg *wire.Message, plan *turnPlan) (string, error) {
	inst, err := forms.ParseInstance(plan.prior.PreviousInstanceXML)
	if err != nil {
		return "", err
	}
	inst.SetAdapterProperties(msg.Channel, msg.Provider)
	inst.MergeHiddenFields(plan.hidden, plan.profile)

	detail := plan.profile.CandidateByID(plan.prior.CurrentAnswer)
	if detail == nil {
		return "", fmt.Errorf("no candidate matches answer %q", plan.prior.CurrentAnswer)
	}
	remaining := forms.RemoveHiddenField(plan.hidden, s.SelectionField)
	inst.MergeHiddenFields(remaining, detail)

	fragment, err := inst.XML()
	if err != nil {
		return "", err
	}
	return plan.prior.PreviousInstanceXML + fragment, nil
}

// chain resolves the successor named in a chain marker, starts a brand-new
// session for its first form via the reset protocol, and rebinds the
// outgoing message's app to the successor's name.
func (s *TurnService) chain(ctx context.Context, msg *wire.Message, marker string) (string, *forms.TraversalResult, error) {
	nextBotID := forms.NextBotID(marker)
	if nextBotID == "" || s.Directory == nil {
		return "", nil, ErrChainNotResolved
	}

	nextAppName, err := s.Directory.BotNameByID(ctx, nextBotID)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrChainNotResolved, err)
	}
	nextFormID, err := s.Directory.FirstFormByBotID(ctx, nextBotID)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrChainNotResolved, err)
	}
	nextFormPath, err := forms.FormPath(s.FormsDir, nextFormID)
	if err != nil {
		return "", nil, fmt.Errorf("%w: no definition for form %s", ErrChainNotResolved, nextFormID)
	}

	seed, err := s.Engine.Start(ctx, forms.StartRequest{
		FormID:   nextFormID,
		FormPath: nextFormPath,
		UserID:   msg.To.UserID,
		App:      msg.App,
	})
	if err != nil {
		return "", nil, fmt.Errorf("seed successor traversal: %w", err)
	}

	instanceXML := seed.CurrentResponseState
	if inst, perr := forms.ParseInstance(seed.CurrentResponseState); perr == nil {
		inst.SetAdapterProperties(msg.Channel, msg.Provider)
		if xmlStr, xerr := inst.XML(); xerr == nil {
			instanceXML = xmlStr
		}
	}

	res, err := s.Engine.Start(ctx, forms.StartRequest{
		FormID:      nextFormID,
		FormPath:    nextFormPath,
		InstanceXML: instanceXML,
		UserID:      msg.To.UserID,
		App:         msg.App,
	})
	if err != nil {
		return "", nil, fmt.Errorf("successor traversal: %w", err)
	}

	msg.App = nextAppName
	log.Info().Str("next_bot", nextBotID).Str("next_form", nextFormID).Msg("chained to successor bot")
	return nextFormID, res, nil
}

// settle runs the turn's side effects concurrently and waits for every one
// to finish, success or failure. Recording goes against the original form's
// result; state, response log, and the terminal upload go against whichever
// form the reply is built from.
func (s *TurnService) settle(ctx context.Context, msg *wire.Message, plan *turnPlan, tr wire.Transformer,
	result *forms.TraversalResult, replyFormID string, replyResult *forms.TraversalResult,
	prevQ *forms.QuestionDescriptor, prevPayload *wire.Payload) {

	terminal := forms.IsTerminal(replyResult.CurrentIndex)
	inboundText := ""
	if msg.Payload != nil {
		inboundText = msg.Payload.Text
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := repo.AppendResponse(ctx, s.DB, msg.To.UserID, inboundText, terminal); err != nil {
			log.Error().Err(err).Str("user_id", msg.To.UserID).Msg("response log append failed")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.State.Save(ctx, msg.To.UserID, replyFormID, replyResult.CurrentIndex, replyResult.CurrentResponseState); err != nil {
			log.Error().Err(err).Str("user_id", msg.To.UserID).Str("form_id", replyFormID).Msg("state save failed")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if s.Recorder == nil {
			return
		}
		qPayload := prevPayload
		if qPayload == nil {
			qPayload = result.NextMessage
		}
		s.Recorder.Record(ctx, RecordRequest{
			FormID:            plan.formID,
			FormVersion:       result.FormVersion,
			PreviousPath:      plan.prior.PreviousPath,
			Answer:            plan.prior.CurrentAnswer,
			PrevQuestion:      prevQ,
			CurrentQuestion:   result.Question,
			QuestionPayload:   qPayload,
			App:               msg.App,
			Channel:           msg.Channel,
			Provider:          msg.Provider,
			UserID:            msg.To.UserID,
			DeviceID:          msg.To.DeviceID,
			EncryptedDeviceID: msg.To.EncryptedDeviceID,
			ChannelMessageID:  msg.MessageID.ChannelMessageID,
			BotID:             tr.MetaValue("botId"),
			OrgID:             tr.MetaValue("botOwnerOrgID"),
			CurrentIndex:      result.CurrentIndex,
			IsStartingMessage: plan.starting,
		})
	}()

	if terminal && s.Uploader != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Uploader.Submit(ctx, replyResult.CurrentResponseState); err != nil {
				log.Error().Err(err).Str("form_id", replyFormID).Msg("finished instance upload failed")
			}
		}()
	}

	wg.Wait()
}

// reply attaches the next-question payload and conversation level to the
// inbound envelope and round-trips it through the wire encoding.
func (s *TurnService) reply(msg *wire.Message, res *forms.TraversalResult) (*wire.Message, error) {
	msg.Payload = res.NextMessage
	msg.ConversationLevel = res.ConversationLevel
	out, err := msg.Clone()
	if err != nil {
		return nil, fmt.Errorf("reply serialization: %w", err)
	}
	return out, nil
}

func (s *TurnService) lookupProfile(ctx context.Context, botID, userID string) (clients.ProfileDocument, error) {
	if s.Profiles == nil {
		return nil, nil
	}
	return s.Profiles.UserByPhone(ctx, botID, userID)
}
