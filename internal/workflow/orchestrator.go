// Package workflow implements the entity connection and data-fetch
// orchestrator: a per-interaction state machine, a FIFO queue of entities
// waiting on a second factor, and the policy that turns gateway result
// codes into entity-status updates and user notifications.
package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/finanze/finanze-sub000/internal/model"
	"github.com/finanze/finanze-sub000/internal/service"
)

// AttemptRecorder receives the outcome of silent auto-refresh attempts so
// later passes can back off.
type AttemptRecorder interface {
	RecordSuccess(entityID string, at time.Time)
	RecordFailure(entityID string, httpStatus int, at time.Time)
}

// DataRefreshedFunc is invoked after a fetch lands new data for an entity.
// The aggregate crypto fetch reports the id "crypto".
type DataRefreshedFunc func(ctx context.Context, entityID string) error

// Config holds the orchestrator's collaborators. Gateway and Notifier are
// required; the rest may be nil.
type Config struct {
	Gateway  service.Gateway
	Bridge   service.ExternalLoginBridge
	Notifier service.Notifier
	Store    service.EntityStore
	Recorder AttemptRecorder
	Messages *Messages
}

// Orchestrator mediates between UI intents (login, scrape, disconnect) and
// the gateway. All state lives behind one mutex; every gateway response
// handler runs to completion under it, so transitions are atomic from the
// caller's perspective.
type Orchestrator struct {
	gateway  service.Gateway
	bridge   service.ExternalLoginBridge
	notifier service.Notifier
	store    service.EntityStore
	recorder AttemptRecorder
	logger   *slog.Logger

	mu            sync.Mutex
	session       session
	pending       *pendingQueue
	fetching      map[string]struct{}
	view          View
	messages      Messages
	loggingIn     bool
	dataRefreshed DataRefreshedFunc
}

// New creates an orchestrator with the given collaborators.
func New(cfg Config) *Orchestrator {
	msgs := DefaultMessages()
	if cfg.Messages != nil {
		msgs = *cfg.Messages
	}
	return &Orchestrator{
		gateway:  cfg.Gateway,
		bridge:   cfg.Bridge,
		notifier: cfg.Notifier,
		store:    cfg.Store,
		recorder: cfg.Recorder,
		logger:   slog.Default().With("component", "workflow"),
		session:  session{state: StateIdle},
		pending:  newPendingQueue(),
		fetching: make(map[string]struct{}),
		view:     ViewEntities,
		messages: msgs,
	}
}

// SetDataRefreshed registers the callback invoked after successful fetches.
func (o *Orchestrator) SetDataRefreshed(fn DataRefreshedFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dataRefreshed = fn
}

// SelectEntity sets the active entity and clears any stale session fields.
// No network call; always succeeds.
func (o *Orchestrator) SelectEntity(entity *model.Entity) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.session.entity = entity
	o.session.reset(false)
}

// SelectedEntity returns the entity driving the current session, if any.
func (o *Orchestrator) SelectedEntity() *model.Entity {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.entity
}

// ResetOptions controls what ResetState preserves.
type ResetOptions struct {
	PreserveSelectedFeatures bool
}

// ResetState clears the second-factor flag, stored credentials, and the
// manual-login marker. Unless told to preserve them it also clears the
// selected features, fetch options, and continuation token. Safe to call
// from any state.
func (o *Orchestrator) ResetState(opts ResetOptions) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.session.reset(opts.PreserveSelectedFeatures)
}

// ClearPinError clears the inline second-factor error flag.
func (o *Orchestrator) ClearPinError() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.session.pinError = false
}

// State returns the session's current state.
func (o *Orchestrator) State() StateKind {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.state
}

// View returns the UI surface the orchestrator last steered to.
func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.view
}

// SetView lets the consuming UI drive navigation it owns.
func (o *Orchestrator) SetView(v View) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.view = v
}

// PinRequired reports whether the second-factor prompt should be shown.
func (o *Orchestrator) PinRequired() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.state == StateAwaitingSecondFactor
}

// PinLength returns the expected second-factor digit count.
func (o *Orchestrator) PinLength() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.pinLength
}

// PinError reports whether the last submitted code was rejected.
func (o *Orchestrator) PinError() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.pinError
}

// ProcessID returns the continuation token for the pending second factor.
func (o *Orchestrator) ProcessID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.processID
}

// CurrentAction says whether the pending second factor resumes a login or
// a scrape.
func (o *Orchestrator) CurrentAction() Action {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.action
}

// LoggingIn reports whether a login call is in flight.
func (o *Orchestrator) LoggingIn() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.loggingIn
}

// HasStoredCredentials reports whether credentials captured earlier in the
// interaction are being retained for the paired login call.
func (o *Orchestrator) HasStoredCredentials() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.storedCredentials != nil
}

// SelectedFeatures returns the feature set chosen for the interaction.
func (o *Orchestrator) SelectedFeatures() []model.Feature {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]model.Feature, len(o.session.selectedFeatures))
	copy(out, o.session.selectedFeatures)
	return out
}

// SetSelectedFeatures records the feature set chosen for the interaction.
func (o *Orchestrator) SetSelectedFeatures(features []model.Feature) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.session.selectedFeatures = append([]model.Feature(nil), features...)
}

// FetchOptions returns the options chosen for the interaction.
func (o *Orchestrator) FetchOptions() service.FetchOptions {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.fetchOptions
}

// SetFetchOptions records the options chosen for the interaction.
func (o *Orchestrator) SetFetchOptions(opts service.FetchOptions) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.session.fetchOptions = opts
}

// FetchingEntityIDs returns the entities with a fetch in flight, for
// per-entity spinners.
func (o *Orchestrator) FetchingEntityIDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.fetching))
	for id := range o.fetching {
		out = append(out, id)
	}
	return out
}

// IsFetching reports whether the entity has a fetch in flight.
func (o *Orchestrator) IsFetching(entityID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.fetching[entityID]
	return ok
}

// Busy reports whether the entity is mid-interaction: driving the active
// session, queued for a second factor, or currently fetching.
func (o *Orchestrator) Busy(entityID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session.entity != nil && o.session.entity.ID == entityID && o.session.state != StateIdle {
		return true
	}
	if _, ok := o.pending.get(entityID); ok {
		return true
	}
	_, ok := o.fetching[entityID]
	return ok
}

// DisconnectEntity disconnects the entity at the gateway and marks it
// disconnected locally. If it was driving the active session, the session
// is reset too.
func (o *Orchestrator) DisconnectEntity(ctx context.Context, entityID string) error {
	if err := o.gateway.Disconnect(ctx, entityID); err != nil {
		o.logger.Error("Disconnect failed", "entity", entityID, "error", err)
		o.notify(o.messages.DisconnectError, service.NotifyError)
		return err
	}

	o.mu.Lock()
	o.pending.remove(entityID)
	if o.session.entity != nil && o.session.entity.ID == entityID {
		o.session.entity = nil
		o.session.reset(false)
	}
	o.mu.Unlock()

	o.setEntityStatusByID(ctx, entityID, model.StatusDisconnected)
	o.notify(o.messages.DisconnectSuccess, service.NotifySuccess)
	return nil
}

// notify forwards a toast to the notifier when one is configured.
func (o *Orchestrator) notify(message string, level service.NotificationLevel) {
	if o.notifier != nil {
		o.notifier.Notify(message, level)
	}
}

// setEntityStatus applies an optimistic status update to the in-memory
// entity and writes it through the store. Store failures are logged, not
// surfaced; the next directory refresh reconciles.
func (o *Orchestrator) setEntityStatus(ctx context.Context, entity *model.Entity, status model.EntityStatus) {
	if entity == nil {
		return
	}
	entity.Status = status
	o.persistStatus(ctx, entity.ID, status)
}

func (o *Orchestrator) setEntityStatusByID(ctx context.Context, entityID string, status model.EntityStatus) {
	o.persistStatus(ctx, entityID, status)
}

func (o *Orchestrator) persistStatus(ctx context.Context, entityID string, status model.EntityStatus) {
	if o.store == nil {
		return
	}
	if err := o.store.UpdateEntityStatus(ctx, entityID, status); err != nil {
		o.logger.Warn("Failed to persist entity status",
			"entity", entityID,
			"status", status,
			"error", err)
	}
}

// recordFetch stamps the entity's last-fetch timestamps for the requested
// features and writes them through the store.
func (o *Orchestrator) recordFetch(ctx context.Context, entity *model.Entity, features []model.Feature, at time.Time) {
	if entity == nil {
		return
	}
	if entity.LastFetch == nil {
		entity.LastFetch = make(map[model.Feature]time.Time)
	}
	for _, f := range features {
		entity.LastFetch[f] = at
	}
	if o.store != nil {
		if err := o.store.RecordFetch(ctx, entity.ID, features, at); err != nil {
			o.logger.Warn("Failed to persist fetch timestamps",
				"entity", entity.ID,
				"error", err)
		}
	}
}

// recordAttempt forwards a silent-mode outcome to the auto-refresh
// bookkeeping.
func (o *Orchestrator) recordAttempt(entityID string, success bool, httpStatus int) {
	if o.recorder == nil || entityID == "" {
		return
	}
	if success {
		o.recorder.RecordSuccess(entityID, time.Now())
	} else {
		o.recorder.RecordFailure(entityID, httpStatus, time.Now())
	}
}

// notifyDataRefreshed invokes the registered data-refresh callback. Must be
// called without holding the lock.
func (o *Orchestrator) notifyDataRefreshed(ctx context.Context, entityID string) {
	o.mu.Lock()
	fn := o.dataRefreshed
	o.mu.Unlock()
	if fn == nil {
		return
	}
	if entityID == "" {
		entityID = "crypto"
	}
	if err := fn(ctx, entityID); err != nil {
		o.logger.Error("Data refresh callback failed", "entity", entityID, "error", err)
	}
}
