package workflow

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/finanze/finanze-sub000/internal/common"
	"github.com/finanze/finanze-sub000/internal/model"
	"github.com/finanze/finanze-sub000/internal/service"
)

// Scrape runs a data fetch for an entity, or the aggregate crypto fetch
// when entity is nil. The gateway's result code drives the state machine;
// silent mode records auto-refresh bookkeeping and produces no user-visible
// effect. The returned error reports transport failures for the caller's
// log; all user-facing handling already happened.
func (o *Orchestrator) Scrape(ctx context.Context, entity *model.Entity, features []model.Feature, opts service.FetchOptions) error {
	o.mu.Lock()
	if !opts.Silent {
		o.session.pinError = false
	}
	if entity != nil {
		o.fetching[entity.ID] = struct{}{}
	}
	// Only reuse the session's continuation token for the entity that owns
	// the session.
	if opts.ProcessID == "" && o.sessionOwnsLocked(entity) {
		opts.ProcessID = o.session.processID
	}
	o.mu.Unlock()

	if entity != nil {
		defer func() {
			o.mu.Lock()
			delete(o.fetching, entity.ID)
			o.mu.Unlock()
		}()
	}

	res, err := o.dispatch(ctx, entity, features, opts)
	if err != nil {
		o.handleFetchError(entity, opts, err)
		return err
	}

	post := o.applyFetchResult(ctx, entity, features, opts, res)
	for _, fn := range post {
		fn()
	}
	return nil
}

// dispatch routes the fetch to the gateway operation matching the entity's
// origin and category.
func (o *Orchestrator) dispatch(ctx context.Context, entity *model.Entity, features []model.Feature, opts service.FetchOptions) (*model.FetchResult, error) {
	if entity == nil {
		return o.gateway.FetchCrypto(ctx, "", features, opts)
	}
	if entity.Origin == model.OriginExternallyProvided {
		return o.gateway.FetchExternal(ctx, entity.ExternalEntityID)
	}
	if entity.Type == model.TypeFinancialInstitution {
		return o.gateway.FetchFinancial(ctx, entity.ID, features, opts)
	}
	return o.gateway.FetchCrypto(ctx, entity.ID, features, opts)
}

// sessionOwnsLocked reports whether the session belongs to the given entity
// (or to the aggregate crypto interaction when entity is nil). Callers must
// hold the lock.
func (o *Orchestrator) sessionOwnsLocked(entity *model.Entity) bool {
	if entity == nil {
		return o.session.entity == nil
	}
	return o.session.entity != nil && o.session.entity.ID == entity.ID
}

// handleFetchError degrades a thrown transport error to a user-facing
// outcome. A status 429 is treated as a cooldown signal even though the
// result-code channel was unavailable.
func (o *Orchestrator) handleFetchError(entity *model.Entity, opts service.FetchOptions, err error) {
	status := common.HTTPStatus(err)

	if opts.Silent {
		if entity != nil {
			o.recordAttempt(entity.ID, false, status)
		}
		return
	}

	o.logger.Error("Fetch failed", "error", err, "status", status)

	o.mu.Lock()
	if o.sessionOwnsLocked(entity) || o.session.state == StateIdle {
		o.session.reset(true)
	}
	o.mu.Unlock()

	if status == http.StatusTooManyRequests {
		o.notify(o.messages.Cooldown, service.NotifyWarning)
		return
	}
	o.notify(o.messages.FetchError, service.NotifyError)
}

// applyFetchResult is the authoritative result-code transition table. It
// mutates orchestrator state under the lock and returns follow-up actions
// (bridge hand-off, data-refresh callback) to run after release.
func (o *Orchestrator) applyFetchResult(ctx context.Context, entity *model.Entity, features []model.Feature, opts service.FetchOptions, res *model.FetchResult) []func() {
	if opts.Silent {
		return o.applySilentResult(ctx, entity, features, res)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	entityID := ""
	displayName := o.messages.CryptoLabel
	if entity != nil {
		entityID = entity.ID
		displayName = entity.Name
	}
	owns := o.session.state == StateIdle || o.sessionOwnsLocked(entity)

	var post []func()
	toast := func(msg string, level service.NotificationLevel) {
		post = append(post, func() { o.notify(msg, level) })
	}

	switch res.Code {
	case model.CodeCodeRequested:
		processID := ""
		if res.Details != nil {
			processID = res.Details.ProcessID
		}
		if entity == nil {
			if !owns {
				o.logger.Warn("Second factor requested for aggregate fetch while another session is active")
				return post
			}
			o.session.entity = nil
			o.session.state = StateAwaitingSecondFactor
			o.session.processID = processID
			o.session.pinLength = 4
			o.session.action = ActionScrape
			return post
		}
		if !owns {
			// Another entity's session drives the modal; park this one.
			queued := opts
			queued.Code = ""
			queued.ProcessID = ""
			o.pending.put(&pendingEntry{
				entity:    entity,
				features:  features,
				options:   queued,
				processID: processID,
				pinLength: entity.PinLength(),
				action:    ActionScrape,
			})
			return post
		}
		o.session.entity = entity
		o.session.state = StateAwaitingSecondFactor
		o.session.processID = processID
		o.session.pinLength = entity.PinLength()
		o.session.action = ActionScrape
		o.session.selectedFeatures = append([]model.Feature(nil), features...)
		stored := opts
		stored.Code = ""
		o.session.fetchOptions = stored

	case model.CodeManualLogin:
		if entity == nil {
			o.logger.Debug("Manual login requested without an entity")
			toast(o.messages.FetchError, service.NotifyError)
			o.session.reset(true)
			return post
		}
		var creds map[string]string
		if res.Details != nil {
			creds = res.Details.Credentials
		}
		o.session.entity = entity
		o.session.state = StateManualLoginPending
		o.session.manualResume = &manualLoginResume{features: features, options: opts}
		post = append(post, func() {
			if err := o.StartExternalLogin(ctx, entity, creds); err != nil {
				o.logger.Error("External login hand-off failed", "entity", entity.ID, "error", err)
			}
		})

	case model.CodeCooldown:
		msg := o.messages.Cooldown
		if res.Details != nil && res.Details.WaitSeconds > 0 {
			msg = fmt.Sprintf(o.messages.CooldownWithWait, FormatWait(res.Details.WaitSeconds))
		}
		toast(msg, service.NotifyWarning)
		if owns {
			o.session.reset(true)
		}

	case model.CodeLoginRequired:
		toast(o.messages.LoginRequiredScrape, service.NotifyWarning)
		o.setEntityStatus(ctx, entity, model.StatusRequiresLogin)
		if owns {
			o.session.reset(true)
			o.view = ViewEntities
		}

	case model.CodePartiallyCompleted:
		toast(fmt.Sprintf(o.messages.PartiallyCompleted, displayName), service.NotifyWarning)
		o.recordFetch(ctx, entity, features, time.Now())
		if entity != nil {
			o.pending.remove(entity.ID)
		}
		if owns {
			o.advanceLocked()
		}
		post = append(post, func() { o.notifyDataRefreshed(ctx, entityID) })

	case model.CodeCompleted:
		toast(fmt.Sprintf("%s: %s", o.messages.FetchSuccess, displayName), service.NotifySuccess)
		o.recordFetch(ctx, entity, features, time.Now())
		if entity != nil {
			o.pending.remove(entity.ID)
		}
		if owns {
			o.advanceLocked()
		}
		post = append(post, func() { o.notifyDataRefreshed(ctx, entityID) })

	case model.CodeInvalidCode:
		if owns {
			o.session.pinError = true
		}
		toast(o.messages.forCode(res.Code, o.messages.FetchError), service.NotifyError)

	case model.CodeNotLogged:
		o.view = ViewEntities
		toast(o.messages.forCode(res.Code, o.messages.FetchError), service.NotifyError)

	case model.CodeLinkExpired:
		toast(o.messages.forCode(res.Code, o.messages.LoginRequiredScrape), service.NotifyWarning)
		o.setEntityStatus(ctx, entity, model.StatusRequiresLogin)
		if owns {
			o.session.reset(true)
		}

	case model.CodeRemoteFailed:
		toast(o.messages.forCode(res.Code, o.messages.FetchError), service.NotifyError)
		if owns {
			o.session.reset(true)
		}

	default:
		// Forward compatibility: unmapped codes degrade to a generic
		// entity-scoped error.
		toast(o.messages.forCode(res.Code, o.messages.FetchError), service.NotifyError)
		if owns {
			o.session.reset(true)
		}
	}

	return post
}

// applySilentResult handles a fetch result in silent mode: bookkeeping
// only, no toasts, no navigation, no session changes.
func (o *Orchestrator) applySilentResult(ctx context.Context, entity *model.Entity, features []model.Feature, res *model.FetchResult) []func() {
	entityID := ""
	if entity != nil {
		entityID = entity.ID
	}

	var post []func()

	switch res.Code {
	case model.CodeCompleted:
		o.recordAttempt(entityID, true, 0)
		o.mu.Lock()
		o.recordFetch(ctx, entity, features, time.Now())
		o.mu.Unlock()
		post = append(post, func() { o.notifyDataRefreshed(ctx, entityID) })

	case model.CodePartiallyCompleted:
		o.recordAttempt(entityID, false, 0)
		o.mu.Lock()
		o.recordFetch(ctx, entity, features, time.Now())
		o.mu.Unlock()
		post = append(post, func() { o.notifyDataRefreshed(ctx, entityID) })

	case model.CodeLoginRequired:
		o.recordAttempt(entityID, false, 0)
		o.setEntityStatus(ctx, entity, model.StatusRequiresLogin)

	default:
		o.recordAttempt(entityID, false, 0)
	}

	return post
}

// advanceLocked finishes the active interaction: the session resets and the
// next queued entity, if any, takes over the modal. Callers must hold the
// lock.
func (o *Orchestrator) advanceLocked() {
	o.session.reset(false)
	if next := o.pending.next(); next != nil {
		o.activateLocked(next)
		return
	}
	o.view = ViewEntities
}

// activateLocked promotes a pending entry to the active session. Callers
// must hold the lock.
func (o *Orchestrator) activateLocked(e *pendingEntry) {
	o.session.entity = e.entity
	o.session.state = StateAwaitingSecondFactor
	o.session.processID = e.processID
	o.session.pinLength = e.pinLength
	o.session.action = e.action
	o.session.selectedFeatures = append([]model.Feature(nil), e.features...)
	o.session.fetchOptions = e.options
	o.session.pinError = false
	o.session.storedCredentials = nil
	o.session.manualResume = nil
}
