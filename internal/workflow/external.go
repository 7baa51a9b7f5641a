package workflow

import (
	"context"

	"github.com/finanze/finanze-sub000/internal/common"
	"github.com/finanze/finanze-sub000/internal/model"
	"github.com/finanze/finanze-sub000/internal/service"
)

// StartExternalLogin hands the entity's login off to the browser bridge.
// It fails fast when the host cannot open browser logins. On a failed
// hand-off the session resets and the UI returns to the entity list.
func (o *Orchestrator) StartExternalLogin(ctx context.Context, entity *model.Entity, credentials map[string]string) error {
	o.mu.Lock()
	if entity == nil {
		entity = o.session.entity
	}
	if entity == nil {
		o.mu.Unlock()
		o.logger.Error("No entity provided for external login")
		o.notify(o.messages.LoginError, service.NotifyError)
		return common.ErrNoEntitySelected
	}
	if o.bridge == nil || !o.bridge.Available() {
		o.mu.Unlock()
		o.notify(o.messages.IncompatiblePlatform, service.NotifyError)
		return common.ErrIncompatiblePlatform
	}

	o.session.entity = entity
	o.session.state = StateAwaitingExternalLogin
	o.view = ViewExternalLogin
	o.mu.Unlock()

	ack, err := o.bridge.Open(ctx, entity.ID, credentials)
	if err != nil || !ack.Success {
		if err != nil {
			o.logger.Error("External login error", "entity", entity.ID, "error", err)
		}
		o.notify(o.messages.ExternalLoginFailed, service.NotifyError)
		o.mu.Lock()
		o.session.reset(false)
		o.view = ViewEntities
		o.mu.Unlock()
		if err != nil {
			return err
		}
		return common.ErrExternalLoginFailed
	}

	return nil
}

// CompleteExternalLogin receives the bridge's asynchronous completion
// event. A completion arriving with no active session is logged and
// ignored. When the captured credentials cover every visible template
// field, login proceeds directly; otherwise they pre-fill the manual login
// form.
func (o *Orchestrator) CompleteExternalLogin(ctx context.Context, entityID string, result service.ExternalLoginCompletion) {
	o.mu.Lock()
	entity := o.session.entity
	if entity == nil {
		o.mu.Unlock()
		o.logger.Warn("External login completed with no active session", "entity", entityID)
		return
	}

	o.logger.Debug("External login completed", "entity", entityID, "success", result.Success)

	if !result.Success {
		o.session.reset(false)
		o.view = ViewEntities
		o.mu.Unlock()
		o.notify(o.messages.ExternalLoginFailed, service.NotifyError)
		return
	}

	resume := o.session.manualResume
	if resume != nil {
		o.session.manualResume = nil
		o.mu.Unlock()
		o.resumeScrapeAfterLogin(ctx, entity, result.Credentials, resume)
		return
	}

	if credentialsComplete(entity, result.Credentials) {
		o.mu.Unlock()
		if err := o.Login(ctx, result.Credentials, ""); err != nil {
			o.logger.Error("Login after external capture failed", "entity", entity.ID, "error", err)
		}
		return
	}

	// Still missing visible fields; show the manual login form pre-filled
	// with what the bridge captured.
	o.session.storedCredentials = result.Credentials
	o.view = ViewLogin
	o.mu.Unlock()
}

// resumeScrapeAfterLogin completes the login paired with a mid-scrape
// browser hand-off, then replays the deferred scrape.
func (o *Orchestrator) resumeScrapeAfterLogin(ctx context.Context, entity *model.Entity, credentials map[string]string, resume *manualLoginResume) {
	o.mu.Lock()
	o.loggingIn = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.loggingIn = false
		o.mu.Unlock()
	}()

	res, err := o.gateway.Login(ctx, entity.ID, credentials, "", "")
	if err != nil {
		o.logger.Error("Login after manual capture failed", "entity", entity.ID, "error", err)
		o.notify(o.messages.LoginError, service.NotifyError)
		o.mu.Lock()
		o.session.reset(false)
		o.view = ViewEntities
		o.mu.Unlock()
		return
	}

	if !res.Code.LoginSucceeded() {
		o.notify(o.messages.forCode(res.Code, o.messages.LoginError), service.NotifyError)
		o.mu.Lock()
		o.session.reset(false)
		o.view = ViewEntities
		o.mu.Unlock()
		return
	}

	o.setEntityStatus(ctx, entity, model.StatusConnected)

	if err := o.Scrape(ctx, entity, resume.features, resume.options); err != nil {
		o.logger.Error("Deferred scrape after manual login failed", "entity", entity.ID, "error", err)
	}
}

// credentialsComplete reports whether every non-internal template field has
// a captured value.
func credentialsComplete(entity *model.Entity, credentials map[string]string) bool {
	for _, field := range entity.VisibleCredentialFields() {
		if credentials[field.Name] == "" {
			return false
		}
	}
	return true
}
