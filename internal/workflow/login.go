package workflow

import (
	"context"
	"fmt"

	"github.com/finanze/finanze-sub000/internal/common"
	"github.com/finanze/finanze-sub000/internal/model"
	"github.com/finanze/finanze-sub000/internal/service"
)

// Login invokes the gateway login operation for the selected entity.
// Credentials supplied once are cached for the duration of a second-factor
// retry loop; the continuation token is sent back when one is held.
func (o *Orchestrator) Login(ctx context.Context, credentials map[string]string, code string) error {
	o.mu.Lock()
	entity := o.session.entity
	if entity == nil {
		o.mu.Unlock()
		return common.ErrNoEntitySelected
	}

	o.loggingIn = true
	o.session.pinError = false

	if o.session.storedCredentials == nil && len(credentials) > 0 {
		stored := make(map[string]string, len(credentials))
		for k, v := range credentials {
			stored[k] = v
		}
		o.session.storedCredentials = stored
	}

	creds := o.session.storedCredentials
	if creds == nil {
		creds = credentials
	}
	processID := o.session.processID
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.loggingIn = false
		o.mu.Unlock()
	}()

	res, err := o.gateway.Login(ctx, entity.ID, creds, code, processID)
	if err != nil {
		o.logger.Error("Login call failed", "entity", entity.ID, "error", err)
		// A transport failure ends the interaction: credentials and any
		// pending second factor must not outlive it.
		o.mu.Lock()
		o.session.reset(false)
		o.mu.Unlock()
		o.notify(o.messages.LoginError, service.NotifyError)
		return err
	}

	o.applyLoginResult(ctx, entity, res)
	return nil
}

// applyLoginResult drives the login state transition for a gateway result.
func (o *Orchestrator) applyLoginResult(ctx context.Context, entity *model.Entity, res *model.LoginResult) {
	o.mu.Lock()

	var toast func()

	switch {
	case res.Code == model.CodeCodeRequested:
		o.session.state = StateAwaitingSecondFactor
		o.session.processID = res.ProcessID
		o.session.pinLength = entity.PinLength()
		o.session.action = ActionLogin

	case res.Code.LoginSucceeded():
		o.setEntityStatus(ctx, entity, model.StatusConnected)
		o.session.reset(false)
		o.view = ViewEntities
		msg := fmt.Sprintf("%s: %s", o.messages.LoginSuccess, entity.Name)
		toast = func() { o.notify(msg, service.NotifySuccess) }

	case res.Code == model.CodeInvalidCode:
		// The continuation token survives so the user can retry the code.
		o.session.pinError = true
		msg := o.messages.forCode(res.Code, o.messages.LoginError)
		toast = func() { o.notify(msg, service.NotifyError) }

	default:
		o.session.reset(false)
		msg := o.messages.forCode(res.Code, o.messages.LoginError)
		toast = func() { o.notify(msg, service.NotifyError) }
	}

	o.mu.Unlock()

	if toast != nil {
		toast()
	}
}
