// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/finanze/finanze-sub000/internal/model"
)

// FetchOptions tunes a single fetch request.
type FetchOptions struct {
	Code          string
	ProcessID     string
	Deep          bool
	AvoidNewLogin bool
	// Silent suppresses every user-visible effect; used only by the
	// unattended auto-refresh pass.
	Silent bool
}

// Gateway is the fetch/login server contract. Implementations perform the
// actual institution login or data retrieval; the orchestrator only cares
// about the returned result codes.
type Gateway interface {
	Login(ctx context.Context, entityID string, credentials map[string]string, code, processID string) (*model.LoginResult, error)
	FetchFinancial(ctx context.Context, entityID string, features []model.Feature, opts FetchOptions) (*model.FetchResult, error)
	// FetchCrypto accepts an empty entityID for the aggregate crypto-wide
	// fetch.
	FetchCrypto(ctx context.Context, entityID string, features []model.Feature, opts FetchOptions) (*model.FetchResult, error)
	// FetchExternal may fail with an HTTPStatusError instead of returning a
	// result code; status 429 signals a cooldown.
	FetchExternal(ctx context.Context, externalEntityID string) (*model.FetchResult, error)
	Disconnect(ctx context.Context, entityID string) error
}

// BridgeAck acknowledges that an external login hand-off started.
type BridgeAck struct {
	Success bool
}

// ExternalLoginCompletion is the asynchronous outcome of a browser login
// hand-off, delivered out of band after the BridgeAck.
type ExternalLoginCompletion struct {
	Credentials map[string]string
	Success     bool
}

// ExternalLoginBridge opens an out-of-band browser login flow for entities
// that cannot be automated.
type ExternalLoginBridge interface {
	// Available reports whether the host can open browser login windows.
	Available() bool
	Open(ctx context.Context, entityID string, credentials map[string]string) (BridgeAck, error)
}

// NotificationLevel is the severity of a user-facing toast.
type NotificationLevel string

// Toast severities.
const (
	NotifySuccess NotificationLevel = "success"
	NotifyWarning NotificationLevel = "warning"
	NotifyError   NotificationLevel = "error"
)

// Notifier delivers short user-facing messages. Silent operations never
// call it.
type Notifier interface {
	Notify(message string, level NotificationLevel)
}

// EntityStore persists the entity directory snapshot and per-feature fetch
// timestamps between runs.
type EntityStore interface {
	SaveEntities(ctx context.Context, entities []model.Entity) error
	GetEntities(ctx context.Context) ([]model.Entity, error)
	GetEntityByID(ctx context.Context, id string) (*model.Entity, error)
	UpdateEntityStatus(ctx context.Context, id string, status model.EntityStatus) error
	RecordFetch(ctx context.Context, entityID string, features []model.Feature, at time.Time) error
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
