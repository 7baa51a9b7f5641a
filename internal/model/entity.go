// Package model defines the shared domain types for entity connections.
package model

import "time"

// EntityStatus is the connection state of an entity.
type EntityStatus string

// Entity connection states.
const (
	StatusConnected     EntityStatus = "CONNECTED"
	StatusDisconnected  EntityStatus = "DISCONNECTED"
	StatusRequiresLogin EntityStatus = "REQUIRES_LOGIN"
)

// EntityType categorizes a connectable source.
type EntityType string

// Entity categories.
const (
	TypeFinancialInstitution EntityType = "FINANCIAL_INSTITUTION"
	TypeCryptoWallet         EntityType = "CRYPTO_WALLET"
	TypeCommodity            EntityType = "COMMODITY"
)

// EntityOrigin distinguishes natively scraped entities from ones whose data
// is supplied by an external provider.
type EntityOrigin string

// Entity origins.
const (
	OriginNative             EntityOrigin = "NATIVE"
	OriginExternallyProvided EntityOrigin = "EXTERNALLY_PROVIDED"
)

// SetupLoginType says whether an entity's login can be automated or needs a
// manual browser hand-off.
type SetupLoginType string

// Login setup kinds.
const (
	LoginAutomated SetupLoginType = "AUTOMATED"
	LoginManual    SetupLoginType = "MANUAL"
)

// CredentialType is the kind of a single credential template field.
// INTERNAL and INTERNAL_TEMP fields are captured by automation and must
// never be shown to the user.
type CredentialType string

// Credential field kinds.
const (
	CredentialID           CredentialType = "ID"
	CredentialUser         CredentialType = "USER"
	CredentialPassword     CredentialType = "PASSWORD"
	CredentialPIN          CredentialType = "PIN"
	CredentialPhone        CredentialType = "PHONE"
	CredentialEmail        CredentialType = "EMAIL"
	CredentialAPIToken     CredentialType = "API_TOKEN"
	CredentialInternal     CredentialType = "INTERNAL"
	CredentialInternalTemp CredentialType = "INTERNAL_TEMP"
)

// Internal reports whether the field kind is machine-captured and hidden
// from login forms.
func (c CredentialType) Internal() bool {
	return c == CredentialInternal || c == CredentialInternalTemp
}

// Feature is a fetchable data category for an entity.
type Feature string

// Fetchable features.
const (
	FeaturePosition          Feature = "POSITION"
	FeatureAutoContributions Feature = "AUTO_CONTRIBUTIONS"
	FeatureTransactions      Feature = "TRANSACTIONS"
	FeatureHistoric          Feature = "HISTORIC"
)

// CredentialField is one entry of an entity's ordered credentials template.
type CredentialField struct {
	Name string
	Type CredentialType
}

// PinSpec describes an entity's second-factor PIN requirement.
type PinSpec struct {
	Positions int
}

// Entity identifies a connectable account or data source. The status field
// is mutated optimistically by the orchestrator after login/fetch/disconnect
// and reconciled on the next full directory refresh.
type Entity struct {
	LastFetch        map[Feature]time.Time
	ID               string
	Name             string
	ExternalEntityID string
	Type             EntityType
	Origin           EntityOrigin
	Status           EntityStatus
	SetupLoginType   SetupLoginType
	Credentials      []CredentialField
	Features         []Feature
	Pin              *PinSpec
}

// PinLength returns the entity's PIN digit count, defaulting to 4 when the
// directory did not specify one.
func (e *Entity) PinLength() int {
	if e.Pin == nil || e.Pin.Positions <= 0 {
		return 4
	}
	return e.Pin.Positions
}

// VisibleCredentialFields returns the template fields a user must fill in,
// excluding internal machine-captured ones.
func (e *Entity) VisibleCredentialFields() []CredentialField {
	fields := make([]CredentialField, 0, len(e.Credentials))
	for _, f := range e.Credentials {
		if !f.Type.Internal() {
			fields = append(fields, f)
		}
	}
	return fields
}

// NewestFetch returns the most recent last-fetch timestamp across the given
// features, or the zero time if none were ever fetched. An empty feature
// slice considers every recorded feature.
func (e *Entity) NewestFetch(features []Feature) time.Time {
	var newest time.Time
	if len(features) == 0 {
		for _, ts := range e.LastFetch {
			if ts.After(newest) {
				newest = ts
			}
		}
		return newest
	}
	for _, f := range features {
		if ts, ok := e.LastFetch[f]; ok && ts.After(newest) {
			newest = ts
		}
	}
	return newest
}

// FetchedFeatures returns the features that have at least one recorded
// successful fetch, in template order when listed, map order otherwise.
func (e *Entity) FetchedFeatures() []Feature {
	if len(e.Features) > 0 {
		out := make([]Feature, 0, len(e.Features))
		for _, f := range e.Features {
			if _, ok := e.LastFetch[f]; ok {
				out = append(out, f)
			}
		}
		return out
	}
	out := make([]Feature, 0, len(e.LastFetch))
	for f := range e.LastFetch {
		out = append(out, f)
	}
	return out
}
