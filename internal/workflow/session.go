package workflow

import (
	"github.com/finanze/finanze-sub000/internal/model"
	"github.com/finanze/finanze-sub000/internal/service"
)

// StateKind is the orchestrator's session state. Exactly one session drives
// the visible modal at a time; concurrent second-factor requests for other
// entities wait in the pending queue.
type StateKind string

// Session states.
const (
	// StateIdle means no interaction is in flight.
	StateIdle StateKind = "idle"
	// StateAwaitingSecondFactor means a continuation token is held and the
	// second-factor prompt is shown.
	StateAwaitingSecondFactor StateKind = "awaiting-second-factor"
	// StateManualLoginPending means a scrape was deferred to a browser
	// login whose bridge call is still outstanding.
	StateManualLoginPending StateKind = "manual-login-pending"
	// StateAwaitingExternalLogin means the browser hand-off window is open.
	StateAwaitingExternalLogin StateKind = "awaiting-external-login"
)

// Action says which operation a second-factor challenge resumes.
type Action string

// Resumable actions.
const (
	ActionNone   Action = ""
	ActionLogin  Action = "login"
	ActionScrape Action = "scrape"
)

// View is the UI surface the orchestrator steers. Silent operations never
// change it.
type View string

// Views.
const (
	ViewEntities      View = "entities"
	ViewLogin         View = "login"
	ViewFeatures      View = "features"
	ViewExternalLogin View = "external-login"
)

// manualLoginResume holds the scrape arguments to replay once a mid-scrape
// browser login completes.
type manualLoginResume struct {
	features []model.Feature
	options  service.FetchOptions
}

// session is the orchestrator's transient state for one in-flight
// interaction.
type session struct {
	entity            *model.Entity
	storedCredentials map[string]string
	manualResume      *manualLoginResume
	state             StateKind
	action            Action
	processID         string
	selectedFeatures  []model.Feature
	fetchOptions      service.FetchOptions
	pinLength         int
	pinError          bool
}

// reset clears the session back to idle. When preserveFeatures is set, the
// selected feature set, fetch options, and continuation token survive so a
// retry does not lose the user's choices.
func (s *session) reset(preserveFeatures bool) {
	s.state = StateIdle
	s.action = ActionNone
	s.storedCredentials = nil
	s.manualResume = nil
	s.pinError = false
	s.pinLength = 0

	if !preserveFeatures {
		s.selectedFeatures = nil
		s.fetchOptions = service.FetchOptions{}
		s.processID = ""
	}
}
