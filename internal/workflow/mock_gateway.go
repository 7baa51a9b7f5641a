package workflow

import (
	"context"
	"sync"

	"github.com/finanze/finanze-sub000/internal/model"
	"github.com/finanze/finanze-sub000/internal/service"
)

// MockGateway is a scriptable test implementation of the Gateway interface.
// Queue results per entity id (the aggregate crypto fetch uses the empty
// id); unscripted calls return COMPLETED.
type MockGateway struct {
	loginResults map[string][]*model.LoginResult
	loginErrs    map[string][]error
	fetchResults map[string][]*model.FetchResult
	fetchErrs    map[string][]error
	calls        []MockGatewayCall
	disconnected []string
	mu           sync.Mutex
}

// MockGatewayCall records one gateway invocation.
type MockGatewayCall struct {
	Op        string
	EntityID  string
	Code      string
	ProcessID string
	Features  []model.Feature
	Options   service.FetchOptions
}

// NewMockGateway creates an empty scriptable gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		loginResults: make(map[string][]*model.LoginResult),
		loginErrs:    make(map[string][]error),
		fetchResults: make(map[string][]*model.FetchResult),
		fetchErrs:    make(map[string][]error),
	}
}

// QueueLogin scripts the next login result for an entity.
func (m *MockGateway) QueueLogin(entityID string, res *model.LoginResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginResults[entityID] = append(m.loginResults[entityID], res)
}

// QueueLoginError scripts the next login call for an entity to fail.
func (m *MockGateway) QueueLoginError(entityID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginErrs[entityID] = append(m.loginErrs[entityID], err)
}

// QueueFetch scripts the next fetch result for an entity.
func (m *MockGateway) QueueFetch(entityID string, res *model.FetchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchResults[entityID] = append(m.fetchResults[entityID], res)
}

// QueueFetchError scripts the next fetch call for an entity to fail.
func (m *MockGateway) QueueFetchError(entityID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErrs[entityID] = append(m.fetchErrs[entityID], err)
}

// Login returns the next scripted login result.
func (m *MockGateway) Login(_ context.Context, entityID string, _ map[string]string, code, processID string) (*model.LoginResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockGatewayCall{Op: "login", EntityID: entityID, Code: code, ProcessID: processID})
	if queued := m.loginErrs[entityID]; len(queued) > 0 {
		m.loginErrs[entityID] = queued[1:]
		return nil, queued[0]
	}
	if queued := m.loginResults[entityID]; len(queued) > 0 {
		m.loginResults[entityID] = queued[1:]
		return queued[0], nil
	}
	return &model.LoginResult{Code: model.CodeCreated}, nil
}

// FetchFinancial returns the next scripted fetch result.
func (m *MockGateway) FetchFinancial(_ context.Context, entityID string, features []model.Feature, opts service.FetchOptions) (*model.FetchResult, error) {
	return m.fetch("financial", entityID, features, opts)
}

// FetchCrypto returns the next scripted fetch result.
func (m *MockGateway) FetchCrypto(_ context.Context, entityID string, features []model.Feature, opts service.FetchOptions) (*model.FetchResult, error) {
	return m.fetch("crypto", entityID, features, opts)
}

// FetchExternal returns the next scripted fetch result for the external
// entity id.
func (m *MockGateway) FetchExternal(_ context.Context, externalEntityID string) (*model.FetchResult, error) {
	return m.fetch("external", externalEntityID, nil, service.FetchOptions{})
}

// Disconnect records the disconnected entity id.
func (m *MockGateway) Disconnect(_ context.Context, entityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockGatewayCall{Op: "disconnect", EntityID: entityID})
	m.disconnected = append(m.disconnected, entityID)
	return nil
}

func (m *MockGateway) fetch(op, entityID string, features []model.Feature, opts service.FetchOptions) (*model.FetchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockGatewayCall{Op: op, EntityID: entityID, Features: features, Options: opts, ProcessID: opts.ProcessID, Code: opts.Code})
	if queued := m.fetchErrs[entityID]; len(queued) > 0 {
		m.fetchErrs[entityID] = queued[1:]
		return nil, queued[0]
	}
	if queued := m.fetchResults[entityID]; len(queued) > 0 {
		m.fetchResults[entityID] = queued[1:]
		return queued[0], nil
	}
	return &model.FetchResult{Code: model.CodeCompleted}, nil
}

// Calls returns all recorded invocations.
func (m *MockGateway) Calls() []MockGatewayCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]MockGatewayCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// Disconnected returns the entity ids disconnect was called for.
func (m *MockGateway) Disconnected() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.disconnected))
	copy(out, m.disconnected)
	return out
}

// Ensure MockGateway implements the Gateway interface.
var _ service.Gateway = (*MockGateway)(nil)
