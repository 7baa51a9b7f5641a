package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finanze/finanze-sub000/internal/common"
	"github.com/finanze/finanze-sub000/internal/model"
	"github.com/finanze/finanze-sub000/internal/service"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(server.URL)
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient("")
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestLogin(t *testing.T) {
	var got loginRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(loginResponse{
			Code:      model.CodeCodeRequested,
			ProcessID: "proc-1",
		})
	}))

	res, err := client.Login(context.Background(),
		"bank-1", map[string]string{"user": "u"}, "123456", "proc-0")
	require.NoError(t, err)

	assert.Equal(t, model.CodeCodeRequested, res.Code)
	assert.Equal(t, "proc-1", res.ProcessID)

	assert.Equal(t, "bank-1", got.Entity)
	assert.Equal(t, "123456", got.Code)
	assert.Equal(t, "proc-0", got.ProcessID)
	assert.Equal(t, map[string]string{"user": "u"}, got.Credentials)
}

func TestFetchFinancial(t *testing.T) {
	var got fetchRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/fetch/financial", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(fetchResponse{
			Code:    model.CodeCooldown,
			Details: &fetchDetails{Wait: 125},
		})
	}))

	res, err := client.FetchFinancial(context.Background(), "bank-1",
		[]model.Feature{model.FeaturePosition},
		service.FetchOptions{Deep: true, AvoidNewLogin: true})
	require.NoError(t, err)

	assert.Equal(t, model.CodeCooldown, res.Code)
	require.NotNil(t, res.Details)
	assert.Equal(t, 125, res.Details.WaitSeconds)

	assert.Equal(t, "bank-1", got.Entity)
	assert.Equal(t, []model.Feature{model.FeaturePosition}, got.Features)
	assert.True(t, got.Deep)
	assert.True(t, got.AvoidNewLogin)
}

func TestFetchExternalCooldownStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/fetch/external/remote-9", r.URL.Path)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.FetchExternal(context.Background(), "remote-9")
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, common.HTTPStatus(err))
}

func TestTransportFailureWrapsUserError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	client, err := NewClient(server.URL)
	require.NoError(t, err)
	server.Close()

	_, err = client.Login(context.Background(), "bank-1", nil, "", "")
	require.Error(t, err)

	assert.ErrorIs(t, err, common.ErrGatewayConnection)

	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "could not reach the fetch server", userErr.UserMessage)
}

func TestDisconnect(t *testing.T) {
	var gotMethod, gotPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, client.Disconnect(context.Background(), "bank-1"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/api/v1/entities/bank-1", gotPath)
}

func TestEntities(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/entities", r.URL.Path)

		_ = json.NewEncoder(w).Encode(entitiesResponse{
			Entities: []entityPayload{
				{
					ID:             "bank-1",
					Name:           "Alpha Bank",
					Type:           "FINANCIAL_INSTITUTION",
					Status:         "CONNECTED",
					SetupLoginType: "AUTOMATED",
					CredentialsTemplate: map[string]string{
						"user":     "USER",
						"password": "PASSWORD",
						"session":  "INTERNAL",
					},
					Features: []model.Feature{model.FeaturePosition},
					Pin: &struct {
						Positions int `json:"positions"`
					}{Positions: 6},
				},
			},
		})
	}))

	entities, err := client.Entities(context.Background())
	require.NoError(t, err)
	require.Len(t, entities, 1)

	e := entities[0]
	assert.Equal(t, "bank-1", e.ID)
	assert.Equal(t, model.OriginNative, e.Origin, "missing origin defaults to native")
	require.NotNil(t, e.Pin)
	assert.Equal(t, 6, e.Pin.Positions)

	// Template fields come back name-sorted regardless of JSON map order.
	require.Len(t, e.Credentials, 3)
	assert.Equal(t, "password", e.Credentials[0].Name)
	assert.Equal(t, "session", e.Credentials[1].Name)
	assert.Equal(t, "user", e.Credentials[2].Name)
	assert.Equal(t, model.CredentialPassword, e.Credentials[0].Type)

	visible := e.VisibleCredentialFields()
	require.Len(t, visible, 2)
}

func TestEntitiesHTTPErrorNotRetried(t *testing.T) {
	attempts := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.Entities(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, common.HTTPStatus(err))
	assert.Equal(t, 1, attempts, "HTTP rejections are not retried")
}
