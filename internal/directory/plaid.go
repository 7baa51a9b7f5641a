package directory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/plaid/plaid-go/v20/plaid"
)

// PlaidConfig holds Plaid API configuration for institution discovery.
type PlaidConfig struct {
	ClientID    string
	Secret      string
	Environment string // sandbox or production
}

// Validate ensures all required fields are present.
func (c *PlaidConfig) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("plaid client ID is required")
	}
	if c.Secret == "" {
		return fmt.Errorf("plaid secret is required")
	}
	switch c.Environment {
	case "sandbox", "production":
		return nil
	case "":
		return fmt.Errorf("plaid environment is required")
	default:
		return fmt.Errorf("invalid Plaid environment: must be sandbox or production")
	}
}

// Institution is a discoverable financial institution.
type Institution struct {
	ID    string
	Name  string
	OAuth bool
}

// PlaidSearcher discovers financial institutions through the Plaid
// institutions API, for connecting entities not yet in the directory.
type PlaidSearcher struct {
	client *plaid.APIClient
	logger *slog.Logger
}

// NewPlaidSearcher creates a Plaid-backed institution searcher.
func NewPlaidSearcher(cfg PlaidConfig) (*PlaidSearcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)

	switch cfg.Environment {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	}

	return &PlaidSearcher{
		client: plaid.NewAPIClient(configuration),
		logger: slog.Default().With("component", "plaid"),
	}, nil
}

// SearchInstitutions searches institutions by name. OAuth-only institutions
// need a browser login, which maps to the manual setup login type.
func (s *PlaidSearcher) SearchInstitutions(ctx context.Context, query string, limit int) ([]Institution, error) {
	request := plaid.NewInstitutionsSearchRequest(
		query,
		[]plaid.CountryCode{plaid.COUNTRYCODE_US, plaid.COUNTRYCODE_ES},
	)
	request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})
	request.SetOptions(plaid.InstitutionsSearchRequestOptions{
		IncludeOptionalMetadata: plaid.PtrBool(true),
	})

	resp, _, err := s.client.PlaidApi.InstitutionsSearch(ctx).InstitutionsSearchRequest(*request).Execute()
	if err != nil {
		if plaidError := extractPlaidError(err); plaidError != nil {
			return nil, fmt.Errorf("plaid API error: %s - %s", plaidError.ErrorCode, plaidError.ErrorMessage)
		}
		return nil, fmt.Errorf("failed to search institutions: %w", err)
	}

	institutions := make([]Institution, 0, limit)
	for i, inst := range resp.GetInstitutions() {
		if i >= limit {
			break
		}
		institutions = append(institutions, Institution{
			ID:    inst.GetInstitutionId(),
			Name:  inst.GetName(),
			OAuth: inst.GetOauth(),
		})
	}

	s.logger.Debug("Institution search finished", "query", query, "results", len(institutions))
	return institutions, nil
}

// CreateLinkToken creates a Link token for connecting a new institution.
func (s *PlaidSearcher) CreateLinkToken(ctx context.Context) (string, error) {
	user := plaid.LinkTokenCreateRequestUser{
		ClientUserId: "finanze-user-" + time.Now().Format("20060102150405"),
	}

	request := plaid.NewLinkTokenCreateRequest(
		"Finanze",
		"en",
		[]plaid.CountryCode{plaid.COUNTRYCODE_US},
		user,
	)
	request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})

	resp, _, err := s.client.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		if plaidError := extractPlaidError(err); plaidError != nil {
			return "", fmt.Errorf("plaid API error: %s - %s", plaidError.ErrorCode, plaidError.ErrorMessage)
		}
		return "", fmt.Errorf("failed to create link token: %w", err)
	}

	return resp.GetLinkToken(), nil
}

// extractPlaidError attempts to extract a Plaid error from a generic error.
func extractPlaidError(err error) *plaid.PlaidError {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return nil
	}
	return &plaidErr
}
