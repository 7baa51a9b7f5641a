package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/finanze/finanze-sub000/internal/common"
	"github.com/finanze/finanze-sub000/internal/directory"
	"github.com/finanze/finanze-sub000/internal/gateway"
	"github.com/finanze/finanze-sub000/internal/model"
	"github.com/finanze/finanze-sub000/internal/refresh"
	"github.com/finanze/finanze-sub000/internal/service"
	"github.com/finanze/finanze-sub000/internal/storage"
	"github.com/finanze/finanze-sub000/internal/workflow"
)

// consoleNotifier prints orchestrator toasts to stdout.
type consoleNotifier struct{}

func (consoleNotifier) Notify(message string, level service.NotificationLevel) {
	switch level {
	case service.NotifySuccess:
		fmt.Printf("✓ %s\n", message)
	case service.NotifyWarning:
		fmt.Printf("! %s\n", message)
	default:
		fmt.Printf("✗ %s\n", message)
	}
}

// app bundles the wired collaborators behind a command.
type app struct {
	store        *storage.SQLiteStore
	gateway      *gateway.Client
	orchestrator *workflow.Orchestrator
	refresher    *directory.Refresher
	bookkeeping  *refresh.Bookkeeping
}

// newApp wires the storage, gateway, and orchestrator from configuration.
func newApp(ctx context.Context) (*app, error) {
	store, err := storage.NewSQLiteStore(viper.GetString("storage.path"))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate storage: %w", err)
	}

	gw, err := gateway.NewClient(viper.GetString("gateway.url"))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	bookkeeping := refresh.NewBookkeeping()

	orch := workflow.New(workflow.Config{
		Gateway:  gw,
		Notifier: consoleNotifier{},
		Store:    store,
		Recorder: bookkeeping,
	})

	return &app{
		store:        store,
		gateway:      gw,
		orchestrator: orch,
		refresher:    directory.NewRefresher(gw, store),
		bookkeeping:  bookkeeping,
	}, nil
}

// Close releases the app's resources.
func (a *app) Close() error {
	return a.store.Close()
}

func contextWithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// loadEntities returns the entity directory, from the local snapshot when
// cached is set and from the gateway otherwise.
func loadEntities(ctx context.Context, a *app, cached bool) ([]model.Entity, error) {
	if cached {
		return a.refresher.Load(ctx)
	}
	return a.refresher.Refresh(ctx)
}

// findEntity resolves a command-line argument against the directory by ID
// first, then by case-insensitive name.
func findEntity(entities []model.Entity, arg string) (*model.Entity, error) {
	for i := range entities {
		if entities[i].ID == arg {
			return &entities[i], nil
		}
	}
	for i := range entities {
		if strings.EqualFold(entities[i].Name, arg) {
			return &entities[i], nil
		}
	}
	return nil, fmt.Errorf("entity %q: %w", arg, common.ErrNotFound)
}

func secretField(t model.CredentialType) bool {
	switch t {
	case model.CredentialPassword, model.CredentialPIN, model.CredentialAPIToken:
		return true
	default:
		return false
	}
}

// promptCredentials asks for each visible template field on stdin. Secret
// fields are read without echo when stdin is a terminal.
func promptCredentials(entity *model.Entity) (map[string]string, error) {
	reader := bufio.NewReader(os.Stdin)
	credentials := make(map[string]string)

	for _, field := range entity.VisibleCredentialFields() {
		fmt.Printf("%s: ", field.Name)

		if secretField(field.Type) && term.IsTerminal(int(os.Stdin.Fd())) {
			raw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", field.Name, err)
			}
			credentials[field.Name] = string(raw)
			continue
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", field.Name, err)
		}
		credentials[field.Name] = strings.TrimSpace(line)
	}

	return credentials, nil
}

// promptPin reads a second-factor code of the given length. An empty line
// aborts.
func promptPin(length int) (string, error) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("Enter %d-digit code (empty to cancel): ", length)
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read code: %w", err)
		}
		code := strings.TrimSpace(line)
		if code == "" || len(code) == length {
			return code, nil
		}
		fmt.Printf("Code must be %d digits.\n", length)
	}
}

// parseFeatures converts --features values into domain features, validating
// against the known set.
func parseFeatures(values []string) ([]model.Feature, error) {
	known := map[model.Feature]bool{
		model.FeaturePosition:          true,
		model.FeatureAutoContributions: true,
		model.FeatureTransactions:      true,
		model.FeatureHistoric:          true,
	}
	features := make([]model.Feature, 0, len(values))
	for _, v := range values {
		f := model.Feature(strings.ToUpper(strings.TrimSpace(v)))
		if !known[f] {
			return nil, fmt.Errorf("unknown feature %q", v)
		}
		features = append(features, f)
	}
	return features, nil
}
