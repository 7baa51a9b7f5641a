package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finanze/finanze-sub000/internal/model"
	"github.com/finanze/finanze-sub000/internal/workflow"
)

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <entity>",
		Short: "Connect an entity",
		Long: `Log in to an entity by ID or name. Credentials are prompted from the
entity's template; a second-factor code is prompted when the provider asks
for one.`,
		Args: cobra.ExactArgs(1),
		RunE: runLogin,
	}
	cmd.Flags().Bool("cached", false, "Resolve the entity from the local snapshot")
	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	application, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = application.Close() }()

	cached, _ := cmd.Flags().GetBool("cached")
	entities, err := loadEntities(ctx, application, cached)
	if err != nil {
		return err
	}

	entity, err := findEntity(entities, args[0])
	if err != nil {
		return err
	}
	if entity.SetupLoginType == model.LoginManual {
		return fmt.Errorf("entity %q needs a browser login, which this command cannot drive", entity.Name)
	}

	orch := application.orchestrator
	orch.SelectEntity(entity)

	credentials, err := promptCredentials(entity)
	if err != nil {
		return err
	}

	if err := orch.Login(ctx, credentials, ""); err != nil {
		return err
	}

	for orch.PinRequired() {
		if orch.PinError() {
			fmt.Println("The code was rejected, try again.")
			orch.ClearPinError()
		}

		code, err := promptPin(orch.PinLength())
		if err != nil {
			return err
		}
		if code == "" {
			orch.ResetState(workflow.ResetOptions{})
			return fmt.Errorf("login cancelled")
		}

		if err := orch.Login(ctx, nil, code); err != nil {
			return err
		}
	}

	if entity.Status != model.StatusConnected {
		return fmt.Errorf("login did not complete")
	}
	return nil
}
