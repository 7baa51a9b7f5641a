package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finanze/finanze-sub000/internal/model"
	"github.com/finanze/finanze-sub000/internal/service"
	"github.com/finanze/finanze-sub000/internal/workflow"
)

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [entity]",
		Short: "Fetch data from an entity",
		Long: `Fetch data from a connected entity by ID or name. Without an argument all
crypto wallets are fetched in aggregate. A second-factor code is prompted
when the provider asks for one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runFetch,
	}
	cmd.Flags().StringSlice("features", nil, "Features to fetch (position, transactions, auto_contributions, historic)")
	cmd.Flags().Bool("deep", false, "Fetch the full available history")
	cmd.Flags().Bool("avoid-new-login", false, "Fail instead of starting a fresh login")
	cmd.Flags().Bool("cached", false, "Resolve the entity from the local snapshot")
	return cmd
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	application, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = application.Close() }()

	rawFeatures, _ := cmd.Flags().GetStringSlice("features")
	features, err := parseFeatures(rawFeatures)
	if err != nil {
		return err
	}

	deep, _ := cmd.Flags().GetBool("deep")
	avoidNewLogin, _ := cmd.Flags().GetBool("avoid-new-login")
	opts := service.FetchOptions{Deep: deep, AvoidNewLogin: avoidNewLogin}

	orch := application.orchestrator

	// No entity means the aggregate crypto fetch.
	if len(args) == 0 {
		return orch.Scrape(ctx, nil, nil, opts)
	}

	cached, _ := cmd.Flags().GetBool("cached")
	entities, err := loadEntities(ctx, application, cached)
	if err != nil {
		return err
	}

	entity, err := findEntity(entities, args[0])
	if err != nil {
		return err
	}
	if len(features) == 0 {
		features = []model.Feature{model.FeaturePosition}
	}

	if err := orch.Scrape(ctx, entity, features, opts); err != nil {
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
			return fmt.Errorf("fetch cancelled")
		}

		resumeOpts := orch.FetchOptions()
		resumeOpts.Code = code
		if err := orch.Scrape(ctx, entity, orch.SelectedFeatures(), resumeOpts); err != nil {
			return err
		}
	}

	return nil
}
