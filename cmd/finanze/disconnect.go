package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func disconnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disconnect <entity>",
		Short: "Disconnect an entity and forget its saved login",
		Args:  cobra.ExactArgs(1),
		RunE:  runDisconnect,
	}
	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func runDisconnect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	application, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = application.Close() }()

	entities, err := loadEntities(ctx, application, true)
	if err != nil {
		return err
	}

	entity, err := findEntity(entities, args[0])
	if err != nil {
		return err
	}

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		fmt.Printf("Disconnect %s? [y/N]: ", entity.Name)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	return application.orchestrator.DisconnectEntity(ctx, entity.ID)
}
