package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/finanze/finanze-sub000/internal/directory"
)

func entitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "List and discover connectable entities",
	}

	cmd.AddCommand(entitiesListCmd())
	cmd.AddCommand(entitiesSearchCmd())

	return cmd
}

func entitiesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the entity directory",
		RunE:  runEntitiesList,
	}
	cmd.Flags().Bool("cached", false, "Use the local snapshot without contacting the gateway")
	return cmd
}

func runEntitiesList(cmd *cobra.Command, _ []string) error {
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

	if len(entities) == 0 {
		fmt.Println("No entities found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTATUS\tLOGIN\tLAST FETCH")
	for i := range entities {
		e := &entities[i]
		last := "never"
		if newest := e.NewestFetch(nil); !newest.IsZero() {
			last = newest.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Name, e.Type, e.Status, e.SetupLoginType, last)
	}
	return w.Flush()
}

func entitiesSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search financial institutions by name",
		Long: `Search financial institutions through Plaid and see whether they can be
connected with an automated login or need a browser (OAuth) login.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runEntitiesSearch,
	}
	cmd.Flags().Int("limit", 10, "Maximum number of results to show")
	cmd.Flags().String("env", "", "Plaid environment (sandbox/production)")
	return cmd
}

func runEntitiesSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query := strings.Join(args, " ")

	cfg := directory.PlaidConfig{
		ClientID:    viper.GetString("plaid.client_id"),
		Secret:      viper.GetString("plaid.secret"),
		Environment: viper.GetString("plaid.environment"),
	}
	if flagEnv, _ := cmd.Flags().GetString("env"); flagEnv != "" {
		cfg.Environment = flagEnv
	}
	if cfg.ClientID == "" {
		cfg.ClientID = os.Getenv("PLAID_CLIENT_ID")
	}
	if cfg.Secret == "" {
		cfg.Secret = os.Getenv("PLAID_SECRET")
	}
	if cfg.Environment == "" {
		cfg.Environment = "production"
	}

	searcher, err := directory.NewPlaidSearcher(cfg)
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")

	searchCtx, cancel := contextWithTimeout(ctx, 30*time.Second)
	defer cancel()

	institutions, err := searcher.SearchInstitutions(searchCtx, query, limit)
	if err != nil {
		return err
	}

	if len(institutions) == 0 {
		fmt.Println("No institutions found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tLOGIN")
	for _, inst := range institutions {
		login := "automated"
		if inst.OAuth {
			login = "browser"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", inst.ID, inst.Name, login)
	}
	return w.Flush()
}
