package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/programme-advisor/internal/catalogue"
	"github.com/spigell/programme-advisor/internal/contract"
	"github.com/spigell/programme-advisor/internal/filtering"
)

var catalogueCmd = &cobra.Command{
	Use:   "catalogue",
	Short: "List the programmes the configured catalogue currently offers",
	Args:  cobra.NoArgs,
	RunE:  runCatalogue,
}

func init() {
	rootCmd.AddCommand(catalogueCmd)

	catalogueCmd.Flags().Bool("render", false, "print the catalogue exactly as the model receives it")
	catalogueCmd.Flags().Bool("filters", false, "print the status of the catalogue filters")
	catalogueCmd.Flags().StringSlice("skip-filter", nil, "disable a filter by name (only required_fields can be disabled)")
}

func runCatalogue(cmd *cobra.Command, _ []string) error {
	render, _ := cmd.Flags().GetBool("render")
	showFilters, _ := cmd.Flags().GetBool("filters")
	skip, _ := cmd.Flags().GetStringSlice("skip-filter")

	d, err := setup(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer d.close()

	for _, name := range skip {
		filtering.DisableByName(d.filters, name, "disabled from the command line")
	}

	if showFilters {
		if err := printFilters(cmd, d.filters); err != nil {
			return err
		}
	}

	entries, err := d.resolver.Snapshot(cmd.Context())
	if err != nil {
		return failed(d.logger, "reading catalogue", contract.NewFailure(contract.KindCatalogueUnavailable, "catalogue store failed", err))
	}

	d.logger.Info("catalogue snapshot", zap.Int("count", len(entries)))

	if render {
		limit := 0
		if d.config.Catalogue != nil {
			limit = d.config.Catalogue.DescriptionLimit
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), catalogue.Render(entries, limit))
		return err
	}

	programmes := catalogue.Summaries(entries, catalogue.ListingDescriptionLimit)
	return printJSON(cmd.OutOrStdout(), map[string]any{"programmes": programmes, "count": len(programmes)})
}

func printFilters(cmd *cobra.Command, steps []filtering.Filter) error {
	for _, status := range filtering.Describe(steps) {
		state := "enabled"
		if !status.Enabled {
			state = "disabled"
		}

		details := make([]string, 0, len(status.Details))
		for k, v := range status.Details {
			details = append(details, k+"="+v)
		}

		line := fmt.Sprintf("%s: %s", status.Name, state)
		if status.Reason != "" {
			line += " (" + status.Reason + ")"
		}
		if len(details) > 0 {
			line += " " + strings.Join(details, " ")
		}
		if _, err := fmt.Fprintln(cmd.ErrOrStderr(), line); err != nil {
			return err
		}
	}
	return nil
}
