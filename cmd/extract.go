package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spigell/programme-advisor/internal/advisor"
)

var extractCmd = &cobra.Command{
	Use:   "extract [cv-file]",
	Short: "Extract a structured profile from a CV document or pasted text",
	Long: "Reads a PDF, DOCX or plain-text CV (or --text) and prints the extracted profile as JSON.\n" +
		"The output can be fed back to the recommend command with --profile-file.",
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("text", "t", "", "pasted CV text used instead of a file")
	extractCmd.Flags().StringP("career-goals", "g", "", "career goals stated by the candidate")
}

func runExtract(cmd *cobra.Command, args []string) error {
	text, _ := cmd.Flags().GetString("text")
	goals, _ := cmd.Flags().GetString("career-goals")

	in, err := extractInput(args, text, goals)
	if err != nil {
		return err
	}

	d, err := setup(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer d.close()

	profile, err := d.pipeline.RunExtraction(cmd.Context(), in)
	if err != nil {
		return failed(d.logger, "extracting profile", err)
	}

	return printJSON(cmd.OutOrStdout(), profile)
}

func extractInput(args []string, text, goals string) (advisor.Input, error) {
	switch {
	case len(args) == 1 && text != "":
		return advisor.Input{}, fmt.Errorf("either a cv file or --text is accepted, not both")
	case len(args) == 1:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return advisor.Input{}, fmt.Errorf("reading cv: %w", err)
		}
		return advisor.Input{
			Kind:        advisor.KindDocument,
			Data:        data,
			Filename:    filepath.Base(args[0]),
			CareerGoals: goals,
		}, nil
	case text != "":
		return advisor.Input{Kind: advisor.KindText, Text: text, CareerGoals: goals}, nil
	default:
		return advisor.Input{}, fmt.Errorf("a cv file or --text is required")
	}
}
