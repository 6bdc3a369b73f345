package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/programme-advisor/internal/advisor"
	"github.com/spigell/programme-advisor/internal/contract"
)

const (
	PromptSkip = "skip"
)

// formQuestions are asked by --interactive, in this order.
var formQuestions = []struct {
	key      string
	label    string
	required bool
}{
	{key: "name", label: "Name"},
	{key: "email", label: "Email"},
	{key: "jobTitle", label: "Current job title", required: true},
	{key: "industry", label: "Industry"},
	{key: "yearsExperience", label: "Years of experience"},
	{key: "education", label: "Education"},
	{key: "careerGoals", label: "Career goals"},
	{key: "interestAreas", label: "Areas of interest"},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend the three best-fitting programmes for a profile",
	Long: "Takes a profile (from the extract command, --field flags or an interactive form),\n" +
		"resolves the catalogue and prints three recommendations with an outreach email as JSON.",
	Args: cobra.NoArgs,
	RunE: runRecommend,
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().StringP("profile-file", "p", "", "a JSON profile, as printed by the extract command")
	recommendCmd.Flags().StringArrayP("field", "f", nil, "a profile field as key=value, may be repeated")
	recommendCmd.Flags().StringP("catalogue-file", "c", "", "rendered catalogue text used when the catalogue store yields nothing")
	recommendCmd.Flags().BoolP("interactive", "i", false, "fill the profile form interactively")
	recommendCmd.Flags().String("submissions-file", "", "append the submission as a JSON line to this file")
	recommendCmd.Flags().String("contact-email", "", "contact email recorded with the submission")
}

func runRecommend(cmd *cobra.Command, _ []string) error {
	profileFile, _ := cmd.Flags().GetString("profile-file")
	rawFields, _ := cmd.Flags().GetStringArray("field")
	catalogueFile, _ := cmd.Flags().GetString("catalogue-file")
	interactive, _ := cmd.Flags().GetBool("interactive")
	contactEmail, _ := cmd.Flags().GetString("contact-email")

	in, method, err := recommendationInput(profileFile, rawFields, interactive)
	if err != nil {
		return err
	}

	if catalogueFile != "" {
		data, err := os.ReadFile(catalogueFile)
		if err != nil {
			return fmt.Errorf("reading catalogue file: %w", err)
		}
		in.InlineCatalogue = string(data)
	}

	d, err := setup(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer d.close()

	if path, _ := cmd.Flags().GetString("submissions-file"); path != "" {
		if d.config.Recommendation == nil {
			d.config.Recommendation = &RecommendationConfig{}
		}
		d.config.Recommendation.SubmissionsFile = path
	}

	set, err := d.pipeline.RunRecommendation(cmd.Context(), in)
	if err != nil {
		return failed(d.logger, "recommending programmes", err)
	}

	sink, closeSink, err := openSink(d.config)
	if err != nil {
		return err
	}
	defer closeSink()

	if sink != nil {
		submission := advisor.NewSubmission(in, set, contract.Contact{Email: contactEmail}, method)
		if err := sink.Submit(cmd.Context(), submission); err != nil {
			d.logger.Warn("submission was not recorded", zap.Error(err))
		} else {
			d.logger.Info("submission recorded", zap.String("submission_id", submission.ID))
		}
	}

	return printJSON(cmd.OutOrStdout(), set)
}

func recommendationInput(profileFile string, rawFields []string, interactive bool) (advisor.RecommendationInput, contract.InputMethod, error) {
	if profileFile != "" {
		profile, err := readProfile(profileFile)
		if err != nil {
			return advisor.RecommendationInput{}, "", err
		}
		return advisor.RecommendationInput{Profile: &profile}, contract.InputDocument, nil
	}

	fields, err := parseFields(rawFields)
	if err != nil {
		return advisor.RecommendationInput{}, "", err
	}

	if interactive {
		if err := askFields(fields); err != nil {
			return advisor.RecommendationInput{}, "", err
		}
	}

	if len(fields) == 0 {
		return advisor.RecommendationInput{}, "", errors.New("a profile is required: use --profile-file, --field or --interactive")
	}

	return advisor.RecommendationInput{Fields: fields}, contract.InputForm, nil
}

// readProfile accepts both a bare profile and the {"profile": ...} object printed by extract.
func readProfile(path string) (contract.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return contract.Profile{}, fmt.Errorf("reading profile: %w", err)
	}

	var wrapped struct {
		Profile *contract.Profile `json:"profile"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return contract.Profile{}, fmt.Errorf("decoding profile: %w", err)
	}
	if wrapped.Profile != nil {
		return *wrapped.Profile, nil
	}

	var profile contract.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return contract.Profile{}, fmt.Errorf("decoding profile: %w", err)
	}
	return profile, nil
}

func parseFields(raw []string) (map[string]any, error) {
	fields := make(map[string]any, len(raw))
	for _, item := range raw {
		key, value, ok := strings.Cut(item, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q, expected key=value", item)
		}
		fields[key] = strings.TrimSpace(value)
	}
	return fields, nil
}

// askFields prompts for every form question not already answered by flags.
func askFields(fields map[string]any) error {
	for _, q := range formQuestions {
		if _, ok := fields[q.key]; ok {
			continue
		}

		required := q.required
		prompt := promptui.Prompt{
			Label: q.label,
			Validate: func(input string) error {
				if required && strings.TrimSpace(input) == "" {
					return errors.New("this field is required")
				}
				return nil
			},
		}

		value, err := prompt.Run()
		if err != nil {
			return fmt.Errorf("reading %s: %w", q.key, err)
		}
		if value = strings.TrimSpace(value); value != "" {
			fields[q.key] = value
		}
	}

	return askSeniority(fields)
}

func askSeniority(fields map[string]any) error {
	if _, ok := fields["seniority"]; ok {
		return nil
	}

	items := make([]string, 0, len(contract.Seniorities)+1)
	for _, s := range contract.Seniorities {
		items = append(items, string(s))
	}
	items = append(items, PromptSkip)

	selectPrompt := promptui.Select{
		Label: "Seniority",
		Items: items,
	}

	_, selected, err := selectPrompt.Run()
	if err != nil {
		return fmt.Errorf("reading seniority: %w", err)
	}
	if selected != PromptSkip {
		fields["seniority"] = selected
	}
	return nil
}

// openSink opens the configured submissions file. It returns a nil sink when none is configured.
func openSink(cfg *Config) (*advisor.JSONLinesSink, func(), error) {
	noop := func() {}
	if cfg == nil || cfg.Recommendation == nil || cfg.Recommendation.SubmissionsFile == "" {
		return nil, noop, nil
	}

	f, err := os.OpenFile(cfg.Recommendation.SubmissionsFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, noop, fmt.Errorf("opening submissions file: %w", err)
	}

	return advisor.NewJSONLinesSink(f), func() { _ = f.Close() }, nil
}
