package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vulnwatch/api/internal/infra/postgres"
	"github.com/vulnwatch/api/pkg/domain/license"
	"github.com/vulnwatch/api/pkg/domain/policy"
	"github.com/vulnwatch/api/pkg/domain/shared"
)

var (
	flagSeedOrg  string
	flagSeedName string
)

func init() {
	seedPolicyCmd.Flags().StringVar(&flagSeedOrg, "organization", "", "Organization to seed the policy for (required)")
	seedPolicyCmd.Flags().StringVar(&flagSeedName, "name", "baseline", "Policy name")
	seedPolicyCmd.MarkFlagRequired("organization")
}

var seedPolicyCmd = &cobra.Command{
	Use:   "seed-policy",
	Short: "Create a baseline default license policy for an organization",
	Long: `seed-policy creates a default license policy with a conservative
baseline rule set: forbidden and restricted licenses are blocked,
reciprocal licenses and unknown licenses raise a warning, and
everything else is allowed.

The command is a no-op if the organization already has a default
policy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		repo := postgres.NewPolicyRepository(db)

		existing, err := repo.GetDefaultForOrganization(ctx, flagSeedOrg)
		if err != nil && !shared.IsNotFound(err) {
			return fmt.Errorf("check existing default policy: %w", err)
		}
		if existing != nil {
			fmt.Printf("Organization %q already has default policy %q (%s), nothing to do\n",
				flagSeedOrg, existing.Name, existing.ID)
			return nil
		}

		p, err := policy.NewPolicy(flagSeedName, flagSeedOrg, true)
		if err != nil {
			return err
		}
		if err := repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create policy: %w", err)
		}

		rules, err := baselineRules(p.ID)
		if err != nil {
			return err
		}
		for _, rule := range rules {
			if err := repo.CreateRule(ctx, rule); err != nil {
				return fmt.Errorf("create rule (%s/%s): %w", rule.Kind, rule.Action, err)
			}
			if flagVerbose {
				fmt.Printf("  rule: priority=%d kind=%s action=%s\n", rule.Priority, rule.Kind, rule.Action)
			}
		}

		fmt.Printf("Created default policy %q for %q with %d rules (%s)\n",
			p.Name, p.Organization, len(rules), p.ID)
		return nil
	},
}

func baselineRules(policyID shared.ID) ([]*policy.Rule, error) {
	specs := []struct {
		priority       int
		classification license.Classification
		action         policy.Action
	}{
		{10, license.ClassificationForbidden, policy.ActionBlock},
		{20, license.ClassificationRestricted, policy.ActionBlock},
		{30, license.ClassificationReciprocal, policy.ActionWarn},
		{40, license.ClassificationNotice, policy.ActionAllow},
		{50, license.ClassificationPermissive, policy.ActionAllow},
		{60, license.ClassificationUnencumbered, policy.ActionAllow},
	}

	rules := make([]*policy.Rule, 0, len(specs)+1)
	for _, s := range specs {
		rule, err := policy.NewClassificationRule(policyID, s.priority, s.classification, s.action)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	unknown, err := policy.NewUnknownLicenseRule(policyID, 100, policy.ActionWarn)
	if err != nil {
		return nil, err
	}
	return append(rules, unknown), nil
}
