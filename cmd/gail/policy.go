package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"gail/internal/certificate"
	"gail/internal/config"
	"gail/internal/db"

	"github.com/spf13/cobra"
)

var policyPrincipal string

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage the policies certificates are issued from",
}

var policyAdd struct {
	insured    string
	address    string
	carrier    string
	naic       string
	number     string
	coverage   string
	limits     map[string]int64
	effective  string
	expiration string
}

var policyAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or update a policy",
	Example: `  gail policy add --principal acme --insured "Acme Roofing LLC" --carrier "Hartford" \
    --number GL-123 --coverage gl --limit each_occurrence=1000000 --limit general_aggregate=2000000 \
    --effective 2026-01-01 --expiration 2027-01-01`,
	RunE: func(cmd *cobra.Command, args []string) error {
		coverage, err := certificate.ParseCoverage(policyAdd.coverage)
		if err != nil {
			return err
		}
		eff, err := certificate.ParseDate(policyAdd.effective)
		if err != nil {
			return fmt.Errorf("effective date: %w", err)
		}
		exp, err := certificate.ParseDate(policyAdd.expiration)
		if err != nil {
			return fmt.Errorf("expiration date: %w", err)
		}

		store, closeDB, err := openCertificates()
		if err != nil {
			return err
		}
		defer closeDB()

		id, err := store.AddPolicy(cmd.Context(), certificate.Policy{
			PrincipalID:    policyPrincipal,
			InsuredName:    policyAdd.insured,
			InsuredAddress: policyAdd.address,
			Carrier:        policyAdd.carrier,
			NAIC:           policyAdd.naic,
			PolicyNumber:   policyAdd.number,
			Coverage:       coverage,
			Limits:         policyAdd.limits,
			EffectiveDate:  eff,
			ExpirationDate: exp,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "policy %s saved (id %d)\n", policyAdd.number, id)
		return nil
	},
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List policies on file",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeDB, err := openCertificates()
		if err != nil {
			return err
		}
		defer closeDB()

		policies, err := store.Policies(cmd.Context(), policyPrincipal)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "COVERAGE\tCARRIER\tNUMBER\tEFFECTIVE\tEXPIRATION\tLIMITS")
		for _, p := range policies {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				p.Coverage,
				p.Carrier,
				p.PolicyNumber,
				p.EffectiveDate.Format(certificate.DateLayout),
				p.ExpirationDate.Format(certificate.DateLayout),
				formatLimits(p.Limits),
			)
		}
		return tw.Flush()
	},
}

func init() {
	policyCmd.PersistentFlags().StringVarP(&policyPrincipal, "principal", "p", "local", "principal the policies belong to")

	f := policyAddCmd.Flags()
	f.StringVar(&policyAdd.insured, "insured", "", "named insured")
	f.StringVar(&policyAdd.address, "address", "", "insured's mailing address")
	f.StringVar(&policyAdd.carrier, "carrier", "", "insurance carrier")
	f.StringVar(&policyAdd.naic, "naic", "", "carrier NAIC number")
	f.StringVar(&policyAdd.number, "number", "", "policy number")
	f.StringVar(&policyAdd.coverage, "coverage", "", "coverage: gl, auto, umbrella, wc or professional")
	f.StringToInt64Var(&policyAdd.limits, "limit", nil, "limit in dollars as name=amount, repeatable")
	f.StringVar(&policyAdd.effective, "effective", "", "effective date (YYYY-MM-DD)")
	f.StringVar(&policyAdd.expiration, "expiration", "", "expiration date (YYYY-MM-DD)")
	for _, name := range []string{"insured", "carrier", "number", "coverage", "effective", "expiration"} {
		policyAddCmd.MarkFlagRequired(name)
	}

	policyCmd.AddCommand(policyAddCmd)
	policyCmd.AddCommand(policyListCmd)
}

func openCertificates() (*certificate.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("migrating database: %w", err)
	}
	return certificate.NewStore(database), func() { database.Close() }, nil
}

func formatLimits(limits map[string]int64) string {
	keys := make([]string, 0, len(limits))
	for k := range limits {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+certificate.Dollars(limits[k]))
	}
	return strings.Join(parts, " ")
}
