package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"chatfunnel/internal/leads"
	"chatfunnel/internal/logging"
)

func newLeadsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Inspect captured leads",
	}
	cmd.AddCommand(newLeadsListCmd(opts))
	return cmd
}

func newLeadsListCmd(opts *rootOptions) *cobra.Command {
	var (
		jsonOutput    bool
		consultations bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List hospital leads, or consultation requests with --consultations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			store, err := leads.Open(cmd.Context(), leads.Options{
				Driver: cfg.Database.Driver,
				DSN:    cfg.Database.URL,
				Schema: cfg.Database.Schema,
				Logger: logging.Discard(),
			})
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if consultations {
				rows, err := store.ListConsultations(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return encodeJSON(cmd, rows)
				}
				w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
				fmt.Fprintln(w, "CREATED\tCOMPANY\tCONTACT\tPHONE\tEMAIL")
				for _, c := range rows {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.CreatedAt.Format("2006-01-02 15:04"), c.CompanyName, c.ContactName, c.Phone, c.Email)
				}
				return w.Flush()
			}

			rows, err := store.ListHospitalLeads(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return encodeJSON(cmd, rows)
			}
			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "CREATED\tHOSPITAL\tCONTACT\tPHONE\tEMAIL")
			for _, l := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.CreatedAt.Format("2006-01-02 15:04"), l.HospitalName, l.ContactName, l.Phone, l.Email)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	cmd.Flags().BoolVar(&consultations, "consultations", false, "List consultation requests instead")
	return cmd
}

func encodeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
