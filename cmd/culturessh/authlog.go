package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/culturessh/internal/appconfig"
	"pkt.systems/culturessh/internal/authlog"
)

func newAuthLogCmd() *cobra.Command {
	var cfgPath string
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "auth-log",
		Short: "Print recorded authentication attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if cfg.AuthLog.SQLitePath == "" {
				return errors.New("auth_log.sqlite_path is not configured")
			}
			store, err := authlog.OpenSQLite(cmd.Context(), cfg.AuthLog.SQLitePath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			attempts, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(attempts) > limit {
				attempts = attempts[len(attempts)-limit:]
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(attempts)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "TIME\tUSER\tKEY\tFINGERPRINT\tREMOTE")
			for _, a := range attempts {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.Time.Local().Format(time.DateTime), a.Username, a.KeyType, a.Fingerprint, a.Remote)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show only the most recent attempts")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print attempts as json")
	return cmd
}
