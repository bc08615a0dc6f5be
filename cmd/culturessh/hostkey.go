package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"

	"pkt.systems/culturessh/internal/appconfig"
	"pkt.systems/culturessh/sshserver"
	"pkt.systems/pslog"
)

func newHostKeyCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "hostkey",
		Short: "Ensure the ssh host key exists and print its fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			signer, err := sshserver.EnsureHostKey(cfg.SSH.KeyDir, pslog.Ctx(cmd.Context()))
			if err != nil {
				return err
			}
			pub := signer.PublicKey()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s", ssh.FingerprintSHA256(pub), ssh.MarshalAuthorizedKey(pub))
			return err
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}
