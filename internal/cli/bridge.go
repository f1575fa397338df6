package cli

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mithrel/serialbus/internal/link"
	"github.com/mithrel/serialbus/internal/wire"
)

func newBridgeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Relay frames between QUIC peers",
		Long: `Run a frame bridge: every connected peer's frames are forwarded to all
other peers. TLS comes from tls.cert_file/key_file, tls.domain (ACME), or
an ephemeral self-signed certificate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig(cmd)
			if addr == "" {
				addr = cfg.GetString("link.addr")
			}
			if addr == "" {
				addr = ":7960"
			}

			tlsConf, err := wire.ServerTLS(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := log.New(cmd.ErrOrStderr(), "serialbus ", log.LstdFlags)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "bridge listening on %s\n", addr)
			return link.NewBridge(logger).Serve(ctx, addr, tlsConf)
		},
	}
	cmd.Flags().StringVar(&addr, "listen", "", "listen address (host:port), defaults to link.addr or :7960")
	return cmd
}
