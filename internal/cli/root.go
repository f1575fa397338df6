package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mithrel/serialbus/internal/config"
	"github.com/mithrel/serialbus/internal/wire"
)

type ctxKey string

const cfgKey ctxKey = "cfg"

// Execute builds the root command and runs it.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd constructs the Cobra root command. Config is resolved for
// every invocation; the link and bus are wired lazily by the commands that
// actually need them, so "config generate" never opens a serial device.
func NewRootCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:           "serialbus",
		Short:         "Topic pub/sub over point-to-point links",
		SilenceUsage:  true, // don't show usage on runtime errors
		SilenceErrors: true, // let main print errors once
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			if cfgPath != "" {
				v.SetConfigFile(cfgPath)
			}
			if err := config.Load(cmd.Context(), v); err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), cfgKey, v))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (yaml|toml)")
	cmd.PersistentFlags().String("link", "", "override link.mode (memory|stream|quic|quic-listen)")
	cmd.PersistentFlags().String("device", "", "override link.device")
	cmd.PersistentFlags().String("addr", "", "override link.addr")

	cmd.AddCommand(newPubCmd())
	cmd.AddCommand(newListenCmd())
	cmd.AddCommand(newLogCmd())
	cmd.AddCommand(newBridgeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newCompletionCmd())

	cmd.Run = func(cmd *cobra.Command, args []string) { _ = cmd.Help() }

	return cmd
}

// getConfig returns the resolved Viper instance, with link flag overrides
// applied.
func getConfig(cmd *cobra.Command) *viper.Viper {
	v, ok := cmd.Context().Value(cfgKey).(*viper.Viper)
	if !ok {
		fmt.Fprintln(os.Stderr, "internal error: config not initialized")
		os.Exit(1)
	}
	pf := cmd.Root().PersistentFlags()
	if s, _ := pf.GetString("link"); s != "" {
		v.Set("link.mode", s)
	}
	if s, _ := pf.GetString("device"); s != "" {
		v.Set("link.device", s)
	}
	if s, _ := pf.GetString("addr"); s != "" {
		v.Set("link.addr", s)
	}
	return v
}

// buildApp wires the full app (link, bus, recorder) for commands that move
// frames.
func buildApp(cmd *cobra.Command) (*wire.App, error) {
	return wire.BuildApp(cmd.Context(), getConfig(cmd))
}
