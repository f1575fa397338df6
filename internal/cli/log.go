package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mithrel/serialbus/internal/config"
	"github.com/mithrel/serialbus/internal/db"
)

func newLogCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log [topic]",
		Short: "Query the recorded frame log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := openRecorder(cmd)
			if err != nil {
				return err
			}
			defer rec.Close()

			topic := ""
			if len(args) == 1 {
				topic = args[0]
			}
			recs, err := rec.List(cmd.Context(), topic, limit)
			if err != nil {
				return err
			}
			for _, r := range recs {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %-16s %s\n",
					r.At.Local().Format("2006-01-02 15:04:05"), r.Frame.Topic, renderFrame(r.Frame))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records to print")

	cmd.AddCommand(&cobra.Command{
		Use:   "topics",
		Short: "List recorded topics with frame counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := openRecorder(cmd)
			if err != nil {
				return err
			}
			defer rec.Close()

			tcs, err := rec.Topics(cmd.Context())
			if err != nil {
				return err
			}
			for _, tc := range tcs {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-16s %6d frames  last %s\n",
					tc.Topic, tc.Frames, tc.Last.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	})
	return cmd
}

func openRecorder(cmd *cobra.Command) (*db.Recorder, error) {
	cfg := getConfig(cmd)
	return db.Open(cmd.Context(), config.RecordDBPath(cfg))
}
