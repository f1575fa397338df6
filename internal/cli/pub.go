package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mithrel/serialbus/pkg/api"
)

func newPubCmd() *cobra.Command {
	var formats []string
	var rowArgs []string

	cmd := &cobra.Command{
		Use:   "pub <topic> [text...]",
		Short: "Publish one frame to a topic",
		Long: `Publish one frame to a topic.

With no --row flags the remaining arguments are joined and sent as a text
payload. Numeric frames give one --row per data row (comma-separated
elements) and a matching --format per row:

  serialbus pub bar --format u16 --row 1,65535,32768
  serialbus pub pair --format u8 --row 1,2,3 --format s16 --row -1,0,1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := args[0]

			rows, fs, err := parsePayload(args[1:], rowArgs, formats)
			if err != nil {
				return err
			}

			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			msg, err := app.Bus.Publish(topic, rows, fs...)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "published %d bytes to %q\n", len(msg), topic)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&formats, "format", nil, "row format: none|string|u8|s8|u16|s16|u32|s32 (one per --row)")
	cmd.Flags().StringArrayVar(&rowArgs, "row", nil, "comma-separated numeric row; repeatable")
	return cmd
}

// parsePayload turns CLI arguments into typed rows. Text and numeric
// payloads are mutually exclusive.
func parsePayload(textArgs, rowArgs, formatArgs []string) ([]api.Row, []api.Format, error) {
	if len(rowArgs) == 0 {
		if len(formatArgs) > 1 || (len(formatArgs) == 1 && !mustText(formatArgs[0])) {
			return nil, nil, fmt.Errorf("numeric formats need --row data")
		}
		return []api.Row{api.TextRow(strings.Join(textArgs, " "))}, []api.Format{api.String}, nil
	}
	if len(textArgs) > 0 {
		return nil, nil, fmt.Errorf("cannot mix positional text with --row")
	}
	if len(formatArgs) != len(rowArgs) {
		return nil, nil, fmt.Errorf("%d --format flags for %d --row flags", len(formatArgs), len(rowArgs))
	}

	rows := make([]api.Row, 0, len(rowArgs))
	fs := make([]api.Format, 0, len(rowArgs))
	for i, raw := range rowArgs {
		f, err := api.ParseFormat(formatArgs[i])
		if err != nil {
			return nil, nil, err
		}
		fs = append(fs, f)

		var vals []int64
		for _, part := range strings.Split(raw, ",") {
			v, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			vals = append(vals, v)
		}
		rows = append(rows, api.IntRow(vals...))
	}
	return rows, fs, nil
}

func mustText(name string) bool {
	f, err := api.ParseFormat(name)
	return err == nil && f.Text()
}
