package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mithrel/serialbus/internal/ui"
	"github.com/mithrel/serialbus/pkg/api"
)

func newListenCmd() *cobra.Command {
	var useTUI bool
	var record bool

	cmd := &cobra.Command{
		Use:   "listen [topics...]",
		Short: "Run the ingest loop and print frames as they arrive",
		Long: `Run the ingest loop. Named topics get a subscriber that prints each
delivery; without topics every ingested frame is printed from the monitor
hook. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig(cmd)
			if record {
				cfg.Set("record.enabled", true)
			}

			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			for _, topic := range args {
				topic := topic
				app.Bus.Subscribe(topic, func() {
					f, err := app.Bus.Current(topic)
					if err != nil {
						return
					}
					_, _ = fmt.Fprintf(out, "%s: %s\n", topic, renderFrame(f))
				})
			}
			if len(args) == 0 && !useTUI {
				app.Bus.AddObserver(func(f api.Frame) {
					_, _ = fmt.Fprintf(out, "%s: %s\n", f.Topic, renderFrame(f))
				})
			}

			if useTUI {
				if !term.IsTerminal(int(os.Stdout.Fd())) {
					return fmt.Errorf("--tui needs a terminal")
				}
				app.Bus.Start()
				defer app.Bus.Stop()
				return ui.Watch(cmd.Context(), app.Bus)
			}

			app.Bus.Start()
			defer app.Bus.Stop()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&useTUI, "tui", false, "live table of last-seen topic values")
	cmd.Flags().BoolVar(&record, "record", false, "persist ingested frames to the frame log")
	return cmd
}

// renderFrame formats a decoded frame for line output.
func renderFrame(f api.Frame) string {
	if f.Dim() > 0 && f.Formats[0].Text() {
		return fmt.Sprintf("%q", f.Text())
	}
	parts := make([]string, 0, f.Dim())
	for i, row := range f.Rows {
		if f.Formats[i].Text() {
			parts = append(parts, fmt.Sprintf("%q", row.Text))
			continue
		}
		elems := make([]string, len(row.Ints))
		for j, v := range row.Ints {
			elems[j] = fmt.Sprintf("%d", v)
		}
		parts = append(parts, f.Formats[i].String()+"["+strings.Join(elems, " ")+"]")
	}
	return strings.Join(parts, " ")
}
