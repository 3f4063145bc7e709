package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-as4-gateway/pkg/pmode"
)

func NewCmdValidate(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-pmode FILE",
		Short: "Validate a PMode configuration document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doValidate(out, args[0])
		},
	}
}

func doValidate(out io.Writer, file string) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("cannot read file: %w", err)
	}

	cfg, err := pmode.XMLParser{}.Parse(raw)
	if err != nil {
		var verr *pmode.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintln(out, "The document is invalid!")
			for _, issue := range verr.Issues {
				fmt.Fprintln(out, " -", issue)
			}
		}
		return err
	}

	fmt.Fprintf(out, "parties: %d, processes: %d, legs: %d, mpcs: %d\n",
		len(cfg.Parties), len(cfg.Processes), len(cfg.Legs), len(cfg.Mpcs))
	resolver := pmode.NewResolver(cfg, slog.New(slog.DiscardHandler))
	for _, target := range resolver.PullTargets() {
		fmt.Fprintf(out, "pull %s from %s (%s)\n", target.Mpc, target.Endpoint, target.Key)
	}
	return nil
}
