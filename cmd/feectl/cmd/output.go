package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"solana-fee-lab/internal/domain"
	"solana-fee-lab/internal/feestats"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgHiGreen)
	yellow = color.New(color.FgHiYellow)
	red    = color.New(color.FgRed)
	cyan   = color.New(color.FgCyan)
)

// setupColor disables color unless out is a terminal.
func setupColor(out io.Writer) {
	if noColor {
		color.NoColor = true
		return
	}
	f, ok := out.(*os.File)
	color.NoColor = !ok || !isTerminal(f)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newProgress returns a progress bar on stderr, or nil when stderr is not a terminal.
func newProgress(total int, description string) *progressbar.ProgressBar {
	if !isTerminal(os.Stderr) {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printOutcome writes a human readable simulation outcome.
func printOutcome(w io.Writer, out domain.SimulationOutcome) {
	if out.Succeeded {
		green.Fprintf(w, "Simulation succeeded")
	} else {
		red.Fprintf(w, "Simulation failed")
	}
	if out.Path != "" {
		fmt.Fprintf(w, " (%s probe)", out.Path)
	}
	fmt.Fprintln(w)

	if out.UnitsConsumed != nil {
		fmt.Fprintf(w, "  Units consumed: %d\n", *out.UnitsConsumed)
	}
	fee := out.BaseFee
	if out.ComputedFee != nil {
		fee = *out.ComputedFee
	}
	fmt.Fprintf(w, "  Fee:            %s\n", feestats.FormatSOL(fee))
	if out.FailureKind != "" {
		red.Fprintf(w, "  %s: %s\n", out.FailureKind, out.FailureReason)
	}
	for _, warn := range out.Warnings {
		yellow.Fprintf(w, "  ! %s\n", warn)
	}
	if verbose {
		for _, line := range out.DiagnosticLines {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

func printWarnings(w io.Writer, warnings []string) {
	for _, warn := range warnings {
		yellow.Fprintf(w, "! %s\n", warn)
	}
}
