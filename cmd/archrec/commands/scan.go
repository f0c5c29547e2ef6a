/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: scan.go
Description: Scan and which commands for the Akaylee ArchRec CLI. The scan
command produces the full analysis of each input file: whole-file verdict,
text-section verdict when a container is recognized, and the sliding-window
segmentation with entropy. The which command prints just the whole-file label.
*/

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kleascm/akaylee-archrec/pkg/engine"
	"github.com/kleascm/akaylee-archrec/pkg/interfaces"
	"github.com/kleascm/akaylee-archrec/pkg/utils"
)

// RunScan performs the full analysis of every input file. The command
// succeeds when every file could be opened, even when every verdict is None.
func RunScan(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return err
	}
	if err := SetupLogging(); err != nil {
		return err
	}
	defer CloseLogging()

	eng, err := NewEngine()
	if err != nil {
		return err
	}

	reportDir := viper.GetString("report_dir")
	verbose := viper.GetBool("rankings")

	failed := 0
	for _, path := range args {
		report, err := eng.Analyze(path)
		if err != nil {
			activeLogger().WithError(err).Errorf("Could not analyze %s", path)
			failed++
			continue
		}
		logReport(report)
		printReport(report, verbose)

		if reportDir != "" {
			written, err := utils.WriteScanReport(reportDir, report)
			if err != nil {
				activeLogger().WithError(err).Warn("Could not write scan report")
			} else {
				activeLogger().WithField("report", written).Debug("Scan report written")
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d input file(s) could not be analyzed", failed, len(args))
	}
	return nil
}

// logReport records one scan report through the logging system
func logReport(report *interfaces.ScanReport) {
	logger := SessionLogger()
	if logger == nil {
		return
	}
	logger.LogVerdict(report.Path, "full", report.WholeFile.String(), report.WholeFile.Confident)
	if report.TextSection != nil {
		logger.LogVerdict(report.Path, "text", report.TextSection.String(), report.TextSection.Confident)
	}
	logger.LogSegmentation(report.Path, report.Size, len(report.Segments), report.Duration)
}

// printReport renders one scan report on stdout
func printReport(report *interfaces.ScanReport, verbose bool) {
	fmt.Printf("%s\n", report.Path)
	fmt.Printf("  full(%#x): %s\n", report.Size, report.WholeFile.String())
	if report.TextSection != nil {
		fmt.Printf("  text: %s\n", report.TextSection.String())
	}
	for _, s := range report.Segments {
		fmt.Printf("  %s\n", engine.FormatSegment(s))
	}
	if verbose {
		printRankings("bigrams", report.WholeFile.Bigrams)
		printRankings("trigrams", report.WholeFile.Trigrams)
	}
}

// printRankings renders the top of one diagnostic ranking
func printRankings(name string, ranking interfaces.Ranking) {
	fmt.Printf("  %s:", name)
	for i, m := range ranking {
		if i == 4 {
			break
		}
		fmt.Printf(" %s=%.4f", m.Label, m.Divergence)
	}
	fmt.Println()
}

// RunWhich prints the whole-file architecture label for each input file.
func RunWhich(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return err
	}
	if err := SetupLogging(); err != nil {
		return err
	}
	defer CloseLogging()

	eng, err := NewEngine()
	if err != nil {
		return err
	}

	failed := 0
	for _, path := range args {
		report, err := eng.Analyze(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%-40s error: %v\n", path, err)
			failed++
			continue
		}
		if logger := SessionLogger(); logger != nil {
			logger.LogVerdict(report.Path, "full", report.WholeFile.String(), report.WholeFile.Confident)
		}
		fmt.Printf("%-40s %s\n", path, report.WholeFile.String())
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d input file(s) could not be opened", failed, len(args))
	}
	return nil
}
