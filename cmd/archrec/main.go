/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main.go
Description: Main command-line interface for the Akaylee ArchRec engine. Provides
comprehensive command-line options, configuration management, and beautiful user
interface for recognizing CPU architectures in arbitrary binary files.
*/

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kleascm/akaylee-archrec/cmd/archrec/commands"
)

var (
	// Configuration
	configFile string
	logLevel   string
	jsonLogs   bool

	// Corpus configuration
	corpusDir string
	useCache  bool

	// Engine configuration
	windowSize     int
	windowStep     int
	minWindow      int
	noiseThreshold int
	smoothing      float64

	// Output configuration
	reportDir string
	rankings  bool

	// Logging configuration
	logDir      string
	logMaxFiles int
	logMaxSize  int64
)

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:   "archrec",
		Short: "Akaylee ArchRec - Statistical CPU architecture recognition",
		Long: `Akaylee ArchRec recognizes the CPU instruction set architecture of arbitrary
binary files by statistical similarity against a trained reference corpus. It
classifies whole files, extracts and classifies container text sections, and
segments firmware images into labeled code and data regions with a sliding
window.`,
		Version: "1.0.0",
	}

	// Add persistent flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Use JSON log format")

	rootCmd.PersistentFlags().StringVar(&corpusDir, "corpus", "", "Directory containing <Label>.corpus training files")
	rootCmd.PersistentFlags().BoolVar(&useCache, "cache", true, "Use the reference index cache next to the corpus")

	// Add logging-specific flags
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Log output directory (empty: console only)")
	rootCmd.PersistentFlags().IntVar(&logMaxFiles, "log-max-files", 10, "Maximum number of log files to keep")
	rootCmd.PersistentFlags().Int64Var(&logMaxSize, "log-max-size", 100*1024*1024, "Maximum log file size in bytes")

	// Bind flags to viper
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("json_logs", rootCmd.PersistentFlags().Lookup("json-logs"))
	viper.BindPFlag("corpus_dir", rootCmd.PersistentFlags().Lookup("corpus"))
	viper.BindPFlag("use_cache", rootCmd.PersistentFlags().Lookup("cache"))
	viper.BindPFlag("log_dir", rootCmd.PersistentFlags().Lookup("log-dir"))
	viper.BindPFlag("log_max_files", rootCmd.PersistentFlags().Lookup("log-max-files"))
	viper.BindPFlag("log_max_size", rootCmd.PersistentFlags().Lookup("log-max-size"))

	// Add scan command
	scanCmd := &cobra.Command{
		Use:   "scan [files...]",
		Short: "Analyze binary files and segment them by architecture",
		Long: `Analyze each input file: classify the whole file, classify the container
text section when one is found, and run the sliding-window scan that segments
the file into labeled runs with entropy. The exit status is zero whenever all
inputs could be opened, even when every verdict is None.`,
		Args: cobra.MinimumNArgs(1),
		RunE: commands.RunScan,
	}

	// Add scan command flags
	scanCmd.Flags().IntVar(&windowSize, "window-size", 0x1000, "Window size in bytes")
	scanCmd.Flags().IntVar(&windowStep, "window-step", 0, "Window step in bytes (0 = window size)")
	scanCmd.Flags().IntVar(&minWindow, "min-window", 0x80, "Smallest block classified on its own")
	scanCmd.Flags().IntVar(&noiseThreshold, "noise-threshold", 0, "Noise run threshold in bytes (0 = window size)")
	scanCmd.Flags().Float64Var(&smoothing, "smoothing", 0.01, "Additive smoothing weight")
	scanCmd.Flags().StringVar(&reportDir, "report-dir", "", "Directory for JSON scan reports")
	scanCmd.Flags().BoolVar(&rankings, "rankings", false, "Print the top divergence rankings per file")

	viper.BindPFlag("window_size", scanCmd.Flags().Lookup("window-size"))
	viper.BindPFlag("window_step", scanCmd.Flags().Lookup("window-step"))
	viper.BindPFlag("min_window", scanCmd.Flags().Lookup("min-window"))
	viper.BindPFlag("noise_threshold", scanCmd.Flags().Lookup("noise-threshold"))
	viper.BindPFlag("smoothing", scanCmd.Flags().Lookup("smoothing"))
	viper.BindPFlag("report_dir", scanCmd.Flags().Lookup("report-dir"))
	viper.BindPFlag("rankings", scanCmd.Flags().Lookup("rankings"))

	rootCmd.AddCommand(scanCmd)

	// Add which command for whole-file classification only
	rootCmd.AddCommand(&cobra.Command{
		Use:   "which [files...]",
		Short: "Print the whole-file architecture label for each input",
		Long: `Classify each input file as a whole and print the architecture label, or
None when the bigram and trigram classifiers disagree.`,
		Args: cobra.MinimumNArgs(1),
		RunE: commands.RunWhich,
	})

	// Add dump-corpus command
	dumpCmd := &cobra.Command{
		Use:   "dump-corpus",
		Short: "Rewrite the loaded training corpus as raw .corpus files",
		Long: `Load the training corpus, decode any transport encodings, and write each
reference back out as <Label>.corpus in the output directory. Using this
command one can reconstruct an uncompressed copy of the default corpus.`,
		RunE: commands.PerformCorpusDump,
	}
	dumpCmd.Flags().String("output", "", "Directory for the dumped corpus (required)")
	viper.BindPFlag("dump_dir", dumpCmd.Flags().Lookup("output"))
	dumpCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(dumpCmd)

	// Add check command for built-in self-checks
	rootCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Perform built-in self-checks for system validation",
		Long: `Perform checks to validate corpus accessibility, reference cache freshness,
and log directory writability. Very useful for CI/CD integration.`,
		RunE: commands.PerformSelfCheck,
	})

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
