/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utilities.go
Description: Corpus dump and self-check commands for the Akaylee ArchRec CLI.
The dump-corpus command rewrites the loaded training corpus as raw .corpus
files; the check command validates corpus accessibility, cache freshness, and
log directory health before long batch scans.
*/

package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kleascm/akaylee-archrec/pkg/cache"
	"github.com/kleascm/akaylee-archrec/pkg/corpus"
	"github.com/kleascm/akaylee-archrec/pkg/logging"
)

// PerformCorpusDump reloads the corpus with raw bytes retained and writes
// each reference back out as <Label>.corpus in the output directory.
func PerformCorpusDump(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return err
	}
	if err := SetupLogging(); err != nil {
		return err
	}
	defer CloseLogging()

	corpusDir := viper.GetString("corpus_dir")
	outputDir := viper.GetString("dump_dir")
	if corpusDir == "" || outputDir == "" {
		return fmt.Errorf("both --corpus and --output are required")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create dump directory: %w", err)
	}

	idx, err := corpus.Load(corpusDir,
		corpus.WithLogger(activeLogger()),
		corpus.WithRawData())
	if err != nil {
		return err
	}
	if err := idx.Dump(outputDir); err != nil {
		return err
	}

	activeLogger().WithFields(logrus.Fields{
		"references": idx.Len(),
		"output":     outputDir,
	}).Info("Corpus dumped")
	return nil
}

// PerformSelfCheck validates corpus accessibility, cache freshness, and log
// directory writability. Very useful for CI/CD integration.
func PerformSelfCheck(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return err
	}
	if err := SetupLogging(); err != nil {
		return err
	}
	defer CloseLogging()

	ok := true

	corpusDir := viper.GetString("corpus_dir")
	if corpusDir == "" {
		fmt.Println("corpus: NOT CONFIGURED (--corpus)")
		ok = false
	} else if idx, err := corpus.Load(corpusDir, corpus.WithLogger(activeLogger())); err != nil {
		fmt.Printf("corpus: FAIL (%v)\n", err)
		ok = false
	} else {
		fmt.Printf("corpus: OK (%d references, %d architectures)\n", idx.Len(), idx.ArchCount())

		cachePath := filepath.Join(corpusDir, "..", cache.DefaultName)
		if _, err := cache.Load(cachePath, corpusDir); err != nil {
			fmt.Printf("cache: cold (%v)\n", err)
		} else {
			fmt.Println("cache: OK")
		}
	}

	logDir := viper.GetString("log_dir")
	if logDir != "" {
		probe := filepath.Join(logDir, ".archrec-probe")
		if err := os.MkdirAll(logDir, 0755); err != nil {
			fmt.Printf("logs: FAIL (%v)\n", err)
			ok = false
		} else if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
			fmt.Printf("logs: FAIL (%v)\n", err)
			ok = false
		} else {
			os.Remove(probe)
			lm := logging.NewLogManager(logDir, viper.GetInt("log_max_files"), viper.GetInt64("log_max_size"), false)
			if stats, err := lm.GetLogStats(); err == nil {
				fmt.Printf("logs: OK (%d files, %d bytes)\n", stats.TotalFiles, stats.TotalSize)
			} else {
				fmt.Println("logs: OK")
			}
		}
	}

	if !ok {
		return fmt.Errorf("self-check failed")
	}
	return nil
}
