/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: report_writer.go
Description: Utility for writing scan reports to the reports directory.
Handles timestamped, session-specific file naming. Ensures directories exist
and writes JSON files for easy downstream analysis.
*/

package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kleascm/akaylee-archrec/pkg/interfaces"
)

// WriteScanReport writes a scan report to the reports directory, named by
// timestamp and session ID, and returns the file path.
func WriteScanReport(outputDir string, report *interfaces.ScanReport) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	// Filename: 2024-06-11_01-30-00_3f2a9c1d.json
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	session := report.SessionID
	if len(session) > 8 {
		session = session[:8]
	}
	filename := fmt.Sprintf("%s_%s.json", timestamp, session)
	filePath := filepath.Join(outputDir, filename)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return filePath, nil
}
