package output

import (
	"os"
	"path/filepath"
)

// LogFilePath returns the log file location: REVBRIDGE_LOG_FILE if set,
// otherwise ~/.revbridge/logs/revbridge.log.
func LogFilePath() string {
	if customPath := os.Getenv("REVBRIDGE_LOG_FILE"); customPath != "" {
		return customPath
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "revbridge.log"
	}
	return filepath.Join(homeDir, ".revbridge", "logs", "revbridge.log")
}
