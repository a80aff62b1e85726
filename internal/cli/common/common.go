// Package common provides shared helper functions for CLI commands.
package common

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"revbridge.dev/revbridge/internal/config"
	"revbridge.dev/revbridge/internal/output"
	"revbridge.dev/revbridge/internal/runtime"
)

func flagString(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}

// LoadConfig loads configuration from the file named by --config, if any.
func LoadConfig(cmd *cobra.Command) (config.Config, error) {
	return config.Load(flagString(cmd, "config"))
}

// NewContext loads configuration according to the global flags and builds
// the runtime context. The caller must Close both the context and its Splog.
func NewContext(cmd *cobra.Command) (*runtime.Context, error) {
	cfg, err := LoadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logFile := flagString(cmd, "log-file")
	if logFile == "" {
		logFile = cfg.Log.File
	}
	if logFile == "" {
		logFile = output.LogFilePath()
	}
	splog, err := output.NewSplogWithConfig(output.SplogOptions{
		Writer:  cmd.OutOrStdout(),
		LogFile: logFile,
		Debug:   flagString(cmd, "debug") == "true",
	})
	if err != nil {
		return nil, err
	}
	splog.Debug("Running %s", cmd.CommandPath())
	return runtime.NewContext(cfg, splog), nil
}

// Run is a helper that provides a runtime context to a command's execution function
func Run(cmd *cobra.Command, fn func(ctx *runtime.Context) error) error {
	ctx, err := NewContext(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = ctx.Close()
		_ = ctx.Splog.Close()
	}()
	return fn(ctx)
}

// PrintJSON writes v as indented JSON to the command's output.
func PrintJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
