package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"revbridge.dev/revbridge/internal/bridge"
	"revbridge.dev/revbridge/internal/cli/common"
	"revbridge.dev/revbridge/internal/rpc"
	"revbridge.dev/revbridge/internal/runtime"
)

func newRPCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rpc",
		Short: "Talk to the review backend",
	}
	cmd.AddCommand(newRPCPingCmd(), newRPCCallCmd())
	return cmd
}

func newRPCPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Start the backend and check that it answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return common.Run(cmd, func(ctx *runtime.Context) error {
				started := time.Now()
				if err := ctx.StartBridge(cmd.Context()); err != nil {
					return err
				}
				ready := time.Since(started).Round(time.Millisecond)

				result, err := ctx.Bridge.Call(cmd.Context(), bridge.PingMethod, nil)
				if err != nil {
					return err
				}
				ctx.Splog.Info(ctx.Splog.Styles().Success(fmt.Sprintf("Backend ready (pid %d) in %s.", ctx.Bridge.PID(), ready)))
				ctx.Splog.Debug("ping: %s", result)
				return nil
			})
		},
	}
}

func newRPCCallCmd() *cobra.Command {
	var (
		params  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "call <method>",
		Short: "Start the backend, call one method and print its result",
		Long: `Start the backend, call one JSON-RPC method and print the result as JSON.

Example:
  revbridge rpc call get_records --params '{"project_path": "."}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p any
			if params != "" {
				if !json.Valid([]byte(params)) {
					return fmt.Errorf("--params is not valid JSON")
				}
				p = json.RawMessage(params)
			}
			return common.Run(cmd, func(ctx *runtime.Context) error {
				if err := ctx.StartBridge(cmd.Context()); err != nil {
					return err
				}
				var opts []rpc.CallOption
				if timeout > 0 {
					opts = append(opts, rpc.WithTimeout(timeout))
				}
				result, err := ctx.Bridge.Call(cmd.Context(), args[0], p, opts...)
				if err != nil {
					return err
				}
				var pretty bytes.Buffer
				if err := json.Indent(&pretty, result, "", "  "); err != nil {
					pretty.Reset()
					pretty.Write(result)
				}
				ctx.Splog.Page(pretty.String() + "\n")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&params, "params", "", "JSON params for the call")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Call timeout (default "+rpc.DefaultCallTimeout.String()+")")
	return cmd
}
