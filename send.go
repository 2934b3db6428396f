package main

import (
	"context"
	"drivechat/app/service/actuation"
	"drivechat/app/service/command"
	"drivechat/app/service/journal"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/samber/do"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

var sendArgs command.Args

// sendCmd publishes one motor command without the model, for bench tests of the car link
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Publish one motor command to the car",
	Long: `Publish a single get_direction command through the actuation gateway.

Example:
  drivechat send --right 1 --left 1 --speed 7`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendArgs.Right, "right", "0", "right motors: 1, 0 or -1")
	sendCmd.Flags().StringVar(&sendArgs.Left, "left", "0", "left motors: 1, 0 or -1")
	sendCmd.Flags().StringVar(&sendArgs.Speed, "speed", command.DefaultSpeed, "speed percentage")
}

func runSend(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	di, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer di.Shutdown()

	if err = sendArgs.Validate(); err != nil {
		return err
	}

	queue := do.MustInvoke[*journal.Queue](di)
	gateway := do.MustInvoke[*actuation.Service](di)

	queueCtx, stopQueue := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		queue.Run(queueCtx)
	}()

	result := gateway.Dispatch(ctx, "cli", sendArgs)

	stopQueue()
	<-done

	data, err := json.Marshal(result)
	if err != nil {
		return oops.In("cli").Wrapf(err, "failed to encode result")
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	if !result.OK() {
		slog.Error("Command was not delivered", slog.String("detail", result.Detail))
		return oops.In("cli").With("message", sendArgs.Format()).Errorf("command was not delivered: %s", result.Detail)
	}

	return nil
}
