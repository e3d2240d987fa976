package cmd

import (
	"fmt"

	"devicesync/cmd/client/cmd/auth"
	"devicesync/cmd/client/cmd/device"
	"devicesync/cmd/client/cmd/sync"
	"devicesync/cmd/client/cmd/types"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Состояние клиента",
	Long:  `Проверяет связь с сервером и показывает зарегистрированное устройство и размер локальной очереди.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if err := app.CheckConnection(ctx); err != nil {
			types.Warn("сервер недоступен: %v", err)
		} else {
			types.Success("сервер доступен")
		}

		if id, err := app.DeviceID(ctx); err != nil {
			types.Warn("%v", err)
		} else {
			fmt.Printf("Устройство: %s\n", id)
		}

		outbox, err := app.Outbox(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Операций в очереди: %d\n", len(outbox))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	rootCmd.AddCommand(auth.AuthCmd)
	auth.AuthCmd.AddCommand(auth.RegisterCmd, auth.LoginCmd, auth.LogoutCmd)

	rootCmd.AddCommand(device.DeviceCmd)
	device.DeviceCmd.AddCommand(device.RegisterCmd, device.ListCmd, device.RefreshCmd)

	rootCmd.AddCommand(sync.SyncCmd)
	sync.SyncCmd.AddCommand(
		sync.PushCmd,
		sync.RecordCmd,
		sync.FlushCmd,
		sync.DataCmd,
		sync.ConflictsCmd,
		sync.ResolveCmd,
		sync.WatchCmd,
	)
}
