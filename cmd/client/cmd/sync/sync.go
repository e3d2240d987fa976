package sync

import (
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"devicesync/cmd/client/cmd/types"
	"devicesync/internal/domain/offline"
	syncdomain "devicesync/internal/domain/sync"
	"devicesync/internal/realtime"

	"github.com/spf13/cobra"
)

// SyncCmd родительская команда синхронизации
var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Синхронизация данных",
	Long: `Отправка изменений, локальная очередь без сети, просмотр и разрешение
конфликтов, прием событий от других устройств.`,
}

var (
	pushVersion  int
	dataType     string
	dataDevice   string
	outputJSON   bool
	mergedData   string
	recordOpKind string
)

var PushCmd = &cobra.Command{
	Use:   "push <data-type> <json|->",
	Short: "Отправить изменение на сервер",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		payload, err := types.ReadPayload(args[1])
		if err != nil {
			return err
		}

		res, err := app.Push(cmd.Context(), syncdomain.DataType(args[0]), payload, pushVersion)
		if err != nil {
			return fmt.Errorf("ошибка синхронизации: %w", err)
		}
		return printResult(res)
	},
}

var RecordCmd = &cobra.Command{
	Use:   "record <data-type> [json|-]",
	Short: "Записать изменение в локальную очередь",
	Long:  `Сохраняет изменение локально без обращения к серверу. Очередь выгружается командой flush.`,
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		var payload []byte
		if len(args) == 2 {
			if payload, err = types.ReadPayload(args[1]); err != nil {
				return err
			}
		}

		if err := app.Record(cmd.Context(), syncdomain.DataType(args[0]), offline.Kind(recordOpKind), payload); err != nil {
			return err
		}
		types.Success("изменение добавлено в очередь")
		return nil
	},
}

var FlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Выгрузить локальную очередь и проиграть ее на сервере",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		res, err := app.Flush(cmd.Context())
		if res != nil && res.Uploaded > 0 {
			fmt.Printf("Передано операций: %d\n", res.Uploaded)
		}
		if err != nil {
			return err
		}
		return printResult(res.Replay)
	},
}

var DataCmd = &cobra.Command{
	Use:   "data",
	Short: "Синхронизированные данные пользователя",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		records, err := app.Data(cmd.Context(), syncdomain.Filter{
			DataType: syncdomain.DataType(dataType),
			DeviceID: dataDevice,
		})
		if err != nil {
			return err
		}
		if outputJSON {
			return types.PrintJSON(records)
		}
		if len(records) == 0 {
			fmt.Println("Данных нет")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "ID\tУстройство\tТип\tВерсия\tИзменено\tДанные\t\n")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t\n",
				r.ID, r.DeviceID, r.DataType, r.Version,
				r.LastModified.Local().Format(time.DateTime), truncate(string(r.Payload), 40))
		}
		return w.Flush()
	},
}

var ConflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Неразрешенные конфликты",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		conflicts, err := app.Conflicts(cmd.Context())
		if err != nil {
			return err
		}
		if outputJSON {
			return types.PrintJSON(conflicts)
		}
		if len(conflicts) == 0 {
			types.Success("конфликтов нет")
			return nil
		}

		for _, c := range conflicts {
			types.Title("%s (%s, устройство %s)", c.ID, c.DataType, c.DeviceID)
			fmt.Printf("  сервер v%d: %s\n", c.ServerVersion, string(c.ServerPayload))
			fmt.Printf("  клиент v%d: %s\n", c.ClientVersion, string(c.ClientPayload))
		}
		return nil
	},
}

var ResolveCmd = &cobra.Command{
	Use:   "resolve <conflict-id> <server_wins|client_wins|merge>",
	Short: "Разрешить конфликт",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		req := syncdomain.ResolveRequest{
			ConflictID: args[0],
			Strategy:   syncdomain.Strategy(args[1]),
		}
		if mergedData != "" {
			if req.MergedPayload, err = types.ReadPayload(mergedData); err != nil {
				return err
			}
		}

		rec, err := app.Resolve(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("ошибка разрешения конфликта: %w", err)
		}
		types.Success("конфликт разрешен, версия %d", rec.Version)
		return nil
	},
}

var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Принимать события реального времени",
	Long:  `Держит соединение устройства открытым и печатает события до Ctrl+C.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		types.Title("Ожидание событий, Ctrl+C для выхода")
		return app.Watch(ctx, func(m realtime.Message) {
			if m.Type == realtime.TypePing || m.Type == realtime.TypePong {
				return
			}
			fmt.Printf("[%s] %s %s\n", m.Timestamp.Local().Format(time.TimeOnly), m.Type, string(m.Data))
		})
	},
}

func printResult(res *syncdomain.Result) error {
	if outputJSON {
		return types.PrintJSON(res)
	}
	if res == nil {
		return nil
	}

	for _, r := range res.Synced {
		types.Success("%s синхронизировано, версия %d", r.DataType, r.Version)
	}
	for _, c := range res.Conflicts {
		types.Warn("конфликт %s по %s: сервер v%d, клиент v%d", c.ID, c.DataType, c.ServerVersion, c.ClientVersion)
	}
	for _, f := range res.Failed {
		types.Warn("элемент %d (%s) не обработан: %s", f.Index, f.DataType, f.Error)
	}
	if len(res.Synced)+len(res.Conflicts)+len(res.Failed) == 0 {
		fmt.Println("Нечего синхронизировать")
	}
	return nil
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func init() {
	PushCmd.Flags().IntVar(&pushVersion, "version", 1, "версия изменения")
	RecordCmd.Flags().StringVar(&recordOpKind, "op", string(offline.KindUpdate), "вид операции: create, update, delete")
	DataCmd.Flags().StringVar(&dataType, "type", "", "фильтр по типу данных")
	DataCmd.Flags().StringVar(&dataDevice, "device", "", "фильтр по устройству")
	ResolveCmd.Flags().StringVar(&mergedData, "data", "", "итоговые данные для client_wins и merge (JSON или -)")

	for _, c := range []*cobra.Command{PushCmd, FlushCmd, DataCmd, ConflictsCmd} {
		c.Flags().BoolVar(&outputJSON, "json", false, "вывод в формате JSON")
	}
}
