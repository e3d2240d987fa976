package device

import (
	"fmt"
	"os"
	"text/tabwriter"

	"devicesync/cmd/client/cmd/types"
	"devicesync/internal/domain/device"

	"github.com/spf13/cobra"
)

// DeviceCmd родительская команда для управления устройствами
var DeviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Управление устройствами",
}

var (
	regName       string
	regType       string
	regPlatform   string
	regModel      string
	regOSVersion  string
	regAppVersion string
	regStorageMB  int
	regCaps       []string

	listActive bool
	listJSON   bool
)

// capabilityFlags значения флага --cap
var capabilityFlags = map[string]func(*device.Capabilities){
	"camera":        func(c *device.Capabilities) { c.Camera = true },
	"ar":            func(c *device.Capabilities) { c.AR = true },
	"vr":            func(c *device.Capabilities) { c.VR = true },
	"gps":           func(c *device.Capabilities) { c.GPS = true },
	"accelerometer": func(c *device.Capabilities) { c.Accelerometer = true },
	"gyroscope":     func(c *device.Capabilities) { c.Gyroscope = true },
	"touch":         func(c *device.Capabilities) { c.Touch = true },
	"keyboard":      func(c *device.Capabilities) { c.Keyboard = true },
	"microphone":    func(c *device.Capabilities) { c.Microphone = true },
	"speakers":      func(c *device.Capabilities) { c.Speakers = true },
	"offline":       func(c *device.Capabilities) { c.OfflineSupport = true },
}

func parseCapabilities(names []string, storageMB int) (device.Capabilities, error) {
	caps := device.Capabilities{StorageCapacityMB: storageMB}
	for _, name := range names {
		set, ok := capabilityFlags[name]
		if !ok {
			return caps, fmt.Errorf("неизвестная возможность %q", name)
		}
		set(&caps)
	}
	return caps, nil
}

var RegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Зарегистрировать это устройство",
	Example: `  devicesync device register --name laptop --type web --platform web --cap keyboard --storage 500
  devicesync device register --name headset --type vr --platform android \
      --cap vr,accelerometer,gyroscope,speakers --storage 4096`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		caps, err := parseCapabilities(regCaps, regStorageMB)
		if err != nil {
			return err
		}

		reg, err := app.RegisterDevice(cmd.Context(), device.RegisterRequest{
			Name:         regName,
			Type:         device.Type(regType),
			Platform:     device.Platform(regPlatform),
			Model:        regModel,
			OSVersion:    regOSVersion,
			AppVersion:   regAppVersion,
			Capabilities: caps,
		})
		if err != nil {
			return fmt.Errorf("ошибка регистрации устройства: %w", err)
		}

		types.Success("устройство %s зарегистрировано (%s)", reg.Device.Name, reg.Device.ID)
		for _, w := range reg.Warnings {
			types.Warn("%s", w)
		}
		return nil
	},
}

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Устройства пользователя",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		devices, err := app.Devices(cmd.Context(), listActive)
		if err != nil {
			return fmt.Errorf("ошибка получения устройств: %w", err)
		}
		if listJSON {
			return types.PrintJSON(devices)
		}
		if len(devices) == 0 {
			fmt.Println("Устройства не найдены")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "ID\tИмя\tТип\tПлатформа\tАктивно\tПоследняя синхронизация\t\n")
		for _, d := range devices {
			lastSync := "-"
			if d.LastSyncAt != nil {
				lastSync = d.LastSyncAt.Local().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\t\n", d.ID, d.Name, d.Type, d.Platform, d.IsActive, lastSync)
		}
		return w.Flush()
	},
}

var RefreshCmd = &cobra.Command{
	Use:   "refresh-token",
	Short: "Обновить токен устройства",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		tok, err := app.RefreshDeviceToken(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка обновления токена: %w", err)
		}
		types.Success("токен обновлен, действует до %s", tok.ExpiresAt.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

func init() {
	RegisterCmd.Flags().StringVar(&regName, "name", "", "имя устройства")
	RegisterCmd.Flags().StringVar(&regType, "type", string(device.TypeWeb), "класс устройства: web, mobile, ar, vr")
	RegisterCmd.Flags().StringVar(&regPlatform, "platform", string(device.PlatformWeb), "платформа: ios, android, windows, macos, linux, web")
	RegisterCmd.Flags().StringVar(&regModel, "model", "", "модель")
	RegisterCmd.Flags().StringVar(&regOSVersion, "os-version", "", "версия ОС")
	RegisterCmd.Flags().StringVar(&regAppVersion, "app-version", "", "версия приложения")
	RegisterCmd.Flags().IntVar(&regStorageMB, "storage", 100, "объем хранилища, МБ")
	RegisterCmd.Flags().StringSliceVar(&regCaps, "cap", nil, "возможности устройства (camera, ar, vr, gps, accelerometer, gyroscope, touch, keyboard, microphone, speakers, offline)")
	_ = RegisterCmd.MarkFlagRequired("name")

	ListCmd.Flags().BoolVar(&listActive, "active", false, "только активные")
	ListCmd.Flags().BoolVar(&listJSON, "json", false, "вывод в формате JSON")
}
