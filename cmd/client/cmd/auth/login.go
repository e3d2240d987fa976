package auth

import (
	"fmt"

	"devicesync/cmd/client/cmd/types"
	"devicesync/internal/domain/user"

	"github.com/spf13/cobra"
)

var loginName string

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Войти в систему",
	Long: `Аутентификация на сервере. Пользовательский токен сохраняется
локально и нужен для регистрации устройств и разрешения конфликтов.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		if loginName == "" {
			fmt.Print("Логин: ")
			_, _ = fmt.Scanln(&loginName)
		}
		password, err := types.ReadPassword("Пароль: ")
		if err != nil {
			return err
		}

		s, err := app.Login(cmd.Context(), user.Credentials{Login: loginName, Password: password})
		if err != nil {
			return fmt.Errorf("ошибка аутентификации: %w", err)
		}

		types.Success("вход выполнен, токен действует до %s", s.Token.ExpiresAt.Local().Format("2006-01-02 15:04"))
		if _, err := app.DeviceID(cmd.Context()); err != nil {
			fmt.Println("Зарегистрируйте устройство: devicesync device register")
		}
		return nil
	},
}

var LogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Выйти и забыть токены",
	Long:  `Удаляет сохраненные токены пользователя и устройства. Локальная очередь изменений сохраняется.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		if err := app.Logout(cmd.Context()); err != nil {
			return err
		}
		types.Success("токены удалены")
		return nil
	},
}

func init() {
	LoginCmd.Flags().StringVarP(&loginName, "login", "l", "", "логин пользователя")
}
