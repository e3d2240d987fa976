package auth

import (
	"fmt"

	"devicesync/cmd/client/cmd/types"
	"devicesync/internal/domain/user"

	"github.com/spf13/cobra"
)

var RegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Зарегистрировать нового пользователя",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		types.Title("=== Регистрация нового пользователя ===")

		fmt.Print("Логин: ")
		var login string
		_, _ = fmt.Scanln(&login)

		password, err := types.ReadPassword("Пароль: ")
		if err != nil {
			return err
		}
		confirm, err := types.ReadPassword("Повторите пароль: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return fmt.Errorf("пароли не совпадают")
		}

		if err := app.Register(cmd.Context(), user.Credentials{Login: login, Password: password}); err != nil {
			return fmt.Errorf("ошибка регистрации: %w", err)
		}

		types.Success("пользователь %s зарегистрирован", login)
		fmt.Println("Теперь войдите в систему: devicesync auth login")
		return nil
	},
}
