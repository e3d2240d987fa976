// Package types общие помощники команд клиента.
package types

import (
	"encoding/json"
	"fmt"
	"os"

	"devicesync/internal/app/client"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type contextKey string

// ClientAppKey ключ приложения в контексте команды
const ClientAppKey contextKey = "client_app"

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow)
	titleColor   = color.New(color.FgCyan, color.Bold)
)

// App достает приложение, созданное корневой командой
func App(cmd *cobra.Command) (*client.App, error) {
	app, ok := cmd.Context().Value(ClientAppKey).(*client.App)
	if !ok || app == nil {
		return nil, fmt.Errorf("приложение не инициализировано")
	}
	return app, nil
}

func Title(format string, args ...any) {
	titleColor.Printf(format+"\n", args...)
}

func Success(format string, args ...any) {
	successColor.Printf("✓ "+format+"\n", args...)
}

func Warn(format string, args ...any) {
	warnColor.Printf("⚠ "+format+"\n", args...)
}

// PrintJSON выводит значение с отступами
func PrintJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ReadPassword читает пароль без эха
func ReadPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("ошибка чтения пароля: %w", err)
	}
	return string(password), nil
}

// ReadPayload разбирает JSON из аргумента; "-" читает stdin
func ReadPayload(arg string) (json.RawMessage, error) {
	var data []byte
	if arg == "-" {
		var v any
		if err := json.NewDecoder(os.Stdin).Decode(&v); err != nil {
			return nil, fmt.Errorf("некорректный JSON: %w", err)
		}
		return json.Marshal(v)
	}
	data = []byte(arg)
	if !json.Valid(data) {
		return nil, fmt.Errorf("некорректный JSON: %s", arg)
	}
	return json.RawMessage(data), nil
}
