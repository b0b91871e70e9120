// cmd/kiosk/cmd/run.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Запустить движок синхронизации киоска",
	Long: `Запускает киоск в рабочем режиме: монитор сети опрашивает сервер,
движок синхронизации периодически доставляет накопленные записи.

Процесс работает до получения SIGINT/SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Запуск киоска. Для остановки нажмите Ctrl+C.")

		defer app.Shutdown()
		return app.Run()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
