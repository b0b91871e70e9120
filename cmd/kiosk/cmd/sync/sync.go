// cmd/kiosk/cmd/sync/sync.go
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/app/kiosk"
)

var (
	syncStatus bool
	showStats  bool
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Управление синхронизацией",
	Long: `Принудительный запуск доставки накопленных записей и просмотр
состояния движка синхронизации.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cmd.Context().Value("app").(*kiosk.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		if syncStatus {
			return showSyncStatus(app)
		}

		if showStats {
			return showSyncStats(app)
		}

		return runSync(cmd.Context(), app)
	},
}

func runSync(ctx context.Context, app *kiosk.App) error {
	fmt.Println("=== Синхронизация отзывов ===")

	fmt.Println("Проверка соединения с сервером...")
	if err := app.CheckConnection(); err != nil {
		return fmt.Errorf("сервер недоступен: %v", err)
	}

	before := app.Status()
	fmt.Printf("Записей в очереди: %d\n", before.PendingCount)

	start := time.Now()
	if err := app.Sync(ctx); err != nil {
		return fmt.Errorf("ошибка синхронизации: %w", err)
	}
	duration := time.Since(start)

	after := app.Status()

	fmt.Println()
	color.Green("✅ Синхронизация завершена")
	fmt.Printf("Время выполнения: %v\n", duration.Round(time.Millisecond))
	fmt.Printf("Доставлено записей: %d\n", before.PendingCount-after.PendingCount)

	if after.PendingCount > 0 {
		color.Yellow("Осталось недоставленных: %d", after.PendingCount)
		fmt.Println("Записи с исчерпанной квотой попыток требуют внимания оператора")
	}

	return nil
}

func showSyncStatus(app *kiosk.App) error {
	fmt.Println("=== Состояние киоска ===")

	// Обновляем состояние сети разовой проверкой
	connErr := app.CheckConnection()
	status := app.Status()

	fmt.Printf("Сеть:            ")
	if status.IsOnline {
		color.Green("online")
	} else {
		color.Red("offline (%v)", connErr)
	}

	fmt.Printf("Синхронизация:   ")
	if status.IsSyncing {
		color.Cyan("выполняется")
	} else {
		fmt.Println("ожидание")
	}

	fmt.Printf("В очереди:       %d записей\n", status.PendingCount)

	if !status.LastSyncAt.IsZero() {
		fmt.Printf("Последний проход: %s\n", status.LastSyncAt.Local().Format(time.DateTime))
	}
	if status.SyncError != "" {
		color.Red("Последняя ошибка: %s", status.SyncError)
	}

	return nil
}

func showSyncStats(app *kiosk.App) error {
	fmt.Println("=== Статистика движка ===")

	stats := app.Stats()
	fmt.Printf("Проходов синхронизации: %d\n", stats.TotalPasses)
	fmt.Printf("Доставлено записей:     %d\n", stats.TotalSubmitted)
	fmt.Printf("Пропущено дубликатов:   %d\n", stats.TotalSkipped)
	fmt.Printf("Неудачных попыток:      %d\n", stats.TotalFailed)

	return nil
}

func init() {
	SyncCmd.Flags().BoolVar(&syncStatus, "status", false, "показать состояние киоска")
	SyncCmd.Flags().BoolVar(&showStats, "stats", false, "показать статистику движка")
}
