// cmd/kiosk/cmd/feedback/remove.go
package feedback

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/app/kiosk"
)

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Удалить отзыв из локальной очереди",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cmd.Context().Value("app").(*kiosk.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		id := args[0]
		if _, err := app.GetFeedback(cmd.Context(), id); err != nil {
			return fmt.Errorf("отзыв не найден: %w", err)
		}

		if err := app.RemoveFeedback(cmd.Context(), id); err != nil {
			return fmt.Errorf("ошибка удаления отзыва: %w", err)
		}

		fmt.Printf("Отзыв %s удален\n", id)
		return nil
	},
}
