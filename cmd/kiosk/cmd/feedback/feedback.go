// cmd/kiosk/cmd/feedback/feedback.go
package feedback

import (
	"github.com/spf13/cobra"
)

var FeedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Работа с отзывами пациентов",
	Long: `Прием отзывов пациентов и просмотр очереди доставки.

Отзыв сохраняется локально сразу после приема и доставляется на сервер
движком синхронизации. Состояние сети на прием не влияет.`,
}

func init() {
	FeedbackCmd.AddCommand(submitCmd)
	FeedbackCmd.AddCommand(ListCmd)
	FeedbackCmd.AddCommand(removeCmd)
}
