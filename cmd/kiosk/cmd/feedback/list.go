// cmd/kiosk/cmd/feedback/list.go
package feedback

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/app/kiosk"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/feedback"
)

var listFormat string

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список недоставленных отзывов",
	Long: `Показывает отзывы, ожидающие доставки, в порядке, в котором их
возьмет движок синхронизации: сначала приоритет, внутри приоритета старые
раньше.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cmd.Context().Value("app").(*kiosk.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		entries, err := app.ListPendingFeedback(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка получения списка отзывов: %w", err)
		}

		switch listFormat {
		case "json":
			return printEntriesJSON(entries)
		default:
			return printEntriesTable(entries)
		}
	},
}

func printEntriesTable(entries []*feedback.Entry) error {
	if len(entries) == 0 {
		fmt.Println("Очередь доставки пуста")
		return nil
	}

	fmt.Printf("Недоставленных отзывов: %d\n\n", len(entries))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tКОНСУЛЬТАЦИЯ\tПРИОРИТЕТ\tСТАТУС\tПОПЫТКИ\tПРИНЯТ")

	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d/%d\t%s\n",
			entry.ID,
			entry.Payload.ConsultationNumber,
			entry.Priority,
			entry.Status,
			entry.RetryCount,
			entry.MaxAttempts,
			entry.CreatedAt.Local().Format(time.DateTime),
		)
	}

	return w.Flush()
}

func printEntriesJSON(entries []*feedback.Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func init() {
	ListCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "формат вывода (table|json)")
}
