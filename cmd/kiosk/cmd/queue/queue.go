// cmd/kiosk/cmd/queue/queue.go
package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/app/kiosk"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/feedback"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/queue"
)

var (
	entryType string
	endpoint  string
	method    string
	dataJSON  string
	priority  string
)

var QueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Общая очередь доставки",
	Long: `Общая очередь произвольных задач доставки: аналитика, журналы,
служебные вызовы API. Задачи доставляются тем же движком, что и отзывы,
но без проверки дубликатов.`,
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Добавить задачу в очередь",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cmd.Context().Value("app").(*kiosk.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		if endpoint == "" {
			return fmt.Errorf("endpoint обязателен (--endpoint)")
		}
		if dataJSON != "" && !json.Valid([]byte(dataJSON)) {
			return fmt.Errorf("--data должен быть корректным JSON")
		}

		entry := &queue.Entry{
			Type:     entryType,
			Endpoint: endpoint,
			Method:   method,
			Data:     json.RawMessage(dataJSON),
			Priority: feedback.Priority(priority),
		}

		id, err := app.EnqueueQueueEntry(cmd.Context(), entry)
		if err != nil {
			return fmt.Errorf("ошибка добавления задачи: %w", err)
		}

		fmt.Printf("Задача %s добавлена в очередь\n", id)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Список недоставленных задач",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cmd.Context().Value("app").(*kiosk.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		entries, err := app.ListPendingQueue(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка получения очереди: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("Очередь пуста")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tТИП\tENDPOINT\tСТАТУС\tПОПЫТКИ\tСОЗДАНА")
		for _, entry := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%d/%d\t%s\n",
				entry.ID,
				entry.Type,
				entry.Method,
				entry.Endpoint,
				entry.Status,
				entry.RetryCount,
				entry.MaxAttempts,
				entry.CreatedAt.Local().Format(time.DateTime),
			)
		}
		return w.Flush()
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry [id]",
	Short: "Повторить доставку задачи",
	Long: `Сбрасывает счетчик попыток задачи и возвращает ее в очередь.
Используется для задач, исчерпавших квоту автоматических повторов.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cmd.Context().Value("app").(*kiosk.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		id := args[0]
		if err := app.RetryQueueEntry(cmd.Context(), id); err != nil {
			return fmt.Errorf("ошибка повтора задачи: %w", err)
		}

		fmt.Printf("Задача %s возвращена в очередь\n", id)
		return nil
	},
}

func init() {
	addCmd.Flags().StringVarP(&entryType, "type", "t", "generic", "тип задачи")
	addCmd.Flags().StringVarP(&endpoint, "endpoint", "e", "", "endpoint доставки (путь или полный URL)")
	addCmd.Flags().StringVarP(&method, "method", "X", "POST", "HTTP метод")
	addCmd.Flags().StringVarP(&dataJSON, "data", "d", "", "тело запроса (JSON)")
	addCmd.Flags().StringVarP(&priority, "priority", "p", "low", "приоритет доставки (high|medium|low)")

	QueueCmd.AddCommand(addCmd)
	QueueCmd.AddCommand(listCmd)
	QueueCmd.AddCommand(retryCmd)
}
