// cmd/kiosk/cmd/feedback/submit.go
package feedback

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/app/kiosk"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/feedback"
)

var (
	patientID          string
	mobileNumber       string
	consultationNumber int
	rating             float64
	comment            string
	priority           string
	responsesFile      string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Принять отзыв пациента",
	Long: `Принимает отзыв пациента и ставит его в очередь доставки.

Ответы анкеты передаются либо флагами --rating и --comment, либо файлом
JSON через --responses (массив ответов на вопросы).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cmd.Context().Value("app").(*kiosk.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		if mobileNumber == "" {
			return fmt.Errorf("мобильный номер обязателен (--mobile)")
		}
		if consultationNumber <= 0 {
			return fmt.Errorf("номер консультации обязателен (--consultation)")
		}

		responses, err := collectResponses()
		if err != nil {
			return err
		}

		payload := feedback.Payload{
			PatientID:          patientID,
			MobileNumber:       mobileNumber,
			ConsultationNumber: consultationNumber,
			SubmittedAt:        time.Now(),
			Responses:          responses,
		}

		entry, err := app.EnqueueFeedback(cmd.Context(), payload, feedback.Priority(priority))
		if err != nil {
			return fmt.Errorf("ошибка приема отзыва: %w", err)
		}

		fmt.Println("✅ Отзыв принят")
		fmt.Printf("Идентификатор: %s\n", entry.ID)
		fmt.Printf("Консультация:  %d\n", entry.Payload.ConsultationNumber)

		status := app.Status()
		if status.IsOnline {
			fmt.Println("Сервер доступен, отзыв будет доставлен немедленно")
		} else {
			fmt.Printf("Сервер недоступен, в очереди записей: %d\n", status.PendingCount)
		}

		return nil
	},
}

func collectResponses() ([]feedback.QuestionResponse, error) {
	if responsesFile != "" {
		data, err := os.ReadFile(responsesFile)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения файла ответов: %w", err)
		}

		var responses []feedback.QuestionResponse
		if err := json.Unmarshal(data, &responses); err != nil {
			return nil, fmt.Errorf("ошибка разбора файла ответов: %w", err)
		}
		return responses, nil
	}

	var responses []feedback.QuestionResponse
	if rating >= 0 {
		r := rating
		responses = append(responses, feedback.QuestionResponse{
			QuestionID:     "overall_rating",
			QuestionTitle:  "Оцените визит",
			QuestionType:   "rating",
			ResponseNumber: &r,
		})
	}
	if comment != "" {
		c := comment
		responses = append(responses, feedback.QuestionResponse{
			QuestionID:    "comment",
			QuestionTitle: "Комментарий",
			QuestionType:  "text",
			ResponseText:  &c,
		})
	}

	if len(responses) == 0 {
		return nil, fmt.Errorf("отзыв пуст: укажите --rating, --comment или --responses")
	}
	return responses, nil
}

func init() {
	submitCmd.Flags().StringVar(&patientID, "patient", "", "идентификатор пациента")
	submitCmd.Flags().StringVarP(&mobileNumber, "mobile", "m", "", "мобильный номер пациента")
	submitCmd.Flags().IntVarP(&consultationNumber, "consultation", "c", 0, "номер консультации")
	submitCmd.Flags().Float64VarP(&rating, "rating", "r", -1, "общая оценка визита")
	submitCmd.Flags().StringVar(&comment, "comment", "", "текстовый комментарий")
	submitCmd.Flags().StringVarP(&priority, "priority", "p", "high", "приоритет доставки (high|medium|low)")
	submitCmd.Flags().StringVar(&responsesFile, "responses", "", "JSON файл с ответами анкеты")
}
