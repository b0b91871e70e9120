// cmd/kiosk/cmd/init.go
package cmd

import (
	"github.com/AkashMedishetty/FeedbackSystem-sub002/cmd/kiosk/cmd/feedback"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/cmd/kiosk/cmd/queue"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/cmd/kiosk/cmd/sync"
)

func init() {
	rootCmd.AddCommand(feedback.FeedbackCmd)
	rootCmd.AddCommand(queue.QueueCmd)
	rootCmd.AddCommand(sync.SyncCmd)
}
