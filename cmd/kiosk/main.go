package main

import (
	"github.com/AkashMedishetty/FeedbackSystem-sub002/cmd/kiosk/cmd"
)

func main() {
	cmd.Execute()
}
