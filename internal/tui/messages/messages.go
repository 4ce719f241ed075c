package messages

import (
	"waitroom/internal/engine"
	"waitroom/internal/tui/common"
)

type ItemMsg struct {
	View engine.ItemView
}

type HideMsg struct{}

type StatusMsg struct {
	Status engine.StatusDisplay
}

type NoticeMsg struct {
	Message engine.Message
}

type FallbackMsg struct{}

type ErrorMsg struct {
	Text string
}

// StartedMsg reports the result of starting the engine
type StartedMsg struct {
	Err error
}

type ActionDoneMsg struct {
	Action common.Action
	Err    error
}
