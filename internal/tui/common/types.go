package common

// Controls is the operator surface of the display engine. Calls block until
// the engine has applied them, so they must run off the UI goroutine.
type Controls interface {
	SkipItem() error
	SkipFile() error
	Reload() error
}

// Action names an operator key action
type Action string

const (
	ActionSkipItem Action = "skip item"
	ActionSkipFile Action = "skip file"
	ActionReload   Action = "reload"
)

// Label is the footer text shown after the action completes.
func (a Action) Label() string {
	switch a {
	case ActionSkipItem:
		return "次の項目へ"
	case ActionSkipFile:
		return "次のファイルへ"
	case ActionReload:
		return "再読み込みしました"
	}
	return string(a)
}
