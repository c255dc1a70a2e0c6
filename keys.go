package webdrill

// Key names a special key for use with Element.Press. The browser
// implementation maps these to DevTools key events.
type Key string

const (
	Enter     Key = "Enter"
	Escape    Key = "Escape"
	Tab       Key = "Tab"
	Backspace Key = "Backspace"
	Delete    Key = "Delete"
	Up        Key = "ArrowUp"
	Down      Key = "ArrowDown"
	Left      Key = "ArrowLeft"
	Right     Key = "ArrowRight"
	Home      Key = "Home"
	End       Key = "End"
	PageUp    Key = "PageUp"
	PageDown  Key = "PageDown"
)
