package types

// ConfigModeNote is stored on cards enrolled by tapping in config mode.
const ConfigModeNote = "Added in ConfigMode"

// CardRecord grants or denies one card on one reader.
type CardRecord struct {
	CardID   string
	ReaderID int
	PlanID   int // 0 means always pulse
	Allowed  bool
	Deleted  bool
	Note     string
}
