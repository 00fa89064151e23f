package notification

// Priority ranks how urgently a notification type should be surfaced.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Config is the static display metadata for one notification type.
type Config struct {
	Icon     string   `json:"icon"`
	Color    string   `json:"color"`
	Priority Priority `json:"priority"`
	Label    string   `json:"label"`
}

// TypeConfig maps every notification type to its display metadata.
// It drives both rendering and toast severity.
var TypeConfig = map[Type]Config{
	TypeNewBook: {
		Icon:     "book",
		Color:    "blue",
		Priority: PriorityMedium,
		Label:    "New Book",
	},
	TypeNewEvent: {
		Icon:     "calendar",
		Color:    "green",
		Priority: PriorityMedium,
		Label:    "New Event",
	},
	TypeReminder: {
		Icon:     "clock",
		Color:    "orange",
		Priority: PriorityHigh,
		Label:    "Reminder",
	},
	TypeOverdue: {
		Icon:     "alert-triangle",
		Color:    "red",
		Priority: PriorityHigh,
		Label:    "Overdue",
	},
}

// ConfigFor returns the config for t, or the NEW_BOOK config when t is not
// one of the enumerated types.
func ConfigFor(t Type) Config {
	if cfg, ok := TypeConfig[t]; ok {
		return cfg
	}
	return TypeConfig[TypeNewBook]
}
