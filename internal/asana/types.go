package asana

// Task is the slice of an Asana task the bridge cares about.
type Task struct {
	GID          string
	Name         string
	PermalinkURL string
	Completed    bool
}

// Title returns the display title used for markdown link labels.
func (t *Task) Title() string {
	return t.Name
}
