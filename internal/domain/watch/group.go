package watch

// Group is a named set of images watched together with the commands
// to run after any of them has been updated.
type Group struct {
	// Name is the key of the group under "watch".
	Name string
	// Images lists distinct image references in first-seen order.
	Images []string
	// Commands lists shell command lines in execution order.
	Commands []string
}
