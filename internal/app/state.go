package app

// AppState is the view the progress UI is showing.
type AppState int

const (
	Running AppState = iota
	Finished
	ShowError
	Exiting
)
