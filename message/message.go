package message

// InvalidatedMsg signals that a target's predicate changed
type InvalidatedMsg struct {
	Target string
}

// ErrorMsg contains an error
type ErrorMsg struct {
	Err error
}

// SetValueMsg asks for a filter's value to be set
type SetValueMsg struct {
	FilterId string
	Value    any
}

// ValueSetMsg reports a value applied to the engine
type ValueSetMsg struct {
	FilterId string
	Value    any
}

// SizeMsg carries the space granted to a panel
type SizeMsg struct {
	Width  int
	Height int
}
