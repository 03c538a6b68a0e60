package entity

// Column is a row field shown in a target panel.
type Column struct {
	Field  string `yaml:"field"`
	Width  int    `yaml:"width,omitempty"`
	Hidden bool   `yaml:"hidden,omitempty"`
}
