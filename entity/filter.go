package entity

// Operator names a comparison applied by a Condition.
type Operator string

// Comparison operators
const (
	Eq         Operator = "eq"
	Neq        Operator = "neq"
	Contains   Operator = "contains"
	StartsWith Operator = "starts_with"
	EndsWith   Operator = "ends_with"
	In         Operator = "in"
	NotIn      Operator = "not_in"
	Lt         Operator = "lt"
	Lte        Operator = "lte"
	Gt         Operator = "gt"
	Gte        Operator = "gte"
	Between    Operator = "between"
	Before     Operator = "before"
	After      Operator = "after"
	Relative   Operator = "relative"
)

// Operators lists every operator in the enumerated set.
var Operators = []Operator{
	Eq, Neq, Contains, StartsWith, EndsWith, In, NotIn,
	Lt, Lte, Gt, Gte, Between, Before, After, Relative,
}

// Logical is the connective joining a Group's children.
type Logical string

const (
	And Logical = "AND"
	Or  Logical = "OR"
)

// MaxDepth bounds group nesting for compilation and validation.
const MaxDepth = 32

// Node is an element of a filter tree, either a *Group or a *Condition.
type Node interface {
	isNode()
}

// Group joins child nodes with a logical connective.
type Group struct {
	Logical  Logical
	Children []Node
}

// Condition compares the row value at Field to Value, or to the runtime
// value named by Binding when that binding is present.
type Condition struct {
	Field    string
	Operator Operator
	Value    Value
	Binding  string
}

func (*Group) isNode()     {}
func (*Condition) isNode() {}

// Definition is the condition tree of a filter.
type Definition struct {
	Root *Group
}

// Status is a filter's lifecycle stage.
type Status string

const (
	Draft      Status = "draft"
	Published  Status = "published"
	Deprecated Status = "deprecated"
)

// Filter is a named, versioned, reusable condition tree with default
// presentation and the instances binding it to targets.
type Filter struct {
	Id         string      `json:"id" yaml:"id"`
	Name       string      `json:"name" yaml:"name"`
	Type       string      `json:"type" yaml:"type"`
	Definition *Definition `json:"definition,omitempty" yaml:"definition,omitempty"`
	UIDefault  *UIConfig   `json:"uiDefault,omitempty" yaml:"ui_default,omitempty"`
	Version    int         `json:"version" yaml:"version"`
	Status     Status      `json:"status" yaml:"status"`
	Instances  []Instance  `json:"instances,omitempty" yaml:"instances,omitempty"`
}

// Instance binds a filter to a target.
type Instance struct {
	Id         string    `json:"id" yaml:"id"`
	FilterId   string    `json:"filterId" yaml:"filter_id"`
	TargetType string    `json:"targetType" yaml:"target_type" validate:"required"`
	TargetRef  string    `json:"targetRef" yaml:"target_ref" validate:"required"`
	Placement  string    `json:"placement" yaml:"placement" validate:"required"`
	IsActive   bool      `json:"isActive" yaml:"is_active"`
	UIOverride *UIConfig `json:"uiOverride,omitempty" yaml:"ui_override,omitempty"`
}

// UIConfig carries presentation hints for rendering a filter.
type UIConfig struct {
	Size        string      `json:"size,omitempty" yaml:"size,omitempty" validate:"omitempty,oneof=small medium large"`
	Dimensions  *Dimensions `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Class       string      `json:"className,omitempty" yaml:"class,omitempty"`
	Label       string      `json:"label,omitempty" yaml:"label,omitempty"`
	Placeholder string      `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Debounce    int         `json:"debounce,omitempty" yaml:"debounce,omitempty" validate:"min=0"`
}

// Dimensions are CSS lengths such as "240px", "50%" or "auto".
type Dimensions struct {
	Width  string `json:"width,omitempty" yaml:"width,omitempty" validate:"omitempty,csslength"`
	Height string `json:"height,omitempty" yaml:"height,omitempty" validate:"omitempty,csslength"`
}

// ValidationError describes one violation found in a filter.
type ValidationError struct {
	Field   string `json:"field"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (ve ValidationError) Error() string {
	if ve.Path == "" {
		return ve.Field + ": " + ve.Message
	}
	return ve.Path + ": " + ve.Message
}
