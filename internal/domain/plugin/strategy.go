package plugin

import "fmt"

// AllID is the strategy target meaning "every other plugin".
const AllID = "*"

// Relation places a plugin relative to its strategy target.
type Relation string

// Relations.
const (
	RelationBefore Relation = "before"
	RelationAfter  Relation = "after"
	RelationAny    Relation = "any"
)

// Strategy is a declarative initialization ordering constraint.
type Strategy struct {
	// ID is another plugin's id or AllID.
	ID       string
	Relation Relation
}

// Any is the default strategy: no ordering constraint.
func Any() Strategy { return Strategy{ID: AllID, Relation: RelationAny} }

// BeforeAll initializes the plugin ahead of every unconstrained plugin.
func BeforeAll() Strategy { return Strategy{ID: AllID, Relation: RelationBefore} }

// AfterAll initializes the plugin after every unconstrained plugin.
func AfterAll() Strategy { return Strategy{ID: AllID, Relation: RelationAfter} }

// Before initializes the plugin immediately before the plugin with id.
func Before(id string) Strategy { return Strategy{ID: id, Relation: RelationBefore} }

// After initializes the plugin immediately after the plugin with id.
func After(id string) Strategy { return Strategy{ID: id, Relation: RelationAfter} }

// IsAll reports whether the strategy targets every plugin.
func (s Strategy) IsAll() bool {
	return s.ID == AllID
}

// Validate checks the relation and target.
func (s Strategy) Validate() error {
	switch s.Relation {
	case RelationBefore, RelationAfter, RelationAny:
	default:
		return fmt.Errorf("unknown initialization relation %q (use before, after or any)", s.Relation)
	}
	if s.ID == "" {
		return fmt.Errorf("initialization strategy needs a plugin id or %q", AllID)
	}
	return nil
}

func (s Strategy) String() string {
	return string(s.Relation) + " " + s.ID
}
