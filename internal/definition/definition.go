// Package definition holds the declarative game-definition schema and the
// compiler that turns it into live engine catalogs. Definitions arrive as
// JSON produced by external authoring tools; this package assumes the
// structural validation those tools perform and only checks referential
// integrity.
package definition

import (
	"encoding/json"
	"fmt"
	"os"
)

// GameDefinition is the root of a declarative game description.
type GameDefinition struct {
	Name          string                  `json:"name"`
	PlayerCount   int                     `json:"playerCount"`
	Components    map[string]ComponentDef `json:"components"`
	Zones         map[string]ZoneDef      `json:"zones"`
	Templates     map[string]TemplateDef  `json:"templates"`
	Setup         []SpawnDef              `json:"setup"`
	Actions       map[string]ActionDef    `json:"actions"`
	Phases        map[string]PhaseDef     `json:"phases"`
	InitialPhase  string                  `json:"initialPhase"`
	Rules         []RuleDef               `json:"rules"`
	WinConditions []WinConditionDef       `json:"winConditions"`
	Health        *HealthDef              `json:"health,omitempty"`
}

// ComponentDef declares a schema-backed component: property name to type.
type ComponentDef struct {
	Properties map[string]PropertyDef `json:"properties"`
}

// PropertyDef declares one component property.
type PropertyDef struct {
	Type     string `json:"type"` // string|number|boolean|entity|array
	Optional bool   `json:"optional,omitempty"`
	Default  any    `json:"default,omitempty"`
}

// ZoneDef declares a zone. Shared zones exist once; unshared zones are
// instantiated per player with that player as owner.
type ZoneDef struct {
	Visibility string `json:"visibility"` // public|private|ownerOnly
	Ordered    bool   `json:"ordered"`
	Shared     bool   `json:"shared"`
}

// TemplateDef maps component names to default field values for entities
// instantiated from the template.
type TemplateDef map[string]map[string]any

// SpawnDef places template instances into a zone at setup time.
type SpawnDef struct {
	Template  string `json:"template"`
	Zone      string `json:"zone"`
	Count     int    `json:"count"`
	PerPlayer bool   `json:"perPlayer"`
}

// ActionDef declares an action type.
type ActionDef struct {
	TargetCount   int            `json:"targetCount"`
	Preconditions []ConditionDef `json:"preconditions"`
	Costs         []EffectDef    `json:"costs"`
	Effects       []EffectDef    `json:"effects"`
}

// PhaseDef declares one phase of the turn state machine.
type PhaseDef struct {
	AllowedActions []string `json:"allowedActions"`
	AutoAdvance    bool     `json:"autoAdvance"`
	NextPhase      string   `json:"nextPhase"`
}

// TriggerDef keys a rule to an event type with optional payload filters.
type TriggerDef struct {
	EventType string         `json:"eventType"`
	Filters   map[string]any `json:"filters,omitempty"`
}

// RuleDef declares an event-triggered rule.
type RuleDef struct {
	ID         string         `json:"id,omitempty"`
	Trigger    TriggerDef     `json:"trigger"`
	Conditions []ConditionDef `json:"conditions,omitempty"`
	Effects    []EffectDef    `json:"effects"`
	Priority   int            `json:"priority,omitempty"`
	Phase      string         `json:"phase,omitempty"`
}

// WinConditionDef declares one win condition. Scope "perPlayer" binds each
// player in turn as the condition's actor; "global" evaluates once with
// Winner naming the victor ("" means draw).
type WinConditionDef struct {
	Name      string       `json:"name"`
	Scope     string       `json:"scope"` // global|perPlayer
	Winner    string       `json:"winner,omitempty"`
	Condition ConditionDef `json:"condition"`
}

// HealthDef names the component/field the legacy win fallback consults.
type HealthDef struct {
	Component string `json:"component"`
	Field     string `json:"field"`
}

// ConditionDef is the declarative form of a precondition. Type selects the
// primitive; composites use Clauses or Clause.
type ConditionDef struct {
	Type      string `json:"type"` // compare|propertyEquals|entityExists|inZone|hasComponent|and|or|not
	Entity    string `json:"entity,omitempty"`
	Component string `json:"component,omitempty"`
	Field     string `json:"field,omitempty"`
	Operator  string `json:"operator,omitempty"`
	Value     any    `json:"value,omitempty"`
	Zone      string `json:"zone,omitempty"`

	Clauses []ConditionDef `json:"clauses,omitempty"`
	Clause  *ConditionDef  `json:"clause,omitempty"`
}

// EffectDef is the declarative form of an effect.
type EffectDef struct {
	Type string `json:"type"` // modifyNumber|setString|setValue|moveToZone|shuffleZone|transfer|emitEvent|conditional|sequence

	Entity    string   `json:"entity,omitempty"`
	From      string   `json:"from,omitempty"`
	To        string   `json:"to,omitempty"`
	Zone      string   `json:"zone,omitempty"`
	Component string   `json:"component,omitempty"`
	Field     string   `json:"field,omitempty"`
	Op        string   `json:"op,omitempty"`
	Amount    float64  `json:"amount,omitempty"`
	Value     any      `json:"value,omitempty"`
	Allowed   []string `json:"allowed,omitempty"`
	Placement string   `json:"placement,omitempty"`

	EventType string            `json:"eventType,omitempty"`
	Data      map[string]any    `json:"data,omitempty"`
	Entities  map[string]string `json:"entities,omitempty"`

	If   *ConditionDef `json:"if,omitempty"`
	Then []EffectDef   `json:"then,omitempty"`
	Else []EffectDef   `json:"else,omitempty"`

	Effects []EffectDef `json:"effects,omitempty"`
}

// Parse decodes a JSON game definition and checks referential integrity.
func Parse(data []byte) (*GameDefinition, error) {
	var def GameDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse game definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Load reads and parses a game definition file.
func Load(path string) (*GameDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load game definition: %w", err)
	}
	return Parse(data)
}

// Validate checks cross-references inside the definition: phases point at
// declared phases and actions, setup points at declared templates and
// zones.
func (d *GameDefinition) Validate() error {
	if d.PlayerCount <= 0 {
		return fmt.Errorf("game definition: playerCount must be positive")
	}
	if len(d.Phases) > 0 {
		if _, ok := d.Phases[d.InitialPhase]; !ok {
			return fmt.Errorf("game definition: initial phase %q not declared", d.InitialPhase)
		}
		for name, p := range d.Phases {
			if p.NextPhase != "" {
				if _, ok := d.Phases[p.NextPhase]; !ok {
					return fmt.Errorf("game definition: phase %q: next phase %q not declared", name, p.NextPhase)
				}
			}
			for _, a := range p.AllowedActions {
				if _, ok := d.Actions[a]; !ok {
					return fmt.Errorf("game definition: phase %q: allowed action %q not declared", name, a)
				}
			}
		}
	}
	for i, s := range d.Setup {
		if _, ok := d.Templates[s.Template]; !ok {
			return fmt.Errorf("game definition: setup[%d]: template %q not declared", i, s.Template)
		}
		if _, ok := d.Zones[s.Zone]; !ok {
			return fmt.Errorf("game definition: setup[%d]: zone %q not declared", i, s.Zone)
		}
	}
	for _, wc := range d.WinConditions {
		if wc.Scope != "" && wc.Scope != "global" && wc.Scope != "perPlayer" {
			return fmt.Errorf("game definition: win condition %q: unknown scope %q", wc.Name, wc.Scope)
		}
	}
	return nil
}
