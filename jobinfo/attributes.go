package jobinfo

import (
	"context"

	"github.com/evergreen-ci/deadline"
	"github.com/evergreen-ci/deadline/util"
	"github.com/pkg/errors"
)

// AttributeType tags the variant of an attribute definition.
type AttributeType string

const (
	NumberAttribute    AttributeType = "number"
	TextAttribute      AttributeType = "text"
	BoolAttribute      AttributeType = "bool"
	EnumAttribute      AttributeType = "enum"
	SeparatorAttribute AttributeType = "separator"
)

// AttributeDefinition describes one field of the form users fill in to
// override job options. Which of the fields are meaningful depends on the
// type; the host decides how to render it.
type AttributeDefinition struct {
	Type    AttributeType `json:"type" yaml:"type"`
	Key     string        `json:"key" yaml:"key"`
	Label   string        `json:"label,omitempty" yaml:"label,omitempty"`
	Tooltip string        `json:"tooltip,omitempty" yaml:"tooltip,omitempty"`
	Default interface{}   `json:"default,omitempty" yaml:"default,omitempty"`

	// number
	Minimum  *float64 `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum  *float64 `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	Decimals int      `json:"decimals,omitempty" yaml:"decimals,omitempty"`

	// text
	Placeholder string `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`

	// enum
	Items          []string `json:"items,omitempty" yaml:"items,omitempty"`
	MultiSelection bool     `json:"multiselection,omitempty" yaml:"multiselection,omitempty"`
}

func NumberDef(key, label string, def int) AttributeDefinition {
	return AttributeDefinition{Type: NumberAttribute, Key: key, Label: label, Default: def}
}

func TextDef(key, label, def string) AttributeDefinition {
	return AttributeDefinition{Type: TextAttribute, Key: key, Label: label, Default: def}
}

func BoolDef(key, label string, def bool) AttributeDefinition {
	return AttributeDefinition{Type: BoolAttribute, Key: key, Label: label, Default: def}
}

// EnumDef defines a single choice. A default that is not one of the items is
// replaced with an empty selection.
func EnumDef(key, label string, items []string, def string) AttributeDefinition {
	if !util.StringSliceContains(items, def) {
		def = ""
	}
	return AttributeDefinition{Type: EnumAttribute, Key: key, Label: label, Items: items, Default: def}
}

// MultiEnumDef defines a multiple choice. Defaults that are not items are
// dropped.
func MultiEnumDef(key, label string, items []string, def []string) AttributeDefinition {
	return AttributeDefinition{
		Type:           EnumAttribute,
		Key:            key,
		Label:          label,
		Items:          items,
		Default:        util.StringSliceIntersection(items, def),
		MultiSelection: true,
	}
}

func SeparatorDef(key string) AttributeDefinition {
	return AttributeDefinition{Type: SeparatorAttribute, Key: key}
}

func (d AttributeDefinition) WithRange(min, max float64) AttributeDefinition {
	d.Minimum = &min
	d.Maximum = &max
	return d
}

func (d AttributeDefinition) WithPlaceholder(placeholder string) AttributeDefinition {
	d.Placeholder = placeholder
	return d
}

func (d AttributeDefinition) WithTooltip(tooltip string) AttributeDefinition {
	d.Tooltip = tooltip
	return d
}

// DefinitionsInput is what the attribute definitions of an instance depend
// on.
type DefinitionsInput struct {
	Profile      *deadline.JobInfoProfile
	Resources    ResourceLister
	Server       string
	Host         string
	HostDefaults map[string]deadline.HostJobDefaults
}

const (
	optionsSeparator    = "options"
	optionsEndSeparator = "options_end"
)

// Definitions returns the attribute definitions for the fields the profile
// lets users override, followed by the options of the host. Enum items come
// from the farm resources of the server, so this may fail when the farm is
// unreachable. Without a profile, overrides or host options there are no
// definitions.
func Definitions(ctx context.Context, in DefinitionsInput) ([]AttributeDefinition, error) {
	defs := []AttributeDefinition{}

	if in.Profile != nil {
		for _, field := range deadline.OverrideFields {
			if !in.Profile.AllowsOverride(field) {
				continue
			}
			def, err := fieldDefinition(ctx, field, in)
			if err != nil {
				return nil, errors.Wrapf(err, "defining attribute '%s'", field)
			}
			defs = append(defs, def)
		}
	}

	if hostDefaults, ok := in.HostDefaults[in.Host]; ok {
		defs = append(defs,
			NumberDef(deadline.OverrideTilePriority, "Tile Assembler Priority", hostDefaults.TilePriority).
				WithRange(deadline.MinPriority, deadline.MaxPriority),
			BoolDef(deadline.OverrideStrictErrorChecking, "Strict Error Checking", hostDefaults.StrictErrorChecking),
		)
	}

	if len(defs) == 0 {
		return nil, nil
	}

	out := make([]AttributeDefinition, 0, len(defs)+2)
	out = append(out, SeparatorDef(optionsSeparator))
	out = append(out, defs...)
	out = append(out, SeparatorDef(optionsEndSeparator))
	return out, nil
}

func fieldDefinition(ctx context.Context, field string, in DefinitionsInput) (AttributeDefinition, error) {
	p := in.Profile
	switch field {
	case deadline.OverrideChunkSize:
		return NumberDef(field, "Frames Per Task", p.ChunkSize).
			WithRange(deadline.MinChunkSize, deadline.MaxChunkSize), nil
	case deadline.OverridePriority:
		return NumberDef(field, "Priority", p.PriorityValue()).
			WithRange(deadline.MinPriority, deadline.MaxPriority), nil
	case deadline.OverrideDepartment:
		return TextDef(field, "Department", p.Department), nil
	case deadline.OverrideJobDelay:
		return TextDef(field, "Delay job (timecode dd:hh:mm:ss)", p.JobDelay).
			WithPlaceholder("00:00:00:00"), nil
	case deadline.OverrideMachineListDeny:
		return BoolDef(field, "Machine List is a Deny", p.MachineListDeny), nil
	case deadline.OverrideConcurrentTasks:
		return NumberDef(field, "Number of concurrent tasks", p.ConcurrentTasks).
			WithRange(1, maxConcurrentTasks), nil
	case deadline.OverridePublishJobState:
		state := p.PublishJobState
		if state == "" {
			state = deadline.PublishJobStateActive
		}
		return EnumDef(field, "Publish Job State",
			[]string{deadline.PublishJobStateActive, deadline.PublishJobStateSuspended}, state), nil
	case deadline.OverrideAdditionalJobInfo:
		return TextDef(field, "Additional JobInfo data", p.AdditionalJobInfo).
			WithPlaceholder(`{"key": "value"}`).
			WithTooltip("JSON object applied verbatim to the job info"), nil
	case deadline.OverrideAdditionalPluginInfo:
		return TextDef(field, "Additional PluginInfo data", p.AdditionalPluginInfo).
			WithPlaceholder(`{"key": "value"}`).
			WithTooltip("JSON object applied verbatim to the plugin info"), nil
	}

	if in.Resources == nil {
		return AttributeDefinition{}, errors.New("no farm resources to choose from")
	}

	switch field {
	case deadline.OverrideLimitGroups:
		limitGroups, err := in.Resources.LimitGroups(ctx, in.Server)
		if err != nil {
			return AttributeDefinition{}, err
		}
		return MultiEnumDef(field, "Limit Groups", limitGroups, p.LimitGroups), nil
	case deadline.OverrideMachineList:
		machines, err := in.Resources.Machines(ctx, in.Server)
		if err != nil {
			return AttributeDefinition{}, err
		}
		return MultiEnumDef(field, "Machine List", machines, p.MachineList), nil
	case deadline.OverridePrimaryPool:
		pools, err := in.Resources.Pools(ctx, in.Server)
		if err != nil {
			return AttributeDefinition{}, err
		}
		return EnumDef(field, "Primary Pool", pools, p.PrimaryPool), nil
	case deadline.OverrideSecondaryPool:
		pools, err := in.Resources.Pools(ctx, in.Server)
		if err != nil {
			return AttributeDefinition{}, err
		}
		return EnumDef(field, "Secondary Pool", pools, p.SecondaryPool), nil
	case deadline.OverrideGroup:
		groups, err := in.Resources.Groups(ctx, in.Server)
		if err != nil {
			return AttributeDefinition{}, err
		}
		return EnumDef(field, "Group", groups, p.Group), nil
	}

	return AttributeDefinition{}, errors.Errorf("unrecognized field '%s'", field)
}
