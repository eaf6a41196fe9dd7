package farm

import "github.com/pkg/errors"

// ResourceKind is a kind of named resource the farm web service lists.
type ResourceKind string

const (
	Pools       ResourceKind = "pools"
	Groups      ResourceKind = "groups"
	LimitGroups ResourceKind = "limitgroups"
	Machines    ResourceKind = "workers"
)

// ResourceKinds lists every kind in display order.
var ResourceKinds = []ResourceKind{Pools, Groups, LimitGroups, Machines}

// Path returns the API path, including query, that lists the kind.
func (k ResourceKind) Path() string {
	switch k {
	case Pools:
		return "/api/pools?NamesOnly=true"
	case Groups:
		return "/api/groups"
	case LimitGroups:
		return "/api/limitgroups?NamesOnly=true"
	case Machines:
		return "/api/slaves?NamesOnly=true"
	default:
		return ""
	}
}

func (k ResourceKind) Validate() error {
	if k.Path() == "" {
		return errors.Errorf("unrecognized farm resource kind '%s'", k)
	}
	return nil
}

func (k ResourceKind) String() string { return string(k) }
