package mock

import (
	"net/http"
	"sync"

	"github.com/evergreen-ci/deadline/util"
	"github.com/gorilla/mux"
)

// Resource names as they appear in the farm API paths.
const (
	ResourcePools       = "pools"
	ResourceGroups      = "groups"
	ResourceLimitGroups = "limitgroups"
	ResourceMachines    = "slaves"
)

// FarmData is the content served by a fake farm.
type FarmData struct {
	Pools       []string `json:"pools" yaml:"pools"`
	Groups      []string `json:"groups" yaml:"groups"`
	LimitGroups []string `json:"limit_groups" yaml:"limit_groups"`
	Machines    []string `json:"machines" yaml:"machines"`

	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Token    string `json:"token,omitempty" yaml:"token,omitempty"`
}

// Farm is an in-memory stand-in for the farm web service. It counts the
// requests it receives per resource.
type Farm struct {
	FarmData

	// ObjectMode makes every endpoint answer with name-bearing objects
	// instead of plain names.
	ObjectMode bool

	mu       sync.Mutex
	statuses map[string]int
	requests map[string]int
}

func NewFarm(data FarmData) *Farm {
	return &Farm{
		FarmData: data,
		statuses: map[string]int{},
		requests: map[string]int{},
	}
}

// SetStatus forces the status code returned for a resource.
func (f *Farm) SetStatus(resource string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[resource] = status
}

// Requests returns how many requests the resource received.
func (f *Farm) Requests(resource string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[resource]
}

// TotalRequests returns how many requests the farm received.
func (f *Farm) TotalRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, count := range f.requests {
		total += count
	}
	return total
}

// Handler returns the HTTP handler of the fake web service.
func (f *Farm) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/{resource}", f.handleList).Methods(http.MethodGet)
	return r
}

func (f *Farm) handleList(w http.ResponseWriter, r *http.Request) {
	resource := mux.Vars(r)["resource"]

	f.mu.Lock()
	f.requests[resource]++
	status := f.statuses[resource]
	f.mu.Unlock()

	if !f.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if status != 0 && status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}

	var names []string
	switch resource {
	case ResourcePools:
		names = f.Pools
	case ResourceGroups:
		names = f.Groups
	case ResourceLimitGroups:
		names = f.LimitGroups
	case ResourceMachines:
		names = f.Machines
	default:
		http.NotFound(w, r)
		return
	}
	if names == nil {
		names = []string{}
	}

	namesOnly, err := util.GetBoolValue(r, "NamesOnly", false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var body interface{} = names
	if f.ObjectMode || !(namesOnly || resource == ResourceGroups) {
		objects := make([]map[string]interface{}, 0, len(names))
		for _, name := range names {
			objects = append(objects, map[string]interface{}{"Name": name})
		}
		body = objects
	}

	util.WriteJSON(w, body, http.StatusOK)
}

func (f *Farm) authorized(r *http.Request) bool {
	if f.Token != "" {
		return r.Header.Get("Authorization") == "Bearer "+f.Token
	}
	if f.Username == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	return ok && user == f.Username && pass == f.Password
}
