package jobinfo

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/evergreen-ci/deadline"
)

// Descriptor is the farm submission metadata assembled for one publish
// instance.
type Descriptor struct {
	ID     string `json:"id" yaml:"id"`
	Server string `json:"server" yaml:"server"`

	ChunkSize       int      `json:"chunk_size" yaml:"chunk_size"`
	Priority        int      `json:"priority" yaml:"priority"`
	Department      string   `json:"department,omitempty" yaml:"department,omitempty"`
	Pool            string   `json:"primary_pool" yaml:"primary_pool"`
	SecondaryPool   string   `json:"secondary_pool,omitempty" yaml:"secondary_pool,omitempty"`
	Group           string   `json:"group" yaml:"group"`
	LimitGroups     []string `json:"limit_groups,omitempty" yaml:"limit_groups,omitempty"`
	MachineList     []string `json:"machine_list,omitempty" yaml:"machine_list,omitempty"`
	MachineListDeny bool     `json:"machine_list_deny,omitempty" yaml:"machine_list_deny,omitempty"`
	JobDelay        string   `json:"job_delay,omitempty" yaml:"job_delay,omitempty"`
	ConcurrentTasks int      `json:"concurrent_tasks" yaml:"concurrent_tasks"`
	PublishJobState string   `json:"publish_job_state" yaml:"publish_job_state"`

	// Only set for hosts that have host specific defaults.
	TilePriority        *int  `json:"tile_priority,omitempty" yaml:"tile_priority,omitempty"`
	StrictErrorChecking *bool `json:"strict_error_checking,omitempty" yaml:"strict_error_checking,omitempty"`

	AdditionalJobInfo    map[string]interface{} `json:"additional_job_info,omitempty" yaml:"additional_job_info,omitempty"`
	AdditionalPluginInfo map[string]interface{} `json:"additional_plugin_info,omitempty" yaml:"additional_plugin_info,omitempty"`
	Environment          map[string]string      `json:"environment,omitempty" yaml:"environment,omitempty"`
}

// JobInfo renders the descriptor as farm JobInfo key/value pairs, sorted by
// key. Additional job info entries are applied last and replace generated
// entries of the same name.
func (d *Descriptor) JobInfo() deadline.KeyValuePairSlice {
	out := map[string]string{
		"ChunkSize":       strconv.Itoa(d.ChunkSize),
		"Priority":        strconv.Itoa(d.Priority),
		"Pool":            d.Pool,
		"Group":           d.Group,
		"ConcurrentTasks": strconv.Itoa(d.ConcurrentTasks),
	}
	if d.Department != "" {
		out["Department"] = d.Department
	}
	if d.SecondaryPool != "" {
		out["SecondaryPool"] = d.SecondaryPool
	}
	if len(d.LimitGroups) > 0 {
		out["LimitGroups"] = strings.Join(d.LimitGroups, ",")
	}
	if len(d.MachineList) > 0 {
		if d.MachineListDeny {
			out["Blacklist"] = strings.Join(d.MachineList, ",")
		} else {
			out["Whitelist"] = strings.Join(d.MachineList, ",")
		}
	}
	if d.JobDelay != "" {
		out["JobDelay"] = d.JobDelay
		out["ScheduledType"] = "Once"
	}
	d.addEnvironment(out)

	for key, value := range d.AdditionalJobInfo {
		out[key] = FormatValue(value)
	}

	return deadline.MapToKvSlice(out)
}

// PluginInfo renders host options and additional plugin info entries.
func (d *Descriptor) PluginInfo() deadline.KeyValuePairSlice {
	out := map[string]string{}
	if d.StrictErrorChecking != nil {
		out["StrictErrorChecking"] = strconv.FormatBool(*d.StrictErrorChecking)
	}
	for key, value := range d.AdditionalPluginInfo {
		out[key] = FormatValue(value)
	}
	return deadline.MapToKvSlice(out)
}

// PublishJobInfo renders the JobInfo of the downstream publish job, which
// runs after the render job with the same environment.
func (d *Descriptor) PublishJobInfo() deadline.KeyValuePairSlice {
	status := "Active"
	if d.PublishJobState == deadline.PublishJobStateSuspended {
		status = "Suspended"
	}
	out := map[string]string{
		"InitialStatus": status,
		"Priority":      strconv.Itoa(d.Priority),
		"Pool":          d.Pool,
		"Group":         d.Group,
	}
	if d.Department != "" {
		out["Department"] = d.Department
	}
	d.addEnvironment(out)
	return deadline.MapToKvSlice(out)
}

func (d *Descriptor) addEnvironment(out map[string]string) {
	keys := make([]string, 0, len(d.Environment))
	for key := range d.Environment {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for idx, key := range keys {
		out[fmt.Sprintf("EnvironmentKeyValue%d", idx)] = fmt.Sprintf("%s=%s", key, d.Environment[key])
	}
}

// FormatValue renders a decoded JSON value the way the farm expects it in
// key/value files.
func FormatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		out, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(out)
	}
}
