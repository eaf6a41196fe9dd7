package jobinfo

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/evergreen-ci/deadline"
	"github.com/mongodb/grip/logging"
	"github.com/mongodb/grip/send"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type fakeResources struct {
	pools, groups, limitGroups, machines []string
	err                                  error
	calls                                map[string]int
}

func (f *fakeResources) list(kind string, values []string) ([]string, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[kind]++
	if f.err != nil {
		return nil, f.err
	}
	return append([]string{}, values...), nil
}

func (f *fakeResources) Pools(context.Context, string) ([]string, error) {
	return f.list("pools", f.pools)
}
func (f *fakeResources) Groups(context.Context, string) ([]string, error) {
	return f.list("groups", f.groups)
}
func (f *fakeResources) LimitGroups(context.Context, string) ([]string, error) {
	return f.list("limitgroups", f.limitGroups)
}
func (f *fakeResources) Machines(context.Context, string) ([]string, error) {
	return f.list("machines", f.machines)
}

type AssemblerSuite struct {
	ctx       context.Context
	resources *fakeResources
	sender    *send.InternalSender
	assembler *Assembler
	suite.Suite
}

func TestAssemblerSuite(t *testing.T) {
	suite.Run(t, new(AssemblerSuite))
}

func (s *AssemblerSuite) SetupTest() {
	s.ctx = context.Background()
	s.resources = &fakeResources{
		pools:       []string{"none", "low", "high"},
		groups:      []string{"cpu", "gpu"},
		limitGroups: []string{"nuke", "houdini"},
		machines:    []string{"m1", "m2"},
	}
	s.sender = send.MakeInternalLogger()
	s.assembler = NewAssembler(s.resources, logging.MakeGrip(s.sender))
}

func (s *AssemblerSuite) profile(overrides ...string) *deadline.JobInfoProfile {
	priority := 70
	p := &deadline.JobInfoProfile{
		ChunkSize:   10,
		Priority:    &priority,
		PrimaryPool: "high",
		Group:       "gpu",
		Overrides:   overrides,
	}
	s.Require().NoError(p.ValidateAndDefault())
	return p
}

func (s *AssemblerSuite) TestProfileDefaults() {
	d, err := s.assembler.Build(s.ctx, Input{Profile: s.profile(), Server: "farm"})
	s.Require().NoError(err)

	s.NotEmpty(d.ID)
	s.Equal("farm", d.Server)
	s.Equal(10, d.ChunkSize)
	s.Equal(70, d.Priority)
	s.Equal("high", d.Pool)
	s.Equal("gpu", d.Group)
	s.Empty(d.SecondaryPool)
	s.Equal(1, d.ConcurrentTasks)
	s.Equal(deadline.PublishJobStateActive, d.PublishJobState)
	s.Nil(d.TilePriority)
	s.Nil(d.StrictErrorChecking)
}

func (s *AssemblerSuite) TestWithoutProfile() {
	d, err := s.assembler.Build(s.ctx, Input{
		Server:    "farm",
		Overrides: map[string]interface{}{"priority": 99},
	})
	s.Require().NoError(err)
	s.Equal(deadline.DefaultChunkSize, d.ChunkSize)
	s.Equal(deadline.DefaultPriority, d.Priority, "user values need a profile permitting them")
	s.Equal(deadline.NoneValue, d.Pool)
	s.Equal("cpu", d.Group)
}

func (s *AssemblerSuite) TestUserValueWinsWhenPermitted() {
	d, err := s.assembler.Build(s.ctx, Input{
		Profile: s.profile(deadline.OverridePriority, deadline.OverridePrimaryPool),
		Server:  "farm",
		Overrides: map[string]interface{}{
			"priority":     float64(90),
			"primary_pool": "low",
			"chunk_size":   5,
		},
	})
	s.Require().NoError(err)
	s.Equal(90, d.Priority)
	s.Equal("low", d.Pool)
	s.Equal(10, d.ChunkSize, "chunk size is not overridable")
}

func (s *AssemblerSuite) TestWeaklyTypedUserValues() {
	d, err := s.assembler.Build(s.ctx, Input{
		Profile: s.profile(deadline.OverrideChunkSize, deadline.OverrideMachineList, deadline.OverrideMachineListDeny),
		Server:  "farm",
		Overrides: map[string]interface{}{
			"chunk_size":        "25",
			"machine_list":      "m1, m2,,m1",
			"machine_list_deny": "true",
		},
	})
	s.Require().NoError(err)
	s.Equal(25, d.ChunkSize)
	s.Equal([]string{"m1", "m2"}, d.MachineList)
	s.True(d.MachineListDeny)
}

func (s *AssemblerSuite) TestStaleDefaultPoolIsDropped() {
	p := s.profile()
	p.PrimaryPool = "retired"
	p.SecondaryPool = "retired"
	p.Group = "retired"

	d, err := s.assembler.Build(s.ctx, Input{Profile: p, Server: "farm"})
	s.Require().NoError(err)
	s.Equal(deadline.NoneValue, d.Pool)
	s.Empty(d.SecondaryPool)
	s.Equal("cpu", d.Group, "first available group")
}

func (s *AssemblerSuite) TestGroupSentinelWhenFarmHasNoGroups() {
	s.resources.groups = nil
	d, err := s.assembler.Build(s.ctx, Input{Profile: s.profile(), Server: "farm"})
	s.Require().NoError(err)
	s.Equal(deadline.NoneValue, d.Group)
}

func (s *AssemblerSuite) TestMachineListFilteredAgainstFarm() {
	p := s.profile()
	p.MachineList = []string{"m1", "m9"}
	p.LimitGroups = []string{"houdini", "maya"}

	d, err := s.assembler.Build(s.ctx, Input{Profile: p, Server: "farm"})
	s.Require().NoError(err)
	s.Equal([]string{"m1"}, d.MachineList)
	s.Equal([]string{"houdini"}, d.LimitGroups)
}

func (s *AssemblerSuite) TestOnlyNeededResourcesAreListed() {
	p := s.profile()
	p.PrimaryPool = ""
	_, err := s.assembler.Build(s.ctx, Input{Profile: p, Server: "farm"})
	s.Require().NoError(err)
	s.Zero(s.resources.calls["pools"])
	s.Zero(s.resources.calls["limitgroups"])
	s.Zero(s.resources.calls["machines"])
	s.Equal(1, s.resources.calls["groups"])
}

func (s *AssemblerSuite) TestAdditionalInfo() {
	p := s.profile(deadline.OverrideAdditionalJobInfo)
	p.AdditionalPluginInfo = `{"Renderer": "arnold"}`

	d, err := s.assembler.Build(s.ctx, Input{
		Profile:   p,
		Server:    "farm",
		Overrides: map[string]interface{}{"additional_job_info": `{"Comment": "hello", "Frames": 12}`},
	})
	s.Require().NoError(err)
	s.Equal(map[string]interface{}{"Comment": "hello", "Frames": json.Number("12")}, d.AdditionalJobInfo)
	s.Equal(map[string]interface{}{"Renderer": "arnold"}, d.AdditionalPluginInfo)

	jobInfo := d.JobInfo()
	comment, ok := jobInfo.Get("Comment")
	s.True(ok)
	s.Equal("hello", comment)
	frames, ok := jobInfo.Get("Frames")
	s.True(ok)
	s.Equal("12", frames)
}

func (s *AssemblerSuite) TestMalformedAdditionalInfo() {
	for name, raw := range map[string]string{
		"Malformed": `{"Comment": `,
		"Array":     `[1, 2]`,
		"Null":      `null`,
		"Scalar":    `"text"`,
	} {
		s.Run(name, func() {
			_, err := s.assembler.Build(s.ctx, Input{
				Profile:   s.profile(deadline.OverrideAdditionalJobInfo),
				Server:    "farm",
				Overrides: map[string]interface{}{"additional_job_info": raw},
			})
			s.Error(err)
		})
	}
}

func (s *AssemblerSuite) TestInvalidUserValues() {
	for name, values := range map[string]map[string]interface{}{
		"ChunkSize":       {"chunk_size": 0},
		"Priority":        {"priority": 101},
		"JobDelay":        {"job_delay": "tomorrow"},
		"PublishJobState": {"publish_job_state": "paused"},
		"NotANumber":      {"priority": "high"},
	} {
		s.Run(name, func() {
			_, err := s.assembler.Build(s.ctx, Input{
				Profile: s.profile(deadline.OverrideChunkSize, deadline.OverridePriority,
					deadline.OverrideJobDelay, deadline.OverridePublishJobState),
				Server:    "farm",
				Overrides: values,
			})
			s.Error(err)
		})
	}
}

func (s *AssemblerSuite) TestForbiddenFieldsAreNotDecoded() {
	d, err := s.assembler.Build(s.ctx, Input{
		Profile: s.profile(deadline.OverridePriority),
		Server:  "farm",
		Overrides: map[string]interface{}{
			"priority":      "80",
			"chunk_size":    "lots",
			"tile_priority": map[string]interface{}{"bad": true},
			"unknown_field": 1,
		},
	})
	s.Require().NoError(err)
	s.Equal(80, d.Priority)
	s.Equal(10, d.ChunkSize)
	s.Nil(d.TilePriority)

	ignored := []string{}
	for s.sender.HasMessage() {
		m := s.sender.GetMessage()
		if strings.Contains(m.Rendered, "cannot be overridden") {
			ignored = append(ignored, m.Rendered)
		}
	}
	s.Len(ignored, 3)
}

func (s *AssemblerSuite) TestCommaJoinedProfileDefaults() {
	p := s.profile()
	p.MachineList = []string{"m1, m2", "m1"}
	p.LimitGroups = []string{"nuke,houdini"}
	s.Require().NoError(p.ValidateAndDefault())

	d, err := s.assembler.Build(s.ctx, Input{Profile: p, Server: "farm"})
	s.Require().NoError(err)
	s.Equal([]string{"m1", "m2"}, d.MachineList)
	s.Equal([]string{"nuke", "houdini"}, d.LimitGroups)
}

func (s *AssemblerSuite) TestHostOptions() {
	hostDefaults := map[string]deadline.HostJobDefaults{"maya": {TilePriority: 40, StrictErrorChecking: true}}

	d, err := s.assembler.Build(s.ctx, Input{
		Profile:      s.profile(),
		Server:       "farm",
		Host:         "maya",
		HostDefaults: hostDefaults,
		Overrides:    map[string]interface{}{"strict_error_checking": false},
	})
	s.Require().NoError(err)
	s.Require().NotNil(d.TilePriority)
	s.Equal(40, *d.TilePriority)
	s.Require().NotNil(d.StrictErrorChecking)
	s.False(*d.StrictErrorChecking)

	d, err = s.assembler.Build(s.ctx, Input{Profile: s.profile(), Server: "farm", Host: "nuke", HostDefaults: hostDefaults})
	s.Require().NoError(err)
	s.Nil(d.TilePriority)
}

func (s *AssemblerSuite) TestFarmErrorsPropagate() {
	s.resources.err = &deadline.WebserviceError{Endpoint: "http://farm/api/groups", Err: errors.New("refused")}
	_, err := s.assembler.Build(s.ctx, Input{Profile: s.profile(), Server: "farm"})
	s.Require().Error(err)
	s.True(deadline.IsWebserviceError(err))
}

func (s *AssemblerSuite) TestRequiresServer() {
	_, err := s.assembler.Build(s.ctx, Input{Profile: s.profile()})
	s.Error(err)
}

func (s *AssemblerSuite) TestEnvironmentIsCopied() {
	env := map[string]string{"AYON_PROJECT_NAME": "demo"}
	d, err := s.assembler.Build(s.ctx, Input{Profile: s.profile(), Server: "farm", Environment: env})
	s.Require().NoError(err)
	env["AYON_PROJECT_NAME"] = "changed"
	s.Equal("demo", d.Environment["AYON_PROJECT_NAME"])
}

func TestParseAdditionalInfo(t *testing.T) {
	out, err := ParseAdditionalInfo("  ")
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = ParseAdditionalInfo(`{"nested": {"a": 1}}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"nested": map[string]interface{}{"a": json.Number("1")}}, out)

	_, err = ParseAdditionalInfo(`{"a": 1} {"b": 2}`)
	assert.Error(t, err)
}

func TestAdditionalInfoKeepsExactNumbers(t *testing.T) {
	out, err := ParseAdditionalInfo(`{"BigID": 9007199254740993, "Ratio": 0.1, "Nested": {"ID": 18446744073709551615}}`)
	require.NoError(t, err)

	d := &Descriptor{ChunkSize: 1, Priority: 50, Pool: "none", Group: "none", ConcurrentTasks: 1, AdditionalJobInfo: out}
	jobInfo := d.JobInfo()

	bigID, ok := jobInfo.Get("BigID")
	require.True(t, ok)
	assert.Equal(t, "9007199254740993", bigID)
	ratio, _ := jobInfo.Get("Ratio")
	assert.Equal(t, "0.1", ratio)
	nested, _ := jobInfo.Get("Nested")
	assert.Equal(t, `{"ID":18446744073709551615}`, nested)
}

func TestFamilies(t *testing.T) {
	skip := deadline.DefaultSkipPublishJobFamilies
	assert.Equal(t, []string{deadline.FamilySubmitRender, deadline.FamilySubmitPublishJob}, Families([]string{"render", "render.farm"}, skip))
	assert.Equal(t, []string{deadline.FamilySubmitRender}, Families([]string{"render", "publish.hou"}, skip))
	assert.Equal(t, []string{deadline.FamilySubmitRender, deadline.FamilySubmitPublishJob}, Families(nil, nil))
}

func TestIsFarmInstance(t *testing.T) {
	assert.True(t, IsFarmInstance([]string{"workfile", "render.farm"}))
	assert.False(t, IsFarmInstance([]string{"workfile", "model"}))
	assert.False(t, IsFarmInstance(nil))
}
