package deadline

import "time"

const (
	ClientVersion = "2025-10-18"

	// DefaultConfigFileName is the settings file looked up in the user's home
	// directory and next to the binary when no path is given.
	DefaultConfigFileName = ".deadline.yml"

	// NoneValue is the farm's own name for "no pool" and "no group".
	NoneValue = "none"

	DefaultServerTimeout = 30 * time.Second

	DefaultChunkSize = 1
	MinChunkSize     = 1
	MaxChunkSize     = 1000
	DefaultPriority  = 50
	MinPriority      = 0
	MaxPriority      = 100

	PublishJobStateActive    = "active"
	PublishJobStateSuspended = "suspended"
)

// Keys under which collected data is stored on publish instances and on the
// publish context.
const (
	JobInfoDataKey = "deadline"
	ServerDataKey  = "deadlineServer"
	JobEnvDataKey  = "deadlineJobEnv"
)

// Family labels attached to instances that carry a job descriptor.
const (
	FamilySubmitRender     = "deadline.submit.render"
	FamilySubmitPublishJob = "deadline.submit.publish.job"
)

// Setting names of the publish plugins, used as keys in the "publish" section
// of the settings and as attribute definition owners.
const (
	CollectJobInfoPlugin        = "CollectJobInfo"
	CollectJobEnvVarsPlugin     = "CollectDeadlineJobEnvVars"
	CollectServerURLToJobPlugin = "CollectAYONServerUrlToFarmJob"
)

// FarmFamilies are the instance families that are rendered on the farm.
var FarmFamilies = []string{
	"render",
	"render.farm",
	"render.frames_farm",
	"prerender",
	"prerender.farm",
	"prerender.frames_farm",
	"renderlayer",
	"imagesequence",
	"image",
	"vrayscene",
	"maxrender",
	"arnold_rop",
	"mantra_rop",
	"karma_rop",
	"vray_rop",
	"redshift_rop",
	"usdrender",
	"publish.hou",
}

// DefaultSkipPublishJobFamilies never get a downstream publish job; they
// publish themselves once the render finishes.
var DefaultSkipPublishJobFamilies = []string{
	"publish.hou",
	"remote_publish_on_farm",
}

// DefaultJobEnvKeys is the allow-list of process environment variables that
// are copied into farm jobs.
var DefaultJobEnvKeys = []string{
	"AYON_BUNDLE_NAME",
	"AYON_DEFAULT_SETTINGS_VARIANT",
	"AYON_PROJECT_NAME",
	"AYON_FOLDER_PATH",
	"AYON_TASK_NAME",
	"AYON_APP_NAME",
	"AYON_WORKDIR",
	"AYON_LOG_NO_COLORS",
	"AYON_IN_TESTS",
	"IS_TEST",

	"FTRACK_API_KEY",
	"FTRACK_API_USER",
	"FTRACK_SERVER",
	"PYBLISHPLUGINPATH",

	"OPENPYPE_SG_USER",
}

// DefaultServerURLEnvKeys are copied by the server URL collector, which is
// disabled unless turned on in the settings.
var DefaultServerURLEnvKeys = []string{
	"AYON_SERVER_URL",
	"AYON_API_KEY",
}
