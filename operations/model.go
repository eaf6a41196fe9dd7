package operations

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/evergreen-ci/deadline"
	"github.com/evergreen-ci/deadline/addon"
	"github.com/kardianos/osext"
	"github.com/mitchellh/go-homedir"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
)

// findConfigFilePath returns the settings file to use: the given path if it
// exists, otherwise the default file in the user's home directory or next to
// the binary.
func findConfigFilePath(fn string) (string, error) {
	currentBinPath, _ := osext.Executable()

	userHome, err := homedir.Dir()
	if err != nil {
		// workaround for cygwin if we're on windows but couldn't get a homedir
		if runtime.GOOS == "windows" && len(os.Getenv("HOME")) > 0 {
			userHome = os.Getenv("HOME")
		}
	}

	if fn != "" {
		if isValidPath(fn) {
			return fn, nil
		}
		absfn, _ := filepath.Abs(fn)
		if isValidPath(absfn) {
			return absfn, nil
		}
	}

	defaultFiles := []string{}
	if userHome != "" {
		defaultFiles = append(defaultFiles, filepath.Join(userHome, deadline.DefaultConfigFileName))
	}
	if currentBinPath != "" {
		defaultFiles = append(defaultFiles, filepath.Join(filepath.Dir(currentBinPath), deadline.DefaultConfigFileName))
	}
	for _, path := range defaultFiles {
		if isValidPath(path) {
			grip.WarningWhen(fn != "", "Couldn't find settings file, falling back on default.")
			return path, nil
		}
	}

	return "", errors.New("could not find settings file on the local system")
}

func isValidPath(path string) bool {
	stat, err := os.Stat(path)
	if os.IsNotExist(err) || err != nil || stat.IsDir() {
		return false
	}
	return true
}

func loadSettings(confPath string) (*deadline.Settings, error) {
	fn, err := findConfigFilePath(confPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	settings, err := deadline.NewSettings(fn)
	if err != nil {
		return nil, errors.Wrap(err, "loading settings")
	}
	return settings, nil
}

func loadAddon(confPath string) (*addon.Addon, error) {
	settings, err := loadSettings(confPath)
	if err != nil {
		return nil, err
	}
	a := addon.New(settings, nil)
	if !a.Enabled() {
		return nil, errors.Errorf("no farm servers configured in '%s'", settings.LoadedFrom)
	}
	return a, nil
}

// serverOrDefault returns the named server or the first configured one.
func serverOrDefault(a *addon.Addon, name string) (string, error) {
	if name == "" {
		name = a.DefaultServer()
	}
	if _, ok := a.Server(name); !ok {
		return "", errors.Errorf("farm server '%s' is not configured", name)
	}
	return name, nil
}
