package appdirs

import (
	"os"
	"path/filepath"
)

const (
	appDirName = "propertysanta"

	DataDirEnv = "PROPERTYSANTA_DATA_DIR"
)

func DataDir() (string, error) {
	if override := os.Getenv(DataDirEnv); override != "" {
		return override, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDirName), nil
}

// PropertiesDir holds one <id>.yaml or <id>.json file per property.
func PropertiesDir(dataDir string) string {
	return filepath.Join(dataDir, "properties")
}

func ArchiveDir(dataDir string) string {
	return filepath.Join(dataDir, "archive")
}

func SettingsPath(dataDir string) string {
	return filepath.Join(dataDir, "settings.yaml")
}

func SecretsPath(dataDir string) string {
	return filepath.Join(dataDir, "secrets.enc")
}

func MasterKeyPath(dataDir string) string {
	return filepath.Join(dataDir, "master.key")
}
