package node

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/google/uuid"
)

// configDirName is the per-user config directory segment this agent owns.
const configDirName = "rhizos"

// nodeIDFileName is the plaintext file holding the persisted node identity.
const nodeIDFileName = "node_id"

// loadOrCreateNodeID reads the persisted node_id file, creating it with a
// fresh v4 UUID on first run. The file lives under the user's config
// directory, e.g. ${user_config}/rhizos/node_id.
func loadOrCreateNodeID() (string, error) {
	path, err := nodeIDPath()
	if err != nil {
		logging.Log.WithError(err).Warn("failed to locate config directory for node_id")
		return uuid.NewString(), nil
	}

	if data, err := os.ReadFile(path); err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id, nil
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logging.Log.WithError(err).Warn("failed to create config directory for node_id")
		return id, nil
	}
	if err := os.WriteFile(path, []byte(id), 0o644); err != nil {
		logging.Log.WithError(err).Warn("failed to persist node_id")
	}
	return id, nil
}

func nodeIDPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configDirName, nodeIDFileName), nil
}
