package pm

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// stampFile lives inside node_modules so it is removed together with
// the dependency tree.
const stampFile = ".devserve-stamp.json"

// InstallStamp records the lockfile state and runtime version that were
// last successfully installed. It is written only after a successful
// install.
type InstallStamp struct {
	LockfileHash   string    `json:"lockfileHash"`
	RuntimeVersion string    `json:"runtimeVersion"`
	Timestamp      time.Time `json:"timestamp"`
}

func stampPath(dir string) string {
	return filepath.Join(dir, "node_modules", stampFile)
}

// ReadStamp loads the install stamp for a project directory.
func ReadStamp(dir string) (*InstallStamp, error) {
	data, err := os.ReadFile(stampPath(dir))
	if err != nil {
		return nil, err
	}
	var stamp InstallStamp
	if err := json.Unmarshal(data, &stamp); err != nil {
		return nil, err
	}
	return &stamp, nil
}

// WriteStamp persists the install stamp for a project directory.
func WriteStamp(dir string, stamp InstallStamp) error {
	data, err := json.MarshalIndent(stamp, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(stampPath(dir), data, 0644)
}

// HashFile returns the SHA-256 hex digest of a file's content.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
