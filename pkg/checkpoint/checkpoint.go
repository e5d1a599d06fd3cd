package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"engagedl/pkg/logger"
)

// Checkpoint records how far a download into one destination got
type Checkpoint struct {
	Destination string    `json:"destination"`
	Total       int       `json:"total"`
	NextOffset  int       `json:"next_offset"`
	BatchesDone int       `json:"batches_done"`
	Rows        int       `json:"rows"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`
	Version     int       `json:"version"`
}

// Done reports whether every identifier has been submitted
func (c *Checkpoint) Done() bool {
	return c.NextOffset >= c.Total
}

// Manager handles the checkpoint sidecar of one destination
type Manager struct {
	checkpointPath string
	destination    string
	logger         logger.Logger
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// NewManager creates a manager for the destination's sidecar under the
// user data directory.
func NewManager(destination string) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}

	checkpointsDir := filepath.Join(dataDir, "checkpoints")
	if err := os.MkdirAll(checkpointsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	key := destinationKey(destination)
	return &Manager{
		checkpointPath: filepath.Join(checkpointsDir, sidecarName(key)),
		destination:    key,
		logger:         logger.GetLogger(),
	}, nil
}

// destinationKey identifies a destination however it was spelled: file
// paths become absolute and clean, URLs are kept as given.
func destinationKey(destination string) string {
	if isURL(destination) {
		return destination
	}
	if abs, err := filepath.Abs(destination); err == nil {
		return abs
	}
	return filepath.Clean(destination)
}

// sidecarName keeps the file recognisable while the hash keeps
// destinations with the same base name apart.
func sidecarName(key string) string {
	sum := sha256.Sum256([]byte(key))

	base := unsafeChars.ReplaceAllString(filepath.Base(key), "_")
	return fmt.Sprintf("%s-%s.checkpoint.json", base, hex.EncodeToString(sum[:6]))
}

func isURL(dest string) bool {
	return strings.Contains(dest, "://")
}

// Path returns the sidecar file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create starts a fresh checkpoint for a run over total identifiers
func (m *Manager) Create(total, startOffset int) (*Checkpoint, error) {
	now := time.Now()
	checkpoint := &Checkpoint{
		Destination: m.destination,
		Total:       total,
		NextOffset:  startOffset,
		StartedAt:   now,
		LastUpdated: now,
		Version:     1,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"destination": m.destination,
		"path":        m.checkpointPath,
		"offset":      startOffset,
	})

	return checkpoint, nil
}

// Load reads the sidecar. It returns nil, nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.Destination != "" && checkpoint.Destination != m.destination {
		return nil, fmt.Errorf("checkpoint belongs to %s, not %s", checkpoint.Destination, m.destination)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"destination":  checkpoint.Destination,
		"next_offset":  checkpoint.NextOffset,
		"rows":         checkpoint.Rows,
		"last_updated": checkpoint.LastUpdated,
	})

	return &checkpoint, nil
}

// Save writes the checkpoint atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.LastUpdated = time.Now()

	file, err := os.CreateTemp(filepath.Dir(m.checkpointPath), filepath.Base(m.checkpointPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}
	tempPath := file.Name()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"destination": checkpoint.Destination,
		"next_offset": checkpoint.NextOffset,
		"rows":        checkpoint.Rows,
	})

	return nil
}

// Delete removes the sidecar
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a sidecar exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// UpdateProgress records the offset after a persisted batch
func (m *Manager) UpdateProgress(checkpoint *Checkpoint, nextOffset, batchesDone, rows int) error {
	checkpoint.NextOffset = nextOffset
	checkpoint.BatchesDone = batchesDone
	checkpoint.Rows = rows
	return m.Save(checkpoint)
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "engagedl")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "engagedl")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "engagedl")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "engagedl")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
