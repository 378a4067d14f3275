package optimizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"leadscore/internal/fileutil"
	"leadscore/internal/logging"
	"leadscore/internal/services"
)

// Checkpoint is the persisted form of State. Beam entries carry no predictions.
type Checkpoint struct {
	RunID               string      `json:"runId"`
	Config              Settings    `json:"config"`
	BaselineScore       float64     `json:"baselineScore"`
	BaselineAccuracy    float64     `json:"baselineAccuracy"`
	Beam                []Candidate `json:"beam"`
	CompletedIterations int         `json:"completedIterations"`
	PreviousBestScore   float64     `json:"previousBestScore"`
	StagnantIterations  int         `json:"stagnantIterations"`
	Report              Report      `json:"report"`
	Timestamp           time.Time   `json:"timestamp"`
}

// CheckpointStore reads and writes the checkpoint file and guards it with a
// sibling lock file.
type CheckpointStore struct {
	path   string
	logger *slog.Logger
	lock   *flock.Flock
}

// NewCheckpointStore returns a store for the checkpoint at path.
func NewCheckpointStore(path string, logger *slog.Logger) *CheckpointStore {
	return &CheckpointStore{
		path:   path,
		logger: logging.NewComponentLogger(logger, "checkpoint"),
		lock:   flock.New(path + ".lock"),
	}
}

// Path returns the checkpoint file location.
func (s *CheckpointStore) Path() string { return s.path }

// Lock takes the exclusive run lock without blocking. It fails with
// services.ErrLocked when another process holds it.
func (s *CheckpointStore) Lock() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "checkpoint", "lock", "create checkpoint directory", err)
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrTransient, "checkpoint", "lock", "acquire lock", err)
	}
	if !ok {
		return services.Wrap(services.ErrLocked, "checkpoint", "lock", fmt.Sprintf("%s is in use by another run", s.path), nil)
	}
	return nil
}

// Unlock releases the run lock. It is safe to call when the lock is not held.
func (s *CheckpointStore) Unlock() error {
	if !s.lock.Locked() {
		return nil
	}
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("release checkpoint lock: %w", err)
	}
	return nil
}

// InUse reports whether another process currently holds the run lock.
func (s *CheckpointStore) InUse() (bool, error) {
	if s.lock.Locked() {
		return false, nil
	}
	if _, err := os.Stat(s.lock.Path()); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	probe := flock.New(s.lock.Path())
	ok, err := probe.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe checkpoint lock: %w", err)
	}
	if ok {
		_ = probe.Unlock()
		return false, nil
	}
	return true, nil
}

// Save writes state atomically, stripping cached predictions from the beam.
func (s *CheckpointStore) Save(state State, settings Settings) error {
	beam := make([]Candidate, len(state.Beam))
	for i, c := range state.Beam {
		beam[i] = c.stripped()
	}
	cp := Checkpoint{
		RunID:               state.RunID,
		Config:              settings,
		BaselineScore:       state.BaselineScore,
		BaselineAccuracy:    state.BaselineAccuracy,
		Beam:                beam,
		CompletedIterations: state.CompletedIterations,
		PreviousBestScore:   state.PreviousBestScore,
		StagnantIterations:  state.StagnantIterations,
		Report:              state.Report,
		Timestamp:           time.Now().UTC(),
	}
	if err := fileutil.WriteJSONAtomic(s.path, cp); err != nil {
		return services.Wrap(services.ErrTransient, "checkpoint", "save", s.path, err)
	}
	return nil
}

// Load reads the checkpoint metadata. A missing file returns (nil, nil). An
// unreadable or invalid checkpoint is logged and also returns (nil, nil) so
// the caller starts fresh.
func (s *CheckpointStore) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		s.warnDiscarded("read failed", err)
		return nil, nil
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		s.warnDiscarded("invalid json", err)
		return nil, nil
	}
	if len(cp.Beam) == 0 {
		s.warnDiscarded("empty beam", nil)
		return nil, nil
	}
	return &cp, nil
}

// Delete removes the checkpoint file. A missing file is not an error.
func (s *CheckpointStore) Delete() error {
	if err := fileutil.RemoveIfExists(s.path); err != nil {
		return services.Wrap(services.ErrTransient, "checkpoint", "delete", s.path, err)
	}
	return nil
}

func (s *CheckpointStore) warnDiscarded(reason string, err error) {
	attrs := []logging.Attr{
		logging.String("path", s.path),
		logging.String("reason", reason),
		logging.String(logging.FieldErrorHint, "delete the checkpoint file if it keeps failing to load"),
		logging.String(logging.FieldImpact, "run starts fresh from the baseline prompt"),
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	logging.WarnWithContext(s.logger, "ignoring unusable checkpoint", "checkpoint_invalid", attrs...)
}
