// Package file provides file-based persistence for workflow instances,
// timers, activity attempts and CRM records. Each record is stored as
// one JSON document under a per-entity directory.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Persistence implements the persistence.Persistence interface using
// the file system.
type Persistence struct {
	root string

	instances   *InstanceRepository
	timers      *TimerRepository
	attempts    *AttemptRepository
	meetings    *MeetingRepository
	enrollments *EnrollmentRepository
	campaigns   *CampaignRepository
	policies    *PolicyRepository
	calendar    *CalendarRepository
	tenants     *TenantRepository
}

// NewPersistence creates a file persistence rooted at the given
// directory. A "file://" prefix is stripped so the constructor accepts
// database URLs as-is.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.instances = &InstanceRepository{store: p}
	p.timers = &TimerRepository{store: p}
	p.attempts = &AttemptRepository{store: p}
	p.meetings = &MeetingRepository{store: p}
	p.enrollments = &EnrollmentRepository{store: p}
	p.campaigns = &CampaignRepository{store: p}
	p.policies = &PolicyRepository{store: p}
	p.calendar = &CalendarRepository{store: p}
	p.tenants = &TenantRepository{store: p}

	return p
}

// Close performs any necessary cleanup. For file-based persistence there is nothing to clean up.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) write(dir, id string, v any) error {
	target := filepath.Join(p.root, dir)

	err := os.MkdirAll(target, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", dir, id, err)
	}

	err = os.WriteFile(filepath.Join(target, id+".json"), data, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", dir, id, err)
	}

	return nil
}

// read loads one record; it returns false without error when the
// record does not exist.
func (p *Persistence) read(dir, id string, v any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(p.root, dir, id+".json"))
	if os.IsNotExist(err) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to read %s/%s: %w", dir, id, err)
	}

	err = json.Unmarshal(data, v)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal %s/%s: %w", dir, id, err)
	}

	return true, nil
}

func (p *Persistence) list(dir string) ([]string, error) {
	target := filepath.Join(p.root, dir)
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := fs.Glob(os.DirFS(target), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, strings.TrimSuffix(f, ".json"))
	}

	return ids, nil
}

func (p *Persistence) remove(dir, id string) error {
	err := os.Remove(filepath.Join(p.root, dir, id+".json"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s/%s: %w", dir, id, err)
	}

	return nil
}
