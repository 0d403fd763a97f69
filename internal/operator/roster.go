// Package operator manages the operator roster and delivers operator alerts.
package operator

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/64envy64/cargo-bot/internal/domain"
	"gopkg.in/yaml.v3"
)

// managerSlots is how many operators at the head of the roster may add or
// remove other operators.
const managerSlots = 3

type rosterFile struct {
	Operators []int64 `yaml:"operators"`
}

// Roster is the persisted list of operator user IDs.
type Roster struct {
	mu   sync.RWMutex
	path string
	ids  []int64
}

// LoadRoster reads the roster at path. A missing file is created from seed.
func LoadRoster(path string, seed []int64) (*Roster, error) {
	r := &Roster{path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		r.ids = dedupe(seed)
		if len(r.ids) > 0 {
			if err := r.save(); err != nil {
				return nil, err
			}
		}
		slog.Info("Operator roster seeded", "path", path, "count", len(r.ids))
		return r, nil
	case err != nil:
		return nil, fmt.Errorf("read roster: %w", err)
	}

	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}
	r.ids = dedupe(f.Operators)
	slog.Info("Operator roster loaded", "path", path, "count", len(r.ids))
	return r, nil
}

// IsOperator reports whether userID is on the roster.
func (r *Roster) IsOperator(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Contains(r.ids, userID)
}

// CanManage reports whether userID may add or remove operators.
func (r *Roster) CanManage(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return canManage(r.ids, userID)
}

// List returns a copy of the roster in order.
func (r *Roster) List() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.ids)
}

// Add puts userID on the roster on behalf of actor.
func (r *Roster) Add(actor, userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("operator id %d: %w", userID, domain.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !canManage(r.ids, actor) {
		return fmt.Errorf("user %d cannot manage operators: %w", actor, domain.ErrUnauthorized)
	}
	if slices.Contains(r.ids, userID) {
		return fmt.Errorf("user %d is already an operator: %w", userID, domain.ErrInvalidInput)
	}

	prev := r.ids
	r.ids = append(slices.Clone(r.ids), userID)
	if err := r.save(); err != nil {
		r.ids = prev
		return err
	}
	slog.Info("Operator added", "operator_id", userID, "by", actor)
	return nil
}

// Remove takes userID off the roster on behalf of actor.
func (r *Roster) Remove(actor, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !canManage(r.ids, actor) {
		return fmt.Errorf("user %d cannot manage operators: %w", actor, domain.ErrUnauthorized)
	}
	idx := slices.Index(r.ids, userID)
	if idx < 0 {
		return fmt.Errorf("operator %d: %w", userID, domain.ErrNotFound)
	}
	if actor == userID {
		return fmt.Errorf("operators cannot remove themselves: %w", domain.ErrInvalidInput)
	}

	prev := r.ids
	r.ids = slices.Delete(slices.Clone(r.ids), idx, idx+1)
	if err := r.save(); err != nil {
		r.ids = prev
		return err
	}
	slog.Info("Operator removed", "operator_id", userID, "by", actor)
	return nil
}

// save writes the roster atomically. Callers hold r.mu.
func (r *Roster) save() error {
	data, err := yaml.Marshal(rosterFile{Operators: r.ids})
	if err != nil {
		return fmt.Errorf("encode roster: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create roster directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".operators-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp roster: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write roster: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close roster: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace roster: %w", err)
	}
	return nil
}

func canManage(ids []int64, userID int64) bool {
	n := min(len(ids), managerSlots)
	return slices.Contains(ids[:n], userID)
}

func dedupe(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
