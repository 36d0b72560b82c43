package carrier

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Staging collects output files under temporary names next to their final
// paths. Nothing is visible at a final path until Publish renames it there;
// Discard removes whatever was staged.
type Staging struct {
	staged map[string]string // final path -> temp path
	order  []string
}

func NewStaging() *Staging {
	return &Staging{staged: make(map[string]string)}
}

// Stage writes data to a temp file in the directory of finalPath
func (s *Staging) Stage(finalPath string, data []byte) error {
	if _, ok := s.staged[finalPath]; ok {
		return fmt.Errorf("output %s staged twice", finalPath)
	}

	tmp, err := os.CreateTemp(filepath.Dir(finalPath), "."+filepath.Base(finalPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	s.staged[finalPath] = tmp.Name()
	s.order = append(s.order, finalPath)
	return nil
}

// Publish renames every staged file to its final path
func (s *Staging) Publish() ([]string, error) {
	published := make([]string, 0, len(s.order))
	for _, finalPath := range s.order {
		if err := os.Rename(s.staged[finalPath], finalPath); err != nil {
			return published, fmt.Errorf("failed to publish %s: %w", finalPath, err)
		}
		delete(s.staged, finalPath)
		published = append(published, finalPath)
	}
	s.order = nil
	return published, nil
}

// Discard removes all files that were staged but not published
func (s *Staging) Discard() error {
	var errs []error
	for finalPath, tmp := range s.staged {
		if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
		delete(s.staged, finalPath)
	}
	s.order = nil
	return errors.Join(errs...)
}

// WriteAtomic publishes a single file through a temp file and rename
func WriteAtomic(path string, data []byte) error {
	s := NewStaging()
	if err := s.Stage(path, data); err != nil {
		return err
	}
	if _, err := s.Publish(); err != nil {
		s.Discard()
		return err
	}
	return nil
}
