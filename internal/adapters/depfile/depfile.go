package depfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"order-consolidation/internal/domain"
	"os"
	"path/filepath"
	"strings"
)

const maxLine = 16 << 20

// Read parses one group per line: representative first, dependents after,
// comma separated. A trailing "\r" is ignored.
func Read(r io.Reader) (*domain.DependencyMap, error) {
	m := domain.NewDependencyMap()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSuffix(sc.Text(), "\r")
		if text == "" {
			return nil, &domain.FormatError{Line: line, Reason: "blank line"}
		}

		if err := m.Add(strings.Split(text, ",")); err != nil {
			var fe *domain.FormatError
			if errors.As(err, &fe) {
				return nil, &domain.FormatError{Line: line, Reason: fe.Reason}
			}
			return nil, fmt.Errorf("read dependencies: line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dependencies: %w", err)
	}
	return m, nil
}

// Write emits groups in insertion order, one line each, "\n" terminated.
func Write(w io.Writer, m *domain.DependencyMap) error {
	bw := bufio.NewWriter(w)
	for _, rep := range m.Representatives() {
		members, _ := m.Members(rep)
		if _, err := bw.WriteString(strings.Join(members, ",") + "\n"); err != nil {
			return fmt.Errorf("write dependencies: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write dependencies: %w", err)
	}
	return nil
}

func Load(path string) (*domain.DependencyMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load dependencies: %w", err)
	}
	defer f.Close()

	m, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("load dependencies %q: %w", path, err)
	}
	return m, nil
}

// Save writes to a temp file in the same directory and renames it into place
// so a reader never sees a partial file.
func Save(path string, m *domain.DependencyMap) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".deps-*")
	if err != nil {
		return fmt.Errorf("save dependencies: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, m); err != nil {
		tmp.Close()
		return fmt.Errorf("save dependencies %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save dependencies %q: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save dependencies %q: %w", path, err)
	}
	return nil
}
