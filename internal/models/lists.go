package models

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// readListLines returns the non-empty, right-trimmed lines of a list file
func readListLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open list %s", path)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "cannot read list %s", path)
	}
	if len(lines) == 0 {
		return nil, errors.Errorf("list %s is empty", path)
	}
	return lines, nil
}

// LoadMorphologyList parses a morphology image list. The first line is the
// folder holding the masks, every following line a mask name optionally
// followed by the knee laterality. Derived files go to a "morphology"
// folder next to the input folder, which is created when missing.
func LoadMorphologyList(path string) ([]Subject, error) {
	lines, err := readListLines(path)
	if err != nil {
		return nil, err
	}

	inputFolder := filepath.Clean(lines[0])
	if info, err := os.Stat(inputFolder); err != nil || !info.IsDir() {
		return nil, errors.Errorf("the input folder %s does not exist", inputFolder)
	}

	morphologyFolder := filepath.Join(filepath.Dir(inputFolder), "morphology")
	if err := os.MkdirAll(morphologyFolder, 0755); err != nil {
		return nil, errors.Wrap(err, "cannot create morphology folder")
	}

	subjects := make([]Subject, 0, len(lines)-1)
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		s := Subject{
			InputFolder:      inputFolder,
			MaskName:         fields[0],
			MorphologyFolder: morphologyFolder,
		}
		if len(fields) > 1 {
			if s.Laterality, err = ParseLaterality(fields[1]); err != nil {
				return nil, errors.Wrapf(err, "mask %s", s.MaskName)
			}
		}
		if _, err := os.Stat(s.MaskPath()); err != nil {
			return nil, errors.Errorf("the file %s does not exist", s.MaskPath())
		}
		subjects = append(subjects, s)
	}
	return subjects, nil
}

// LoadReferenceList parses the list of the reference search. The first line
// is the parent folder; then "r <name>" names the starting reference and
// "m <name>" each cohort member. The returned seed is nil when no "r" line
// is present.
func LoadReferenceList(path string) ([]CohortMember, *CohortMember, error) {
	lines, err := readListLines(path)
	if err != nil {
		return nil, nil, err
	}

	parent := filepath.Clean(lines[0])
	if info, err := os.Stat(parent); err != nil || !info.IsDir() {
		return nil, nil, errors.Errorf("the parent folder %s does not exist", parent)
	}

	var members []CohortMember
	var seed *CohortMember
	for _, line := range lines[1:] {
		if len(line) < 3 || line[1] != ' ' {
			return nil, nil, errors.Errorf("malformed line %q, expected \"r <name>\" or \"m <name>\"", line)
		}
		m := CohortMember{Folder: parent, Name: strings.TrimSpace(line[2:])}
		if _, err := os.Stat(m.ImagePath()); err != nil {
			return nil, nil, errors.Errorf("the file %s does not exist", m.ImagePath())
		}
		switch line[0] {
		case 'r':
			ref := m
			seed = &ref
		case 'm':
			members = append(members, m)
		default:
			return nil, nil, errors.Errorf("image type must be 'r' or 'm', got %q", line[0])
		}
	}
	if len(members) == 0 {
		return nil, nil, errors.Errorf("list %s has no moving images", path)
	}
	return members, seed, nil
}
