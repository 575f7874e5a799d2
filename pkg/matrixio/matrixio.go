// Package matrixio reads and writes the matrix files exchanged between
// pipeline stages: whitespace-delimited text rounded to two decimals, and
// lossless .npy companions.
package matrixio

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/kshedden/gonpy"
	"github.com/pkg/errors"
)

// WriteTxt writes one row per line with every value formatted as "%0.2f ".
// Reading the file back reproduces the values rounded to two decimals.
func WriteTxt(path string, rows [][]float64) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create %s", path)
	}
	w := bufio.NewWriter(file)
	for _, row := range rows {
		for _, v := range row {
			fmt.Fprintf(w, "%0.2f ", v)
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return errors.Wrapf(err, "cannot write %s", path)
	}
	return errors.Wrapf(file.Close(), "cannot close %s", path)
}

// ReadTxt reads a whitespace-delimited matrix; empty lines are skipped
func ReadTxt(path string) ([][]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %s", path)
	}
	defer file.Close()

	var rows [][]float64
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		row := make([]float64, len(fields))
		for i, f := range fields {
			if row[i], err = strconv.ParseFloat(f, 64); err != nil {
				return nil, errors.Wrapf(err, "%s:%d", path, line)
			}
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}
	return rows, nil
}

// NPYPath is the lossless companion of a text matrix file
func NPYPath(txt string) string {
	return strings.TrimSuffix(txt, filepath.Ext(txt)) + ".npy"
}

// Save writes rows as text and, when withNPY is set, as a .npy companion.
// Without withNPY a companion left by an earlier run is removed so that
// Load never returns stale values.
func Save(path string, rows [][]float64, withNPY bool) error {
	if err := WriteTxt(path, rows); err != nil {
		return err
	}
	if withNPY && len(rows) > 0 {
		return WriteNPY(NPYPath(path), rows)
	}
	if err := os.Remove(NPYPath(path)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing stale %s", NPYPath(path))
	}
	return nil
}

// Load reads a matrix written by Save, preferring the .npy companion.
// A missing file is reported with an error matching fs.ErrNotExist.
func Load(path string) ([][]float64, error) {
	if _, err := os.Stat(NPYPath(path)); err == nil {
		return ReadNPY(NPYPath(path))
	}
	return ReadTxt(path)
}

// WriteColumn saves a 1-D array with one value per line
func WriteColumn(path string, values []float64, withNPY bool) error {
	rows := make([][]float64, len(values))
	for i, v := range values {
		rows[i] = []float64{v}
	}
	return Save(path, rows, withNPY)
}

// ReadColumn loads a file written by WriteColumn
func ReadColumn(path string) ([]float64, error) {
	rows, err := Load(path)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != 1 {
			return nil, errors.Errorf("%s:%d has %d values, expected 1", path, i+1, len(row))
		}
		out[i] = row[0]
	}
	return out, nil
}

// WritePoints saves an n x 3 matrix of points
func WritePoints(path string, points []r3.Vector, withNPY bool) error {
	return Save(path, pointRows(points), withNPY)
}

// ReadPoints loads an n x 3 matrix of points
func ReadPoints(path string) ([]r3.Vector, error) {
	rows, err := Load(path)
	if err != nil {
		return nil, err
	}
	points := make([]r3.Vector, len(rows))
	for i, row := range rows {
		if len(row) != 3 {
			return nil, errors.Errorf("%s:%d has %d values, expected 3", path, i+1, len(row))
		}
		points[i] = r3.Vector{X: row[0], Y: row[1], Z: row[2]}
	}
	return points, nil
}

// pointRows lays points out as rows of x, y, z
func pointRows(points []r3.Vector) [][]float64 {
	rows := make([][]float64, len(points))
	for i, p := range points {
		rows[i] = []float64{p.X, p.Y, p.Z}
	}
	return rows
}

// WriteNPY writes a rectangular matrix as a float64 .npy file
func WriteNPY(path string, rows [][]float64) error {
	r := len(rows)
	c := 0
	if r > 0 {
		c = len(rows[0])
	}
	data := make([]float64, 0, r*c)
	for i, row := range rows {
		if len(row) != c {
			return errors.Errorf("row %d has %d values, expected %d", i, len(row), c)
		}
		data = append(data, row...)
	}

	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create %s", path)
	}
	w.Shape = []int{r, c}
	if err := w.WriteFloat64(data); err != nil {
		return errors.Wrapf(err, "cannot write %s", path)
	}
	return nil
}

// ReadNPY reads a 1-D or 2-D float64 .npy file; a 1-D array becomes a
// single column
func ReadNPY(path string) ([][]float64, error) {
	rd, err := gonpy.NewFileReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %s", path)
	}
	data, err := rd.GetFloat64()
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}

	var r, c int
	switch len(rd.Shape) {
	case 1:
		r, c = rd.Shape[0], 1
	case 2:
		r, c = rd.Shape[0], rd.Shape[1]
	default:
		return nil, errors.Errorf("%s has %d dimensions, expected 1 or 2", path, len(rd.Shape))
	}
	if len(data) != r*c {
		return nil, errors.Errorf("%s holds %d values for shape %v", path, len(data), rd.Shape)
	}

	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = make([]float64, c)
		for j := range rows[i] {
			if rd.ColumnMajor {
				rows[i][j] = data[j*r+i]
			} else {
				rows[i][j] = data[i*c+j]
			}
		}
	}
	return rows, nil
}
