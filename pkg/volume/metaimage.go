package volume

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// header is the parsed key/value preamble of a MetaImage file
type header struct {
	dims        int
	size        [3]int
	spacing     [3]float64
	origin      [3]float64
	direction   [9]float64
	channels    int
	elementType string
	msb         bool
	compressed  bool
	dataFile    string
}

var elementSizes = map[string]int{
	"MET_UCHAR":  1,
	"MET_CHAR":   1,
	"MET_USHORT": 2,
	"MET_SHORT":  2,
	"MET_UINT":   4,
	"MET_INT":    4,
	"MET_FLOAT":  4,
	"MET_DOUBLE": 8,
}

// ReadMask reads a binary mask from a MetaImage file (.mha or .mhd). Any
// non-zero voxel of a scalar image is labelled.
func ReadMask(path string) (*Mask, error) {
	h, values, err := readMetaImage(path)
	if err != nil {
		return nil, err
	}
	if h.channels != 1 {
		return nil, errors.Errorf("mask %s has %d components per voxel, expected 1", path, h.channels)
	}

	m := &Mask{Grid: h.grid(), Data: make([]uint8, len(values))}
	for i, v := range values {
		if v != 0 {
			m.Data[i] = 1
		}
	}
	return m, nil
}

// ReadVectorField reads a 3-component displacement field from a MetaImage file
func ReadVectorField(path string) (*Field, error) {
	f, err := ReadField(path)
	if err != nil {
		return nil, err
	}
	if f.Components != 3 {
		return nil, errors.Errorf("vector field %s has %d components per voxel, expected 3", path, f.Components)
	}
	return f, nil
}

// ReadField reads a field with any number of components per voxel
func ReadField(path string) (*Field, error) {
	h, values, err := readMetaImage(path)
	if err != nil {
		return nil, err
	}
	f := &Field{Grid: h.grid(), Components: h.channels, Data: make([]float32, len(values))}
	for i, v := range values {
		f.Data[i] = float32(v)
	}
	return f, nil
}

// WriteMask writes a mask as an uncompressed MET_UCHAR MetaImage
func WriteMask(path string, m *Mask) error {
	var buf bytes.Buffer
	buf.Write(m.Data)
	return writeMetaImage(path, m.Grid, 1, "MET_UCHAR", buf.Bytes())
}

// WriteVectorField writes a 3-component displacement field
func WriteVectorField(path string, f *Field) error {
	if f.Components != 3 {
		return errors.Errorf("vector field has %d components per voxel, expected 3", f.Components)
	}
	return WriteField(path, f)
}

// WriteField writes a field as an uncompressed MET_FLOAT MetaImage
func WriteField(path string, f *Field) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, f.Data); err != nil {
		return errors.Wrap(err, "cannot encode field")
	}
	return writeMetaImage(path, f.Grid, f.Components, "MET_FLOAT", buf.Bytes())
}

func (h header) grid() Grid {
	return Grid{Size: h.size, Spacing: h.spacing, Origin: h.origin, Direction: h.direction}
}

func readMetaImage(path string) (header, []float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return header{}, nil, errors.Wrapf(err, "cannot open %s", path)
	}
	defer file.Close()

	r := bufio.NewReader(file)
	h, err := parseHeader(r)
	if err != nil {
		return header{}, nil, errors.Wrapf(err, "invalid MetaImage header in %s", path)
	}

	var data io.Reader = r
	if h.dataFile != "LOCAL" {
		raw, err := os.Open(filepath.Join(filepath.Dir(path), h.dataFile))
		if err != nil {
			return header{}, nil, errors.Wrapf(err, "cannot open data file of %s", path)
		}
		defer raw.Close()
		data = bufio.NewReader(raw)
	}
	if h.compressed {
		zr, err := zlib.NewReader(data)
		if err != nil {
			return header{}, nil, errors.Wrapf(err, "cannot decompress %s", path)
		}
		defer zr.Close()
		data = zr
	}

	values, err := decodeElements(data, h)
	if err != nil {
		return header{}, nil, errors.Wrapf(err, "cannot decode voxels of %s", path)
	}
	return h, values, nil
}

func parseHeader(r *bufio.Reader) (header, error) {
	h := header{
		channels:  1,
		spacing:   [3]float64{1, 1, 1},
		direction: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
	}
	sizeSet := false

	for {
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			return h, errors.New("header ended before ElementDataFile")
		}
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "NDims":
			if h.dims, err = strconv.Atoi(value); err != nil {
				return h, errors.Wrap(err, "NDims")
			}
			if h.dims != 3 {
				return h, errors.Errorf("only 3-D images are supported, got NDims = %d", h.dims)
			}
		case "DimSize":
			ints, err := parseInts(value, 3)
			if err != nil {
				return h, errors.Wrap(err, "DimSize")
			}
			copy(h.size[:], ints)
			sizeSet = true
		case "ElementSpacing", "ElementSize":
			if err := parseFloatsInto(h.spacing[:], value); err != nil {
				return h, errors.Wrap(err, key)
			}
		case "Offset", "Origin", "Position":
			if err := parseFloatsInto(h.origin[:], value); err != nil {
				return h, errors.Wrap(err, key)
			}
		case "TransformMatrix", "Rotation", "Orientation":
			if err := parseFloatsInto(h.direction[:], value); err != nil {
				return h, errors.Wrap(err, key)
			}
		case "ElementNumberOfChannels":
			if h.channels, err = strconv.Atoi(value); err != nil || h.channels < 1 {
				return h, errors.Errorf("invalid ElementNumberOfChannels %q", value)
			}
		case "ElementType":
			if _, ok := elementSizes[value]; !ok {
				return h, errors.Errorf("unsupported ElementType %s", value)
			}
			h.elementType = value
		case "BinaryDataByteOrderMSB", "ElementByteOrderMSB":
			h.msb = strings.EqualFold(value, "True")
		case "CompressedData":
			h.compressed = strings.EqualFold(value, "True")
		case "ElementDataFile":
			h.dataFile = value
			if !sizeSet || h.elementType == "" {
				return h, errors.New("DimSize and ElementType must precede ElementDataFile")
			}
			return h, nil
		}
	}
}

func parseInts(s string, n int) ([]int, error) {
	fields := strings.Fields(s)
	if len(fields) != n {
		return nil, errors.Errorf("expected %d values, got %q", n, s)
	}
	out := make([]int, n)
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseFloatsInto(dst []float64, s string) error {
	fields := strings.Fields(s)
	if len(fields) != len(dst) {
		return errors.Errorf("expected %d values, got %q", len(dst), s)
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}

func decodeElements(r io.Reader, h header) ([]float64, error) {
	n := h.size[0] * h.size[1] * h.size[2] * h.channels
	size := elementSizes[h.elementType]
	raw := make([]byte, n*size)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, errors.Wrapf(err, "expected %d bytes", len(raw))
	}

	var order binary.ByteOrder = binary.LittleEndian
	if h.msb {
		order = binary.BigEndian
	}

	values := make([]float64, n)
	for i := range values {
		b := raw[i*size : (i+1)*size]
		switch h.elementType {
		case "MET_UCHAR":
			values[i] = float64(b[0])
		case "MET_CHAR":
			values[i] = float64(int8(b[0]))
		case "MET_USHORT":
			values[i] = float64(order.Uint16(b))
		case "MET_SHORT":
			values[i] = float64(int16(order.Uint16(b)))
		case "MET_UINT":
			values[i] = float64(order.Uint32(b))
		case "MET_INT":
			values[i] = float64(int32(order.Uint32(b)))
		case "MET_FLOAT":
			values[i] = float64(math.Float32frombits(order.Uint32(b)))
		case "MET_DOUBLE":
			values[i] = math.Float64frombits(order.Uint64(b))
		}
	}
	return values, nil
}

func writeMetaImage(path string, g Grid, channels int, elementType string, payload []byte) error {
	if err := g.validate(); err != nil {
		return errors.Wrapf(err, "cannot write %s", path)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "ObjectType = Image\n")
	fmt.Fprintf(&buf, "NDims = 3\n")
	fmt.Fprintf(&buf, "BinaryData = True\n")
	fmt.Fprintf(&buf, "BinaryDataByteOrderMSB = False\n")
	fmt.Fprintf(&buf, "CompressedData = False\n")
	fmt.Fprintf(&buf, "TransformMatrix = %s\n", joinFloats(g.Direction[:]))
	fmt.Fprintf(&buf, "Offset = %s\n", joinFloats(g.Origin[:]))
	fmt.Fprintf(&buf, "ElementSpacing = %s\n", joinFloats(g.Spacing[:]))
	fmt.Fprintf(&buf, "DimSize = %d %d %d\n", g.Size[0], g.Size[1], g.Size[2])
	if channels > 1 {
		fmt.Fprintf(&buf, "ElementNumberOfChannels = %d\n", channels)
	}
	fmt.Fprintf(&buf, "ElementType = %s\n", elementType)
	fmt.Fprintf(&buf, "ElementDataFile = LOCAL\n")
	buf.Write(payload)

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "cannot write %s", path)
	}
	return nil
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}
