package registration

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Stage is one of the three registration stages
type Stage string

const (
	StageRigid      Stage = "rigid"
	StageSimilarity Stage = "similarity"
	StageSpline     Stage = "spline"
)

// ModifyTransformation rewrites an inverted elastix transform so that it
// stands alone: the initial transform is dropped and pixels outside the
// image become -4, the background of a level set. An inverted rigid
// transform is also resampled onto the moving image lattice.
func ModifyTransformation(in, out string, stage Stage, size [3]int, spacing [3]float64) error {
	switch stage {
	case StageRigid, StageSimilarity, StageSpline:
	default:
		return errors.Errorf("unsupported transformation %q, use rigid, similarity or spline", stage)
	}

	file, err := os.Open(in)
	if err != nil {
		return errors.Wrapf(err, "cannot open transform %s", in)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		switch parameterName(line) {
		case "InitialTransformParametersFileName":
			line = `(InitialTransformParametersFileName "NoInitialTransform")`
		case "DefaultPixelValue":
			line = "(DefaultPixelValue -4)"
		case "Size":
			if stage == StageRigid {
				line = fmt.Sprintf("(Size %d %d %d)", size[0], size[1], size[2])
			}
		case "Spacing":
			if stage == StageRigid {
				line = fmt.Sprintf("(Spacing %g %g %g)", spacing[0], spacing[1], spacing[2])
			}
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "cannot read transform %s", in)
	}

	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(out, []byte(content), 0644); err != nil {
		return errors.Wrapf(err, "cannot write transform %s", out)
	}
	return nil
}

// parameterName returns Name for a line "(Name values...)"
func parameterName(line string) string {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "(") {
		return ""
	}
	fields := strings.Fields(strings.TrimPrefix(line, "("))
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimSuffix(fields[0], ")")
}
