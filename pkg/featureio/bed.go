package featureio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// bedMinFields is chrom, start and end.
	bedMinFields = 3
	// bedNameField and bedHeightField are optional column positions.
	bedNameField   = 3
	bedHeightField = 4
)

// readBED parses tab-separated "chrom start end [name [height]]" lines.
// Blank lines, '#' comments and UCSC track/browser headers are skipped.
func readBED(r io.Reader) ([]Feature, error) {
	var features []Feature

	sc := bufio.NewScanner(r)
	lineNo := 0

	for sc.Scan() {
		lineNo++

		line := strings.TrimSpace(sc.Text())
		if skipBEDLine(line) {
			continue
		}

		f, err := parseBEDLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		features = append(features, f)
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan bed features: %w", err)
	}

	return features, nil
}

func skipBEDLine(line string) bool {
	return line == "" ||
		strings.HasPrefix(line, "#") ||
		strings.HasPrefix(line, "track") ||
		strings.HasPrefix(line, "browser")
}

func parseBEDLine(line string) (Feature, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < bedMinFields {
		return Feature{}, fmt.Errorf("%w: want at least %d tab-separated fields, got %d",
			ErrMalformedLine, bedMinFields, len(fields))
	}

	start, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Feature{}, fmt.Errorf("%w: start %q", ErrMalformedLine, fields[1])
	}

	end, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Feature{}, fmt.Errorf("%w: end %q", ErrMalformedLine, fields[2])
	}

	f := Feature{Chrom: fields[0], Start: start, End: end}

	if len(fields) > bedNameField && fields[bedNameField] != "." {
		f.ID = fields[bedNameField]
	}

	if len(fields) > bedHeightField {
		height, err := strconv.Atoi(fields[bedHeightField])
		if err != nil || height < 1 {
			return Feature{}, fmt.Errorf("%w: height %q", ErrMalformedLine, fields[bedHeightField])
		}

		f.Height = height
	}

	return f, nil
}
