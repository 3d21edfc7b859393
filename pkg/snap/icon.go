package snap

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const svgNamespace = "http://www.w3.org/2000/svg"

func checkIcon(_ context.Context, r *run) error {
	if r.in.SVGIcon == nil {
		return nil
	}
	if err := ValidateIcon(*r.in.SVGIcon, r.opts.maxIconSize); err != nil {
		return &Error{
			Kind:  ErrIconValidation,
			Stage: StageIcon,
			Field: r.in.SVGIcon.Path,
			Msg:   err.Error(),
			Err:   err,
		}
	}
	return nil
}

// ValidateIcon checks that icon is an .svg file of at most maxSize bytes whose
// contents are a well-formed SVG document.
func ValidateIcon(icon File, maxSize int) error {
	if !strings.HasSuffix(icon.Path, ".svg") {
		return errors.New(`Expected snap icon to end in ".svg".`)
	}
	if len(icon.Value) > maxSize {
		return fmt.Errorf("The specified SVG icon exceeds the maximum size of %s.", formatSize(maxSize))
	}
	if err := parseSVG(icon.Value); err != nil {
		return &invalidSVGError{err: err}
	}
	return nil
}

// formatSize prints whole kilobytes as "100kb" and anything else in bytes.
func formatSize(n int) string {
	if n >= 1000 && n%1000 == 0 {
		return fmt.Sprintf("%dkb", n/1000)
	}
	return fmt.Sprintf("%d bytes", n)
}

type invalidSVGError struct {
	err error
}

func (e *invalidSVGError) Error() string { return "Snap icon must be a valid SVG." }

func (e *invalidSVGError) Unwrap() error { return e.err }

// parseSVG reads the whole document, so trailing content after the root is
// rejected too. Document type declarations are never accepted.
func parseSVG(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true

	seenRoot := false
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.Directive:
			return errors.New("document type declarations are not allowed")
		case xml.StartElement:
			depth++
			if depth > 1 {
				continue
			}
			if seenRoot {
				return errors.New("more than one root element")
			}
			seenRoot = true
			if t.Name.Local != "svg" || (t.Name.Space != "" && t.Name.Space != svgNamespace) {
				return fmt.Errorf("root element is <%s>, not <svg>", t.Name.Local)
			}
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return errors.New("text outside the root element")
			}
		}
	}

	if !seenRoot {
		return errors.New("no root element")
	}
	return nil
}
