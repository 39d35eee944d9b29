package osv

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrMissingField reports a required member that is absent or null.
	ErrMissingField = errors.New("missing required field")

	// ErrUnknownVariant reports a tag outside a closed set: an ecosystem,
	// severity type, range type or event kind.
	ErrUnknownVariant = errors.New("unknown variant")

	errTrailingData = errors.New("trailing data after advisory document")
)

func missing(field string) error {
	return fmt.Errorf("%w %q", ErrMissingField, field)
}

func unknown(kind, tag string) error {
	return fmt.Errorf("%w %q for %s", ErrUnknownVariant, tag, kind)
}

// ParseError is returned for a document that cannot be read or does not match
// the schema. Path is empty when the document did not come from a file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return "parse advisory: " + e.Err.Error()
	}
	return fmt.Sprintf("parse advisory %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes exactly one advisory document from r. Anything other than
// whitespace after the document is an error.
func Parse(r io.Reader) (*Advisory, error) {
	dec := json.NewDecoder(r)
	var adv Advisory
	if err := dec.Decode(&adv); err != nil {
		return nil, &ParseError{Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &ParseError{Err: errTrailingData}
	}
	return &adv, nil
}

// ParseFile opens path and decodes it with Parse. Errors, including a failure
// to open the file, are returned as a *ParseError carrying path.
func ParseFile(path string) (*Advisory, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the discovered advisory tree
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	adv, err := Parse(bufio.NewReader(f))
	_ = f.Close()
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
			return nil, pe
		}
		return nil, &ParseError{Path: path, Err: err}
	}
	return adv, nil
}
