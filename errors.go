package accpack

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRange            = errors.New("integer out of 64-bit range")
	ErrSizeLimit        = errors.New("length exceeds 32-bit limit")
	ErrUnsupportedValue = errors.New("unsupported value")
	ErrCyclicStructure  = errors.New("cyclic structure")
	ErrOutOfMemory      = errors.New("out of memory")
)

// Kind categorizes an EncodeError.
type Kind string

const (
	KindRange       Kind = "range"
	KindSizeLimit   Kind = "size_limit"
	KindUnsupported Kind = "unsupported"
	KindCyclic      Kind = "cyclic"
	KindOutOfMemory Kind = "out_of_memory"
)

var kindSentinels = map[Kind]error{
	KindRange:       ErrRange,
	KindSizeLimit:   ErrSizeLimit,
	KindUnsupported: ErrUnsupportedValue,
	KindCyclic:      ErrCyclicStructure,
	KindOutOfMemory: ErrOutOfMemory,
}

// EncodeError reports why a value could not be encoded and where in the value
// tree it happened. It matches the sentinel of its Kind with errors.Is.
type EncodeError struct {
	Kind   Kind
	Path   []string
	Detail string
	Cause  error
}

func newError(kind Kind, format string, args ...any) *EncodeError {
	return &EncodeError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func (e *EncodeError) Error() string {
	var b strings.Builder
	b.WriteString("accpack: ")
	b.WriteString(string(e.Kind))
	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

func (e *EncodeError) Unwrap() error { return e.Cause }

func (e *EncodeError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// withPath prepends seg to the path of an EncodeError on the way up.
func withPath(err error, seg string) error {
	var ee *EncodeError
	if errors.As(err, &ee) {
		ee.Path = append([]string{seg}, ee.Path...)
	}
	return err
}
