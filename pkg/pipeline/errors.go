package pipeline

import "fmt"

// Kind distinguishes the terminal failure classes a request can end in.
// None are retried; every failure is reported exactly once.
type Kind int

const (
	KindUpload         Kind = iota + 1 // upload could not be accepted or stored
	KindUnsupported                    // extension outside the accepted set
	KindProcessing                     // local decode/weld failure
	KindConversion                     // external converter failure
	KindClassification                 // external classifier failure
	KindResultParse                    // classifier exited zero but output is not a result
)

func (k Kind) String() string {
	switch k {
	case KindUpload:
		return "upload_failed"
	case KindUnsupported:
		return "unsupported_format"
	case KindProcessing:
		return "processing_failed"
	case KindConversion:
		return "conversion_failed"
	case KindClassification:
		return "classification_failed"
	case KindResultParse:
		return "result_unparsable"
	default:
		return "unknown"
	}
}

// Error is the single outbound error shape. Raw carries the classifier's
// payload when the failure is a parse failure, so the caller can inspect
// what the tool actually printed.
type Error struct {
	Kind   Kind
	Detail string
	Raw    []byte
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Detail: err.Error(), Err: err}
}
