package codec

import "fmt"

// EncodingError reports an invalid input to an encoder. It is always a caller bug.
type EncodingError struct {
	Kind   string
	Input  string
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s %q: %s", e.Kind, e.Input, e.Reason)
}

// DecodingError reports a response that does not have the expected word layout.
type DecodingError struct {
	Word   int
	Reason string
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("decode word %d: %s", e.Word, e.Reason)
}
