package codec

import "fmt"

// InvalidRecordError signals a malformed on-disk record: wrong child
// count, an impossible length, or a bad flag combination. It mirrors the
// root package's InvalidRecordError; callers receive this type as is.
type InvalidRecordError struct {
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid record: %s", e.Reason)
}
