package kg

import (
	"errors"
	"fmt"
)

// ErrPropertiesDecode is matched by every PropertiesDecodeError.
var ErrPropertiesDecode = errors.New("properties decode failed")

// PropertiesDecodeError reports a properties fragment that is not a
// supported literal. It is local to one candidate and never fatal to a scan.
type PropertiesDecodeError struct {
	Fragment string
	Offset   int
	Reason   string
}

func (e *PropertiesDecodeError) Error() string {
	frag := e.Fragment
	if len(frag) > 60 {
		frag = frag[:60] + "..."
	}
	return fmt.Sprintf("kg: %s at offset %d in %q: %s", ErrPropertiesDecode, e.Offset, frag, e.Reason)
}

func (e *PropertiesDecodeError) Is(target error) bool { return target == ErrPropertiesDecode }
