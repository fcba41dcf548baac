package location

import "fmt"

// NameExhaustedError is returned by CreateFolder when every candidate name
// up to the suffix bound already exists.
type NameExhaustedError struct {
	Base     string
	Attempts int
}

func (e *NameExhaustedError) Error() string {
	return fmt.Sprintf("no available folder name for %q after %d attempts", e.Base, e.Attempts)
}
