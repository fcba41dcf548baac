// Package dialog defines the user-interaction contract consumed by the
// location manager, with a console implementation and a scripted test
// double.
package dialog

import (
	"context"

	"github.com/sparklabs/sparkfs/internal/storage"
)

// Prompter is the user-interaction contract. Both methods distinguish
// decline/cancel (a neutral result) from failure.
type Prompter interface {
	// Confirm asks the user a yes/no question. A decline is (false, nil).
	Confirm(ctx context.Context, message, okLabel, title string) (bool, error)

	// PickDirectory asks the user to choose a directory, suggesting a
	// name for a new one. Cancellation is (nil, nil).
	PickDirectory(ctx context.Context, suggestedName string) (storage.Entry, error)
}
