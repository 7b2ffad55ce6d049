package actions

import (
	"context"

	"github.com/askesis/askesis/internal/model"
)

// ResetApplicationData wipes all habits, logs, and settings and returns the
// app to its just-installed state. It bypasses the boot lock deliberately —
// a stuck or unwanted sync key should always be escapable (spec §4.7).
func (a *ActionContext) ResetApplicationData(ctx context.Context) error {
	return a.mutate(ctx, false, func() (*model.Date, error) {
		fresh := model.NewAppState()
		*a.state = *fresh
		return nil, nil
	})
}
