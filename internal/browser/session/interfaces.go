// internal/browser/session/interfaces.go
package session

import (
	"context"

	"github.com/chromedp/chromedp"
)

// ActionExecutor runs chromedp actions against a tab. The caller's context
// supplies the deadline; the implementation supplies the CDP target.
type ActionExecutor interface {
	RunActions(ctx context.Context, actions ...chromedp.Action) error
}
