// Package notify defines where a combined price table is delivered.
package notify

import (
	"context"

	"github.com/JakeFAU/agrishikyo-relay/internal/market"
)

// Notifier delivers one combined table.
type Notifier interface {
	Notify(ctx context.Context, table market.Table) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, table market.Table) error

// Notify implements Notifier.
func (f Func) Notify(ctx context.Context, table market.Table) error {
	return f(ctx, table)
}
