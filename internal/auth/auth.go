// Package auth signs the browser session into the market-data site.
package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/agrishikyo-relay/internal/browser"
	"github.com/JakeFAU/agrishikyo-relay/internal/config"
	"github.com/JakeFAU/agrishikyo-relay/internal/logging"
)

var (
	// ErrFormLayout indicates a login form lacks the expected inputs.
	ErrFormLayout = errors.New("login form layout changed")
	// ErrNotAuthenticated indicates the forms were submitted but the session
	// shows no sign of being logged in.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Positions of the controls within a form's input list.
const (
	fieldFirst    = 0
	fieldPassword = 1
	fieldSubmit   = 2
	minInputs     = fieldSubmit + 1
)

// Layout names the selectors the login flow depends on.
type Layout struct {
	// Input matches every input of the current form, in document order.
	Input string
	// Logout matches the control only a signed-in page shows.
	Logout string
}

// Authenticator performs the two-step login: account credentials followed by
// the read access code.
type Authenticator struct {
	driver browser.Driver
	creds  config.Credentials
	layout Layout
	logger *zap.Logger
}

// New builds an Authenticator. creds stay inside the Authenticator.
func New(driver browser.Driver, creds config.Credentials, layout Layout, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if layout.Input == "" {
		layout.Input = "input"
	}
	return &Authenticator{driver: driver, creds: creds, layout: layout, logger: logger.Named("auth")}
}

// Login submits both forms and verifies the session is signed in.
func (a *Authenticator) Login(ctx context.Context) error {
	a.logger.Info("signing in",
		logging.Redacted("user_id", a.creds.UserID),
		logging.Redacted("password", a.creds.Password))

	if err := a.submit(ctx, "account", []string{a.creds.UserID, a.creds.Password}); err != nil {
		return err
	}
	if err := a.driver.WaitReady(ctx, a.layout.Input); err != nil {
		return fmt.Errorf("%w: access code form: %w", ErrFormLayout, err)
	}
	if err := a.submit(ctx, "access code", []string{a.creds.ReadCode}); err != nil {
		return err
	}

	if err := a.driver.WaitVisible(ctx, a.layout.Logout); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("verify login: %w", ctxErr)
		}
		return fmt.Errorf("%w: %s not shown after login: %w", ErrNotAuthenticated, a.layout.Logout, err)
	}
	a.logger.Info("signed in")
	return nil
}

// submit fills values into the leading inputs of the current form, clicks the
// submit control and waits for the next page to load.
func (a *Authenticator) submit(ctx context.Context, form string, values []string) error {
	n, err := a.driver.Count(ctx, a.layout.Input)
	if err != nil {
		return fmt.Errorf("%s form: %w", form, err)
	}
	if n < minInputs {
		return fmt.Errorf("%w: %s form has %d inputs, need %d", ErrFormLayout, form, n, minInputs)
	}
	for i, v := range values {
		if err := a.driver.TypeAt(ctx, a.layout.Input, fieldFirst+i, v); err != nil {
			return fmt.Errorf("%s form field %d: %w", form, i, err)
		}
	}
	if err := a.driver.Submit(ctx, a.layout.Input, fieldSubmit); err != nil {
		return fmt.Errorf("%s form submit: %w", form, err)
	}
	return nil
}
