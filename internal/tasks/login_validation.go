package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/cartwatch/internal/browser"
	"github.com/xkilldash9x/cartwatch/internal/config"
	"github.com/xkilldash9x/cartwatch/internal/gate"
	"github.com/xkilldash9x/cartwatch/internal/locator"
	"github.com/xkilldash9x/cartwatch/internal/rules"
)

const LoginValidationName = "login-validation"

var errNoCredentials = errors.New("login credentials are not configured")

// LoginValidation signs in and checks the displayed profile name against
// the forbidden letters.
type LoginValidation struct {
	deps   *Deps
	cfg    config.LoginValidationConfig
	window *gate.Window
}

func (t *LoginValidation) Name() string         { return LoginValidationName }
func (t *LoginValidation) Window() *gate.Window { return t.window }

func (t *LoginValidation) Run(ctx context.Context, drv browser.Driver) (string, error) {
	if t.cfg.Email == "" || t.cfg.Password == "" {
		return "", errNoCredentials
	}
	f := t.deps.flow(t.Name(), drv)

	if err := f.home(ctx); err != nil {
		return "", err
	}
	nav, err := f.find(ctx, drv, accountNav, locator.Interactive())
	if err != nil {
		return "", fmt.Errorf("sign-in entry: %w", err)
	}
	if err := f.activate(ctx, nav, "account menu"); err != nil {
		return "", err
	}
	if err := f.settle(ctx); err != nil {
		return "", err
	}

	if _, err := f.fill(ctx, emailField, t.cfg.Email); err != nil {
		return "", fmt.Errorf("email step: %w", err)
	}
	if btn, ok := f.optional(ctx, drv, continueButton, locator.Interactive()); ok {
		if err := f.activate(ctx, btn, "continue"); err != nil {
			return "", err
		}
		if err := f.settle(ctx); err != nil {
			return "", err
		}
	}
	if err := f.blocked(ctx); err != nil {
		return "", err
	}

	pw, err := f.fill(ctx, passwordField, t.cfg.Password)
	if err != nil {
		return "", fmt.Errorf("password step: %w", err)
	}
	if btn, ok := f.optional(ctx, drv, signInSubmit, locator.Interactive()); ok {
		err = f.activate(ctx, btn, "sign in")
	} else {
		err = pw.Submit(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("sign in: %w", err)
	}
	if err := f.settle(ctx); err != nil {
		return "", err
	}
	if err := f.blocked(ctx); err != nil {
		return "", err
	}

	label, err := f.find(ctx, drv, accountLabel, locator.RequireText())
	if err != nil {
		return "", fmt.Errorf("account label: %w", err)
	}
	text, err := label.Text(ctx)
	if err != nil {
		return "", fmt.Errorf("account label: %w", err)
	}
	if rules.SignedOut(text) {
		return "", fmt.Errorf("still signed out after submitting credentials (label %q)", text)
	}
	name := rules.ProfileName(text)
	f.step(ctx, "profile name", true, name)

	if hits := rules.ForbiddenLetters(name, t.cfg.ForbiddenLetters); len(hits) > 0 {
		return "", fmt.Errorf("%w: profile name %q contains %s", ErrRuleViolated, name, strings.Join(hits, ", "))
	}
	return fmt.Sprintf("signed in as %q", name), nil
}
