// Package actions applies one remote action to one target. Every chain
// follows the same shape: locate, trigger, await the surface, fill, submit,
// confirm or close. No chain returns an error; failures become outcomes.
package actions

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kolangzi/naver-automation/internal/browser"
	"github.com/kolangzi/naver-automation/internal/governor"
	"github.com/kolangzi/naver-automation/internal/types"
)

// DefaultPopupTimeout bounds the wait for the follow-request popup.
const DefaultPopupTimeout = 5 * time.Second

// Result is the outcome of one action chain.
type Result struct {
	Outcome types.Outcome
	Reason  string
}

func succeeded(reason string) Result { return Result{Outcome: types.OutcomeSucceeded, Reason: reason} }
func skipped(reason string) Result   { return Result{Outcome: types.OutcomeSkipped, Reason: reason} }
func failed(reason string) Result    { return Result{Outcome: types.OutcomeFailed, Reason: reason} }

// failedErr turns an unexpected error into a failed outcome. A missing
// frame is reported as such so the summary can tell it apart.
func failedErr(step string, err error) Result {
	if errors.Is(err, browser.ErrFrameNotFound) {
		return failed("frame not found")
	}
	return failed(step + ": " + err.Error())
}

// Executor runs action chains against one page.
type Executor struct {
	page         browser.Page
	pacer        *governor.Pacer
	logger       *zap.Logger
	popupTimeout time.Duration
}

// NewExecutor creates an executor. A zero popupTimeout uses
// DefaultPopupTimeout.
func NewExecutor(page browser.Page, pacer *governor.Pacer, logger *zap.Logger, popupTimeout time.Duration) *Executor {
	if popupTimeout <= 0 {
		popupTimeout = DefaultPopupTimeout
	}
	return &Executor{page: page, pacer: pacer, logger: logger, popupTimeout: popupTimeout}
}

func hasClassToken(class, token string) bool {
	for _, f := range strings.Fields(class) {
		if f == token {
			return true
		}
	}
	return false
}
