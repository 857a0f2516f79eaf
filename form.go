package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// FormState names the steps of the order form workflow.
type FormState int

const (
	FormEmpty FormState = iota
	FormFilled
	Submitted
	SubmitError
	Confirmed
)

func (s FormState) String() string {
	switch s {
	case FormEmpty:
		return "FormEmpty"
	case FormFilled:
		return "FormFilled"
	case Submitted:
		return "Submitted"
	case SubmitError:
		return "Error"
	case Confirmed:
		return "Confirmed"
	default:
		return fmt.Sprintf("FormState(%d)", int(s))
	}
}

var (
	ErrStuckSubmission = errors.New("order submission did not clear the error alert")
	// ErrStaleForm is returned when a workflow step is invoked on a state value
	// that has already moved on.
	ErrStaleForm = errors.New("order form state already used")
)

var errAlertShown = errors.New("error alert shown after submit")

// FormPolicy bounds the waits of the form workflow. MaxAttempts, Delay and
// Timeout govern the re-click loop on the order button; ModalWait is how long
// DismissModal waits for the modal to render before treating it as absent.
type FormPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Timeout     time.Duration
	ModalWait   time.Duration
}

// SubmissionError reports a submission that never reached the confirmation view.
type SubmissionError struct {
	OrderNumber string
	Attempts    int
	Err         error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("order %s stuck after %d submit attempts: %v", e.OrderNumber, e.Attempts, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func (e *SubmissionError) Is(target error) bool { return target == ErrStuckSubmission }

// formDriver carries what every state needs to talk to the page.
type formDriver struct {
	page      Page
	selectors SelectorConfig
	policy    FormPolicy
	logger    *zap.Logger
}

type stateGuard struct{ spent bool }

func (g *stateGuard) use() error {
	if g.spent {
		return ErrStaleForm
	}
	g.spent = true
	return nil
}

// OrderForm is the empty order form.
type OrderForm struct {
	stateGuard
	d *formDriver
}

// FilledForm holds an order whose fields are set but not yet submitted.
type FilledForm struct {
	stateGuard
	d     *formDriver
	order Order
}

// ConfirmedOrder is the confirmation view. A receipt can only be captured here.
type ConfirmedOrder struct {
	stateGuard
	d        *formDriver
	order    Order
	attempts int
}

func NewOrderForm(page Page, selectors SelectorConfig, policy FormPolicy, logger *zap.Logger) *OrderForm {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &OrderForm{d: &formDriver{
		page:      page,
		selectors: selectors,
		policy:    policy,
		logger:    logger,
	}}
}

// DismissModal clicks the interstitial dismiss button if it shows up within
// the policy's modal wait.
func (f *OrderForm) DismissModal(ctx context.Context) error {
	if f.spent {
		return ErrStaleForm
	}

	var shown bool
	var err error
	if f.d.policy.ModalWait > 0 {
		shown, err = f.d.page.WaitFor(ctx, f.d.selectors.ModalDismissButton, f.d.policy.ModalWait)
	} else {
		shown, err = f.d.page.Has(ctx, f.d.selectors.ModalDismissButton)
	}
	if err != nil {
		return fmt.Errorf("failed to look for modal: %w", err)
	}
	if !shown {
		f.d.logger.Debug("No modal to dismiss")
		return nil
	}
	return f.d.page.Click(ctx, f.d.selectors.ModalDismissButton)
}

// Fill sets head, body, legs and address from the order.
func (f *OrderForm) Fill(ctx context.Context, order Order) (*FilledForm, error) {
	if err := f.use(); err != nil {
		return nil, err
	}

	sel := f.d.selectors
	if err := f.d.page.SelectOption(ctx, sel.HeadSelect, order.Head()); err != nil {
		return nil, fmt.Errorf("failed to select head %q: %w", order.Head(), err)
	}
	if err := f.d.page.Click(ctx, sel.BodyRadioPrefix+order.Body()); err != nil {
		return nil, fmt.Errorf("failed to select body %q: %w", order.Body(), err)
	}
	if err := f.d.page.Fill(ctx, sel.LegsInput, order.Legs()); err != nil {
		return nil, fmt.Errorf("failed to enter legs %q: %w", order.Legs(), err)
	}
	if err := f.d.page.Fill(ctx, sel.AddressInput, order.Address()); err != nil {
		return nil, fmt.Errorf("failed to enter address: %w", err)
	}

	f.d.logger.Debug("Form filled", zap.String("order", order.Number()), zap.Stringer("state", FormFilled))
	return &FilledForm{d: f.d, order: order}, nil
}

// Submit previews the robot and places the order. While the error alert is
// shown the order button is clicked again, without re-filling the form, until
// the policy's attempt cap or timeout is reached.
func (f *FilledForm) Submit(ctx context.Context) (*ConfirmedOrder, error) {
	if err := f.use(); err != nil {
		return nil, err
	}

	sel := f.d.selectors
	if err := f.d.page.Click(ctx, sel.PreviewButton); err != nil {
		return nil, fmt.Errorf("failed to preview robot: %w", err)
	}

	parent := ctx
	if f.d.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.d.policy.Timeout)
		defer cancel()
	}

	attempts := 0
	var clickErr error
	submit := func() error {
		attempts++
		if err := f.d.page.Click(ctx, sel.OrderButton); err != nil {
			clickErr = err
			return backoff.Permanent(err)
		}
		shown, err := f.d.page.Has(ctx, sel.ErrorAlert)
		if err != nil {
			clickErr = err
			return backoff.Permanent(err)
		}
		if shown {
			return errAlertShown
		}
		return nil
	}

	notify := func(err error, next time.Duration) {
		f.d.logger.Debug("Submit failed, clicking order again",
			zap.String("order", f.order.Number()),
			zap.Stringer("state", SubmitError),
			zap.Int("attempt", attempts),
			zap.Duration("next", next))
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(f.d.policy.Delay), uint64(f.d.policy.MaxAttempts-1)),
		ctx,
	)

	if err := backoff.RetryNotify(submit, policy, notify); err != nil {
		switch {
		case parent.Err() != nil:
			return nil, parent.Err()
		case clickErr != nil && ctx.Err() == nil:
			return nil, fmt.Errorf("failed to submit order: %w", clickErr)
		default:
			return nil, &SubmissionError{OrderNumber: f.order.Number(), Attempts: attempts, Err: err}
		}
	}

	f.d.logger.Debug("Order confirmed",
		zap.String("order", f.order.Number()),
		zap.Stringer("state", Confirmed),
		zap.Int("attempts", attempts))
	return &ConfirmedOrder{d: f.d, order: f.order, attempts: attempts}, nil
}

// Attempts is the number of order clicks it took to reach confirmation.
func (c *ConfirmedOrder) Attempts() int { return c.attempts }

func (c *ConfirmedOrder) Order() Order { return c.order }
