// internal/bot/retry.go
package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/executor"
)

var errUnconfirmed = errors.New("transaction not confirmed")

// attemptFunc submits one transaction.
type attemptFunc func(ctx context.Context) (*executor.Outcome, error)

// submitResult is the end state of a retry loop.
type submitResult struct {
	// Outcome of the last attempt that reached the chain, if any.
	Outcome  *executor.Outcome
	Attempts int
	Err      error
}

func (r submitResult) confirmed() bool {
	return r.Outcome != nil && r.Outcome.Confirmed
}

// submit calls attempt until one is confirmed, at most maxRetries times.
// A failed or panicking attempt counts as one unconfirmed try.
func (b *Bot) submit(ctx context.Context, side string, maxRetries int, log *zap.Logger, attempt attemptFunc) submitResult {
	var res submitResult
	if maxRetries <= 0 {
		res.Err = errors.New("no attempts allowed")
		return res
	}

	operation := func() (*executor.Outcome, error) {
		res.Attempts++
		log.Info(fmt.Sprintf("Send %s transaction attempt: %d/%d", side, res.Attempts, maxRetries))
		b.deps.Metrics.TradeAttempt(side)

		outcome, err := safeAttempt(ctx, attempt)
		if outcome != nil {
			res.Outcome = outcome
		}
		if err != nil {
			log.Debug(fmt.Sprintf("Error confirming %s transaction", side), zap.Error(err))
			return nil, err
		}
		if outcome.Confirmed {
			return outcome, nil
		}

		log.Info(fmt.Sprintf("Error confirming %s tx", side),
			zap.String("signature", outcome.Signature.String()),
			zap.Error(outcome.Err))
		return nil, errUnconfirmed
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(&backoff.ZeroBackOff{}),
		backoff.WithMaxTries(uint(maxRetries)),
		backoff.WithMaxElapsedTime(0),
	)
	res.Err = err
	return res
}

func safeAttempt(ctx context.Context, attempt attemptFunc) (outcome *executor.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = nil, fmt.Errorf("attempt panicked: %v", r)
		}
	}()
	outcome, err = attempt(ctx)
	if err == nil && outcome == nil {
		err = errors.New("executor returned no outcome")
	}
	return outcome, err
}
