package captcha

import (
	"context"
	"fmt"
	"strings"

	"github.com/JustJay7/court-case-aggregator/internal/apperr"
	"github.com/JustJay7/court-case-aggregator/pkg/logger"
)

// DefaultMaxAttempts is used when a Gate has no explicit bound.
const DefaultMaxAttempts = 20

// FetchFunc retrieves a fresh CAPTCHA image.
type FetchFunc func(ctx context.Context) ([]byte, error)

// SubmitFunc submits an answer. It reports false when the portal rejected
// the answer and an error only for failures that should end the lookup.
type SubmitFunc func(ctx context.Context, answer string) (accepted bool, err error)

// Gate retries fetch, solve, submit until an answer is accepted or the
// attempt bound is reached.
type Gate struct {
	Solver      Solver
	MaxAttempts int
	Log         *logger.Logger
	// OnAttempt observes every attempt; result is accepted, rejected or
	// unsolved.
	OnAttempt func(result string)
}

// Pass returns nil once an answer is accepted. Exhausting the bound yields
// an apperr.KindCaptchaExhausted error; fetch and submit errors are returned
// as they are.
func (g Gate) Pass(ctx context.Context, fetch FetchFunc, submit SubmitFunc) error {
	limit := g.MaxAttempts
	if limit <= 0 {
		limit = DefaultMaxAttempts
	}
	log := g.Log
	if log == nil {
		log = logger.Nop()
	}

	for attempt := 1; attempt <= limit; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		image, err := fetch(ctx)
		if err != nil {
			return err
		}

		answer, err := g.Solver.Solve(ctx, image)
		answer = strings.TrimSpace(answer)
		if err != nil || answer == "" {
			log.Debug("CAPTCHA not solved", "attempt", attempt, "error", err)
			g.observe("unsolved")
			continue
		}

		accepted, err := submit(ctx, answer)
		if err != nil {
			return err
		}
		if accepted {
			g.observe("accepted")
			log.Debug("CAPTCHA accepted", "attempt", attempt)
			return nil
		}

		g.observe("rejected")
		log.Debug("CAPTCHA rejected", "attempt", attempt)
	}

	return apperr.CaptchaExhausted(fmt.Sprintf("captcha not accepted after %d attempts", limit))
}

func (g Gate) observe(result string) {
	if g.OnAttempt != nil {
		g.OnAttempt(result)
	}
}
