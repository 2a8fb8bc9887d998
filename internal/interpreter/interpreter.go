// Package interpreter executes one parsed instruction at a time against
// a live browser page, applying the per-verb timeout discipline.
package interpreter

import (
	"context"
	"time"

	"github.com/uirun/uirun/internal/browser"
	"github.com/uirun/uirun/internal/domain"
	"github.com/uirun/uirun/internal/dsl"
)

const (
	defaultClickTimeout  = 20 * time.Second
	defaultWaitTimeout   = 25 * time.Second
	defaultAssertTimeout = 8 * time.Second
	defaultSettleDelay   = 250 * time.Millisecond
	defaultLoadWait      = 15 * time.Second
	defaultMaxSleep      = 15 * time.Second
)

// Config holds the execution timeouts. Zero values fall back to the
// defaults above.
type Config struct {
	// ClickTimeout bounds click and capture actions.
	ClickTimeout time.Duration
	// WaitTimeout bounds explicit waits and field input.
	WaitTimeout time.Duration
	// AssertTimeout bounds the browser call behind an assertion; the
	// assertion itself does not retry.
	AssertTimeout time.Duration
	// SettleDelay is the short pause before every action.
	SettleDelay time.Duration
	// LoadWait bounds the post-action page settle.
	LoadWait time.Duration
	// MaxSleep caps WAIT_MS sleeps.
	MaxSleep time.Duration
}

// Observation is what a step left behind: where the page ended up and,
// for capture verbs, the raw image with its requested label.
type Observation struct {
	FinalURL string
	Title    string
	Shot     []byte
	Label    string
}

type Interpreter struct {
	cfg Config
}

func New(cfg Config) *Interpreter {
	if cfg.ClickTimeout <= 0 {
		cfg.ClickTimeout = defaultClickTimeout
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = defaultWaitTimeout
	}
	if cfg.AssertTimeout <= 0 {
		cfg.AssertTimeout = defaultAssertTimeout
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaultSettleDelay
	}
	if cfg.LoadWait <= 0 {
		cfg.LoadWait = defaultLoadWait
	}
	if cfg.MaxSleep <= 0 {
		cfg.MaxSleep = defaultMaxSleep
	}
	return &Interpreter{cfg: cfg}
}

// Execute runs a single instruction on the page. Failures come back as
// classified step errors; on success the observation reports the final
// URL and title, plus the captured image for screenshot instructions.
func (in *Interpreter) Execute(ctx context.Context, page browser.Page, cmd *dsl.Command) (*Observation, error) {
	// Give whatever the previous action kicked off a moment to land.
	if err := in.pause(ctx, in.cfg.SettleDelay); err != nil {
		return nil, err
	}

	obs := &Observation{}
	var err error
	switch cmd.Verb {
	case dsl.VerbClickText:
		err = in.timed(ctx, in.cfg.ClickTimeout, func(c context.Context) error {
			return page.ClickText(c, cmd.Arg)
		})
	case dsl.VerbClickID:
		err = in.timed(ctx, in.cfg.ClickTimeout, func(c context.Context) error {
			return page.ClickSelector(c, "#"+cmd.Arg)
		})
	case dsl.VerbClickCSS:
		err = in.timed(ctx, in.cfg.ClickTimeout, func(c context.Context) error {
			return page.ClickSelector(c, cmd.Arg)
		})
	case dsl.VerbTypeID:
		err = in.timed(ctx, in.cfg.WaitTimeout, func(c context.Context) error {
			return page.TypeByID(c, cmd.Field, cmd.Value)
		})
	case dsl.VerbWaitText:
		err = in.timed(ctx, in.cfg.WaitTimeout, func(c context.Context) error {
			return page.WaitText(c, cmd.Arg)
		})
	case dsl.VerbWaitURLContains:
		err = in.timed(ctx, in.cfg.WaitTimeout, func(c context.Context) error {
			return page.WaitURLContains(c, cmd.Arg)
		})
	case dsl.VerbWaitMS:
		d := time.Duration(cmd.Millis) * time.Millisecond
		if d > in.cfg.MaxSleep {
			d = in.cfg.MaxSleep
		}
		err = in.pause(ctx, d)
	case dsl.VerbAssertText:
		err = in.timed(ctx, in.cfg.AssertTimeout, func(c context.Context) error {
			return page.AssertText(c, cmd.Arg)
		})
	case dsl.VerbScreenshot:
		err = in.timed(ctx, in.cfg.ClickTimeout, func(c context.Context) error {
			shot, serr := page.Screenshot(c)
			if serr != nil {
				return serr
			}
			obs.Shot = shot
			return nil
		})
		if err != nil {
			return nil, err
		}
		// Captures report the page as it was shot, with no settle after.
		obs.Label = cmd.Arg
		obs.FinalURL, obs.Title = page.Info(ctx)
		return obs, nil
	default:
		return nil, domain.StepErrorf(domain.ErrKindUnknownInstruction, "verb %q is not executable", string(cmd.Verb))
	}
	if err != nil {
		return nil, err
	}

	// Let any navigation the action started finish before reporting.
	sctx, cancel := context.WithTimeout(ctx, in.cfg.LoadWait)
	page.Settle(sctx)
	cancel()

	obs.FinalURL, obs.Title = page.Info(ctx)
	return obs, nil
}

func (in *Interpreter) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return domain.WrapStepError(domain.ErrKindTimeout, "execution interrupted", ctx.Err())
	}
}

func (in *Interpreter) timed(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(tctx)
}
