package interpreter

import (
	"context"
	"testing"
	"time"

	"github.com/uirun/uirun/internal/domain"
	"github.com/uirun/uirun/internal/dsl"
)

type scriptedPage struct {
	clicksText     []string
	clicksSelector []string
	typed          [][2]string
	waitedText     []string
	waitedURL      []string
	asserted       []string
	shots          int
	settled        bool

	url   string
	title string

	clickErr  error
	waitBlock bool
}

func (p *scriptedPage) Navigate(ctx context.Context, url string) error { return nil }

func (p *scriptedPage) ClickText(ctx context.Context, text string) error {
	p.clicksText = append(p.clicksText, text)
	return p.clickErr
}

func (p *scriptedPage) ClickSelector(ctx context.Context, selector string) error {
	p.clicksSelector = append(p.clicksSelector, selector)
	return p.clickErr
}

func (p *scriptedPage) TypeByID(ctx context.Context, field, value string) error {
	p.typed = append(p.typed, [2]string{field, value})
	return nil
}

func (p *scriptedPage) WaitText(ctx context.Context, text string) error {
	p.waitedText = append(p.waitedText, text)
	if p.waitBlock {
		<-ctx.Done()
		return domain.StepErrorf(domain.ErrKindTimeout, "text %q did not appear", text)
	}
	return nil
}

func (p *scriptedPage) AssertText(ctx context.Context, text string) error {
	p.asserted = append(p.asserted, text)
	return nil
}

func (p *scriptedPage) WaitURLContains(ctx context.Context, frag string) error {
	p.waitedURL = append(p.waitedURL, frag)
	return nil
}

func (p *scriptedPage) Screenshot(ctx context.Context) ([]byte, error) {
	p.shots++
	return []byte{0x89, 0x50, 0x4e, 0x47}, nil
}

func (p *scriptedPage) Settle(ctx context.Context) { p.settled = true }

func (p *scriptedPage) Info(ctx context.Context) (string, string) { return p.url, p.title }

func (p *scriptedPage) Close(ctx context.Context) error { return nil }

func testInterpreter() *Interpreter {
	return New(Config{
		ClickTimeout:  500 * time.Millisecond,
		WaitTimeout:   500 * time.Millisecond,
		AssertTimeout: 500 * time.Millisecond,
		SettleDelay:   time.Millisecond,
		LoadWait:      50 * time.Millisecond,
		MaxSleep:      30 * time.Millisecond,
	})
}

func mustCmd(t *testing.T, raw string) *dsl.Command {
	t.Helper()
	cmd, err := dsl.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return cmd
}

func TestExecuteClickTextReportsPageState(t *testing.T) {
	page := &scriptedPage{url: "https://example.com/secure", title: "Secure Area"}
	in := testInterpreter()

	obs, err := in.Execute(context.Background(), page, mustCmd(t, "CLICK_TEXT: Login"))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if len(page.clicksText) != 1 || page.clicksText[0] != "Login" {
		t.Fatalf("unexpected clicks: %v", page.clicksText)
	}
	if !page.settled {
		t.Fatal("expected a post-action settle")
	}
	if obs.FinalURL != "https://example.com/secure" || obs.Title != "Secure Area" {
		t.Fatalf("unexpected observation: %+v", obs)
	}
}

func TestExecuteClickIDBuildsSelector(t *testing.T) {
	page := &scriptedPage{}
	in := testInterpreter()

	if _, err := in.Execute(context.Background(), page, mustCmd(t, "CLICK_ID: submit")); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if len(page.clicksSelector) != 1 || page.clicksSelector[0] != "#submit" {
		t.Fatalf("unexpected selectors: %v", page.clicksSelector)
	}
}

func TestExecuteClickCSSPassesSelectorThrough(t *testing.T) {
	page := &scriptedPage{}
	in := testInterpreter()

	if _, err := in.Execute(context.Background(), page, mustCmd(t, `CLICK_CSS: button[type="submit"]`)); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if len(page.clicksSelector) != 1 || page.clicksSelector[0] != `button[type="submit"]` {
		t.Fatalf("unexpected selectors: %v", page.clicksSelector)
	}
}

func TestExecuteTypeID(t *testing.T) {
	page := &scriptedPage{}
	in := testInterpreter()

	if _, err := in.Execute(context.Background(), page, mustCmd(t, "TYPE_ID: username=tomsmith")); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if len(page.typed) != 1 || page.typed[0] != [2]string{"username", "tomsmith"} {
		t.Fatalf("unexpected typed input: %v", page.typed)
	}
}

func TestExecuteAssertText(t *testing.T) {
	page := &scriptedPage{}
	in := testInterpreter()

	if _, err := in.Execute(context.Background(), page, mustCmd(t, "ASSERT_TEXT: You logged in")); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if len(page.asserted) != 1 || page.asserted[0] != "You logged in" {
		t.Fatalf("unexpected assertions: %v", page.asserted)
	}
}

func TestExecuteWaitMSCapsTheSleep(t *testing.T) {
	page := &scriptedPage{}
	in := testInterpreter()

	start := time.Now()
	if _, err := in.Execute(context.Background(), page, mustCmd(t, "WAIT_MS: 10000")); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("sleep was not capped, took %v", elapsed)
	}
}

func TestExecuteScreenshotSkipsSettle(t *testing.T) {
	page := &scriptedPage{url: "https://example.com/done"}
	in := testInterpreter()

	obs, err := in.Execute(context.Background(), page, mustCmd(t, "SCREENSHOT: final state"))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if page.shots != 1 {
		t.Fatalf("expected one capture, got %d", page.shots)
	}
	if len(obs.Shot) == 0 {
		t.Fatal("expected image bytes in the observation")
	}
	if obs.Label != "final state" {
		t.Fatalf("unexpected label %q", obs.Label)
	}
	if page.settled {
		t.Fatal("captures must not settle afterwards")
	}
	if obs.FinalURL != "https://example.com/done" {
		t.Fatalf("unexpected final url %q", obs.FinalURL)
	}
}

func TestExecutePassesStepErrorsThrough(t *testing.T) {
	page := &scriptedPage{
		clickErr: domain.StepErrorf(domain.ErrKindSelectorNotFound, "text %q not found", "Login"),
	}
	in := testInterpreter()

	_, err := in.Execute(context.Background(), page, mustCmd(t, "CLICK_TEXT: Login"))
	if err == nil {
		t.Fatal("expected the click failure to surface")
	}
	if kind := domain.KindOf(err); kind != domain.ErrKindSelectorNotFound {
		t.Fatalf("expected SelectorNotFound, got %q", kind)
	}
	if page.settled {
		t.Fatal("failed steps must not settle")
	}
}

func TestExecuteWaitTimesOutWithinBound(t *testing.T) {
	page := &scriptedPage{waitBlock: true}
	in := testInterpreter()

	start := time.Now()
	_, err := in.Execute(context.Background(), page, mustCmd(t, "WAIT_TEXT: Welcome"))
	if err == nil {
		t.Fatal("expected the wait to time out")
	}
	if kind := domain.KindOf(err); kind != domain.ErrKindTimeout {
		t.Fatalf("expected Timeout, got %q", kind)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("wait was not bounded, took %v", elapsed)
	}
}

func TestExecuteRejectsUnknownVerb(t *testing.T) {
	page := &scriptedPage{}
	in := testInterpreter()

	_, err := in.Execute(context.Background(), page, &dsl.Command{Verb: "HOVER", Arg: "menu"})
	if err == nil {
		t.Fatal("expected an error for an unknown verb")
	}
	if kind := domain.KindOf(err); kind != domain.ErrKindUnknownInstruction {
		t.Fatalf("expected UnknownInstruction, got %q", kind)
	}
}
