package dsl

import (
	"strings"
	"testing"
)

func TestParseClickVerbs(t *testing.T) {
	cases := []struct {
		in   string
		verb Verb
		arg  string
	}{
		{"CLICK_TEXT: Form Authentication", VerbClickText, "Form Authentication"},
		{"click_text:  Login  ", VerbClickText, "Login"},
		{"CLICK_ID: submit", VerbClickID, "submit"},
		{"CLICK_CSS: button[type='submit']", VerbClickCSS, "button[type='submit']"},
	}
	for _, c := range cases {
		cmd, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", c.in, err)
		}
		if cmd.Verb != c.verb || cmd.Arg != c.arg {
			t.Fatalf("Parse(%q) = %s %q, want %s %q", c.in, cmd.Verb, cmd.Arg, c.verb, c.arg)
		}
	}
}

func TestParseTypeID(t *testing.T) {
	cmd, err := Parse("TYPE_ID: username = tomsmith")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cmd.Verb != VerbTypeID || cmd.Field != "username" || cmd.Value != "tomsmith" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestParseTypeIDKeepsValueVerbatim(t *testing.T) {
	cmd, err := Parse("type_id: password = Super Secret!  ")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cmd.Field != "password" {
		t.Fatalf("unexpected field: %q", cmd.Field)
	}
	if cmd.Value != "Super Secret!  " {
		t.Fatalf("value was altered: %q", cmd.Value)
	}
}

func TestParseTypeIDEmptyValue(t *testing.T) {
	cmd, err := Parse("TYPE_ID: search =")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cmd.Field != "search" || cmd.Value != "" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestParseTypeIDRejectsUnsafeField(t *testing.T) {
	if _, err := Parse("TYPE_ID: user name = x"); err == nil {
		t.Fatalf("expected error for field with spaces")
	}
}

func TestParseWaitVerbs(t *testing.T) {
	cmd, err := Parse("WAIT_TEXT: Secure Area")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cmd.Verb != VerbWaitText || cmd.Arg != "Secure Area" {
		t.Fatalf("unexpected command: %+v", cmd)
	}

	cmd, err = Parse("WAIT_URL_CONTAINS: /secure")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cmd.Verb != VerbWaitURLContains || cmd.Arg != "/secure" {
		t.Fatalf("unexpected command: %+v", cmd)
	}

	cmd, err = Parse("WAIT_MS: 750")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cmd.Verb != VerbWaitMS || cmd.Millis != 750 {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestParseWaitMSRejectsNonNumeric(t *testing.T) {
	for _, in := range []string{"WAIT_MS: abc", "WAIT_MS: -5", "WAIT_MS: 1.5", "WAIT_MS:"} {
		if _, err := Parse(in); err == nil {
			t.Fatalf("Parse(%q): expected error", in)
		}
	}
}

func TestParseAssert(t *testing.T) {
	cmd, err := Parse("ASSERT_TEXT: You logged into a secure area!")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cmd.Verb != VerbAssertText || cmd.Arg != "You logged into a secure area!" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestParseScreenshot(t *testing.T) {
	cmd, err := Parse("SCREENSHOT: login-page")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cmd.Verb != VerbScreenshot || cmd.Arg != "login-page" {
		t.Fatalf("unexpected command: %+v", cmd)
	}

	// The colon and label are optional.
	cmd, err = Parse("SCREENSHOT")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cmd.Verb != VerbScreenshot || cmd.Arg != "" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestParseRejectsUnknownVerb(t *testing.T) {
	for _, in := range []string{
		"SCROLL_DOWN: 3",
		"click the login button",
		"CLICK_TEXT:",
		"CLICK_TEXT:   ",
		"",
		"   ",
	} {
		if _, err := Parse(in); err == nil {
			t.Fatalf("Parse(%q): expected error", in)
		}
	}
}

func TestCommandString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"click_text:  Login", "CLICK_TEXT: Login"},
		{"TYPE_ID: user = bob", "TYPE_ID: user = bob"},
		{"wait_ms: 100", "WAIT_MS: 100"},
		{"SCREENSHOT", "SCREENSHOT"},
		{"screenshot: final", "SCREENSHOT: final"},
	}
	for _, c := range cases {
		cmd, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", c.in, err)
		}
		if got := cmd.String(); got != c.want {
			t.Fatalf("String() = %q, want %q", got, c.want)
		}
	}
}

func TestCommandArgText(t *testing.T) {
	cmd, err := Parse("TYPE_ID: password = hunter2")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := cmd.ArgText(); got != "password" {
		t.Fatalf("ArgText() = %q, want field id only", got)
	}
	if strings.Contains(cmd.ArgText(), "hunter2") {
		t.Fatalf("ArgText leaked the typed value")
	}
}
