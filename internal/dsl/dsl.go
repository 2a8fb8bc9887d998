// Package dsl parses the instruction language for UI runs. Each step
// instruction is a single line: a verb, a colon, and an argument.
package dsl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Verb is a recognized instruction verb.
type Verb string

const (
	VerbClickText       Verb = "CLICK_TEXT"
	VerbClickID         Verb = "CLICK_ID"
	VerbClickCSS        Verb = "CLICK_CSS"
	VerbTypeID          Verb = "TYPE_ID"
	VerbWaitText        Verb = "WAIT_TEXT"
	VerbAssertText      Verb = "ASSERT_TEXT"
	VerbWaitURLContains Verb = "WAIT_URL_CONTAINS"
	VerbWaitMS          Verb = "WAIT_MS"
	VerbScreenshot      Verb = "SCREENSHOT"
)

// Command is one parsed instruction.
type Command struct {
	Verb Verb

	// Arg holds the single argument for text, selector, URL-fragment and
	// screenshot verbs. Empty for TYPE_ID and WAIT_MS.
	Arg string

	// Field and Value are set for TYPE_ID only. Value is kept verbatim
	// after the equals sign and may be empty.
	Field string
	Value string

	// Millis is set for WAIT_MS only.
	Millis int
}

// Verb names are matched case-insensitively. Single-argument verbs trim
// their argument; TYPE_ID keeps the value verbatim.
var (
	reClickText = regexp.MustCompile(`(?i)^\s*CLICK_TEXT\s*:\s*(.+)$`)
	reClickID   = regexp.MustCompile(`(?i)^\s*CLICK_ID\s*:\s*(.+)$`)
	reClickCSS  = regexp.MustCompile(`(?i)^\s*CLICK_CSS\s*:\s*(.+)$`)
	reTypeID    = regexp.MustCompile(`(?i)^\s*TYPE_ID\s*:\s*([A-Za-z0-9_\-]+)\s*=\s*(.*)$`)
	reWaitText  = regexp.MustCompile(`(?i)^\s*WAIT_TEXT\s*:\s*(.+)$`)
	reAssert    = regexp.MustCompile(`(?i)^\s*ASSERT_TEXT\s*:\s*(.+)$`)
	reWaitURL   = regexp.MustCompile(`(?i)^\s*WAIT_URL_CONTAINS\s*:\s*(.+)$`)
	reWaitMS    = regexp.MustCompile(`(?i)^\s*WAIT_MS\s*:\s*(\d+)\s*$`)
	reShot      = regexp.MustCompile(`(?i)^\s*SCREENSHOT\s*:?\s*(.*)$`)
)

var singleArg = []struct {
	re   *regexp.Regexp
	verb Verb
}{
	{reClickText, VerbClickText},
	{reClickID, VerbClickID},
	{reClickCSS, VerbClickCSS},
	{reWaitText, VerbWaitText},
	{reAssert, VerbAssertText},
	{reWaitURL, VerbWaitURLContains},
}

// Parse parses one instruction line into a Command. Instructions that do
// not match any verb are rejected, never guessed at.
func Parse(instruction string) (*Command, error) {
	if strings.TrimSpace(instruction) == "" {
		return nil, fmt.Errorf("empty instruction")
	}

	if m := reTypeID.FindStringSubmatch(instruction); m != nil {
		return &Command{Verb: VerbTypeID, Field: m[1], Value: m[2]}, nil
	}
	if m := reWaitMS.FindStringSubmatch(instruction); m != nil {
		ms, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("WAIT_MS argument %q out of range", m[1])
		}
		return &Command{Verb: VerbWaitMS, Millis: ms}, nil
	}
	for _, c := range singleArg {
		if m := c.re.FindStringSubmatch(instruction); m != nil {
			arg := strings.TrimSpace(m[1])
			if arg == "" {
				return nil, fmt.Errorf("%s requires an argument", c.verb)
			}
			return &Command{Verb: c.verb, Arg: arg}, nil
		}
	}
	// SCREENSHOT last: its argument is optional so the pattern is loose.
	if m := reShot.FindStringSubmatch(instruction); m != nil {
		return &Command{Verb: VerbScreenshot, Arg: strings.TrimSpace(m[1])}, nil
	}
	return nil, fmt.Errorf("unrecognized instruction %q", strings.TrimSpace(instruction))
}

// String renders the canonical single-line form of the command.
func (c *Command) String() string {
	switch c.Verb {
	case VerbTypeID:
		return fmt.Sprintf("%s: %s = %s", c.Verb, c.Field, c.Value)
	case VerbWaitMS:
		return fmt.Sprintf("%s: %d", c.Verb, c.Millis)
	case VerbScreenshot:
		if c.Arg == "" {
			return string(c.Verb)
		}
		return fmt.Sprintf("%s: %s", c.Verb, c.Arg)
	default:
		return fmt.Sprintf("%s: %s", c.Verb, c.Arg)
	}
}
