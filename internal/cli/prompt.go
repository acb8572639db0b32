package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// prompter reads answers line by line for interactive setup.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// ask prints label with def in brackets and returns the trimmed answer,
// or def when the answer is empty. EOF counts as an empty answer.
func (p *prompter) ask(label, def string) string {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	input, _ := p.in.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	return input
}

// askSecret is ask without echoing the current value.
func (p *prompter) askSecret(label, current string) string {
	def := ""
	if current != "" {
		def = "keep current"
	}
	answer := p.ask(label, def)
	if answer == "keep current" {
		return current
	}
	return answer
}

// askInt re-asks until the answer is an integer within [min, max].
func (p *prompter) askInt(label string, def, min, max int) int {
	for {
		answer := p.ask(label, strconv.Itoa(def))
		v, err := strconv.Atoi(answer)
		if err == nil && v >= min && v <= max {
			return v
		}
		fmt.Fprintf(p.out, "  Error: enter a number between %d and %d\n", min, max)
		if _, err := p.in.Peek(1); err != nil {
			return def
		}
	}
}

// askChoice re-asks until the answer is one of choices.
func (p *prompter) askChoice(label, def string, choices []string) string {
	for {
		answer := strings.ToLower(p.ask(fmt.Sprintf("%s (%s)", label, strings.Join(choices, ", ")), def))
		for _, c := range choices {
			if answer == c {
				return c
			}
		}
		fmt.Fprintf(p.out, "  Error: choose one of %s\n", strings.Join(choices, ", "))
		if _, err := p.in.Peek(1); err != nil {
			return def
		}
	}
}

// confirm asks a yes/no question; def is used for an empty answer.
func (p *prompter) confirm(label string, def bool) bool {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	fmt.Fprintf(p.out, "%s [%s]: ", label, hint)
	input, _ := p.in.ReadString('\n')
	switch strings.TrimSpace(strings.ToLower(input)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return def
	}
}
