package cli

import (
	"fmt"
	"io"
	"log"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	if _, err := fmt.Fprintf(w, format+"\n", a...); err != nil {
		log.Fatal(err)
	}
}

// warningf prints a message prefixed with a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	if _, err := color.New(color.Bold, color.FgYellow).Fprint(w, "Warning: "); err != nil {
		log.Fatal(err)
	}
	printf(w, format, a...)
}

// Errorf is the same as errors.Errorf but prepends "Error: " to the message. The result is meant
// to be returned from an action and printed by main.
func Errorf(format string, a ...interface{}) error {
	return errors.Errorf("Error: "+format, a...)
}
