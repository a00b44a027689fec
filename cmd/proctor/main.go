// proveit-proctor enforces timed, single-attempt assessment sessions:
// wall-clock deadlines, violation tracking, forced submission, and a
// hash-chained audit log. Run "proveit-proctor serve" to start the
// gateway that quiz hosts connect to.
package main

import (
	"github.com/Ryan-RCNR/proveit-proctor/internal/cli"
)

func main() {
	cli.Execute()
}
