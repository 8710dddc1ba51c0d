// Command sqlassist checks questions and SQL offline, with the same routing
// and validation rules the server applies.
//
//	sqlassist classify "сколько транзакций за сегодня?"
//	echo "SELECT * FROM transactions;" | sqlassist validate
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}
