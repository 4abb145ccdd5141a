// cmd/shelfkeeper/main.go
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "shelfkeeper: %v\n", err)
		os.Exit(1)
	}
}
