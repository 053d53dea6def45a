package main

import (
	"fmt"
	"os"
)

func main() {
	root, cleanup := newRootCmd(os.Environ())
	err := root.Execute()
	if cerr := cleanup(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
