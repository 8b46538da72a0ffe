//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
var Default = Build

// Build compiles all the OCB commands into ./bin.
func Build() error {
	for _, cmd := range []string{
		"ocb-dump",
		"ocb-split",
		"ocb-stats",
		"ocb-srv",
		"ocb-boot",
		"ocb-ctl",
		"ocb-sql",
	} {
		fmt.Printf("building %s...\n", cmd)
		err := run("go", "build", "-o", "./bin/"+cmd, "./cmd/"+cmd)
		if err != nil {
			return err
		}
	}
	return nil
}

// Test runs the whole test suite.
func Test() error {
	mg.Deps(Build)
	return run("go", "test", "./...")
}

func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
