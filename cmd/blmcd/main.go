// cmd/blmcd/main.go
package main

import (
	"os"

	"github.com/edaniels/golog"
	"github.com/jessevdk/go-flags"
)

type Options struct {
	Config string `short:"c" long:"config" description:"Driver config file" default:"blmcd.yaml"`
	Debug  bool   `long:"debug" description:"Development logging"`

	Run       RunCommand       `command:"run" description:"Run the joint control loops until interrupted"`
	Home      HomeCommand      `command:"home" description:"Search the encoder index of each joint and set its zero angle"`
	Calibrate CalibrateCommand `command:"calibrate" description:"Find the index and drive each joint back to zero"`
	Status    StatusCommand    `command:"status" description:"Read joint status blocks from the status memory"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "blmcd - control daemon for brushless motor controller boards"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

func newLogger() golog.Logger {
	if opts.Debug {
		return golog.NewDevelopmentLogger("blmcd")
	}
	return golog.NewLogger("blmcd")
}
