package cli

import (
	"fmt"
	"io"

	"github.com/marcohefti/docseal/internal/config"
	"github.com/marcohefti/docseal/internal/doctor"
)

func (r Runner) runDoctor(args []string) int {
	fs, cf := newFlagSet("doctor")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return r.failUsage("doctor: invalid flags")
	}
	if *cf.help {
		printDoctorHelp(r.Stdout)
		return 0
	}
	if len(pos) > 0 {
		return r.failUsage("doctor: unexpected arguments")
	}
	e, err := r.setup("doctor", cf, config.Overrides{})
	if err != nil {
		return r.fail(err)
	}
	defer e.flush()

	res := doctor.Run(e.cfg, r.Now())
	if *cf.jsonOut {
		if code := r.writeJSON(res); code != 0 {
			return code
		}
	} else {
		doctor.Render(r.Stdout, res, false)
	}
	if !res.OK {
		return 1
	}
	return 0
}

func printDoctorHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  docseal doctor [--config file] [--json]
`)
}
