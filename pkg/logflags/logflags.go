// Package logflags configures per-component debug logging for kmon.
package logflags

import (
	"errors"
	"io/ioutil"
	"log"
	"strings"

	"github.com/sirupsen/logrus"
)

var monitor = false
var mmu = false
var sim = false

func makeLogger(flag bool, fields logrus.Fields) *logrus.Entry {
	logger := logrus.New().WithFields(fields)
	logger.Logger.Level = logrus.DebugLevel
	if !flag {
		logger.Logger.Level = logrus.PanicLevel
	}
	return logger
}

// Monitor returns true if the command dispatch layer should log.
func Monitor() bool {
	return monitor
}

// MonitorLogger returns a logger for the command dispatch layer.
func MonitorLogger() *logrus.Entry {
	return makeLogger(monitor, logrus.Fields{"layer": "monitor"})
}

// MMU returns true if page-table mutations should be logged.
func MMU() bool {
	return mmu
}

// MMULogger returns a logger for page-table mutations.
func MMULogger() *logrus.Entry {
	return makeLogger(mmu, logrus.Fields{"layer": "mmu"})
}

// Sim returns true if the simulated machine should log traps and resumes.
func Sim() bool {
	return sim
}

// SimLogger returns a logger for the simulated machine.
func SimLogger() *logrus.Entry {
	return makeLogger(sim, logrus.Fields{"layer": "sim"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets component log flags based on the contents of logstr.
func Setup(logFlag bool, logstr string) error {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(ioutil.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "monitor"
	}
	v := strings.Split(logstr, ",")
	for _, logcmd := range v {
		switch logcmd {
		case "monitor":
			monitor = true
		case "mmu":
			mmu = true
		case "sim":
			sim = true
		}
	}
	return nil
}
