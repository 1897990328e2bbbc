// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btclog"
	"github.com/btcsuite/miniscript/miniscript"
	"github.com/btcsuite/miniscript/policy"
	"github.com/jrick/logrotate/rotator"
)

// logWriter implements an io.Writer that outputs to standard error and, once
// initialized, the log rotator.  Standard output is left to the results.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stderr.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

// Loggers per subsystem.  A single backend logger is created and all subsystem
// loggers created from it will write to the backend.  When adding new
// subsystems, add the subsystem logger variable here and to the
// subsystemLoggers map.
var (
	// backendLog is the logging backend used to create all subsystem
	// loggers.
	backendLog = btclog.NewBackend(logWriter{})

	// logRotator is one of the logging outputs.  It is nil unless --logdir
	// was given and should be closed on shutdown.
	logRotator *rotator.Rotator

	log     = backendLog.Logger("MAIN")
	mscrLog = backendLog.Logger("MSCR")
	plcyLog = backendLog.Logger("PLCY")
	scrpLog = backendLog.Logger("SCRP")
)

// Initialize package-global logger variables.
func init() {
	miniscript.UseLogger(mscrLog)
	policy.UseLogger(plcyLog)
	txscript.UseLogger(scrpLog)
}

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = map[string]btclog.Logger{
	"MAIN": log,
	"MSCR": mscrLog,
	"PLCY": plcyLog,
	"SCRP": scrpLog,
}

// initLogRotator initializes the logging rotater to write logs to logFile in
// logDir and create roll files in the same directory.
func initLogRotator(logDir, logFile string) {
	err := os.MkdirAll(logDir, 0700)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
		os.Exit(1)
	}
	r, err := rotator.New(filepath.Join(logDir, logFile), 10*1024, false, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %v\n", err)
		os.Exit(1)
	}

	logRotator = r
}

// setLogLevel sets the logging level for provided subsystem.  Invalid
// subsystems are ignored.
func setLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}

	// Defaults to info if the log level is invalid.
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// setLogLevels sets the log level for all subsystem loggers to the passed
// level.
func setLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		setLogLevel(subsystemID, logLevel)
	}
}
