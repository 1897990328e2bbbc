// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/miniscript/miniscript"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultLogLevel = "info"
	defaultMode     = "parse"
	defaultKeys     = "named"
	defaultLogName  = "miniscript.log"
)

var activeNetParams = &chaincfg.MainNetParams

// modes lists the supported values of --mode.
var modes = []string{"parse", "compile", "decompile", "lift", "policy",
	"tree"}

// config defines the configuration options for miniscript.
//
// See loadConfig for details on the configuration load process.
type config struct {
	DebugLevel     string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`
	LogDir         string `long:"logdir" description:"Also write logs to a rotated file in this directory"`
	Mode           string `short:"m" long:"mode" description:"What to do with each input {parse, compile, decompile, lift, policy, tree}"`
	Keys           string `short:"k" long:"keys" description:"Accepted key arguments {named, hex} -- named also accepts hex keys"`
	MaxDepth       int    `long:"maxdepth" description:"Maximum nesting depth of fragments"`
	CacheSize      uint   `long:"cachesize" description:"Number of fragment types remembered while re-verifying decoded scripts"`
	RegressionTest bool   `long:"regtest" description:"Use the regression test network"`
	SimNet         bool   `long:"simnet" description:"Use the simulation test network"`
	TestNet3       bool   `long:"testnet" description:"Use the test network"`
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(btcutil.AppDataDir("miniscript", false))
		path = strings.Replace(path, "~", homeDir, 1)
	}

	return filepath.Clean(os.ExpandEnv(path))
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical":
		return true
	}
	return false
}

// supportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func supportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") &&
		!strings.Contains(debugLevel, "=") {

		if !validLogLevel(debugLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, debugLevel)
		}
		setLogLevels(debugLevel)
		return nil
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			str := "The specified debug level contains an invalid " +
				"subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		if _, exists := subsystemLoggers[subsysID]; !exists {
			str := "The specified subsystem [%v] is invalid -- " +
				"supported subsystems %v"
			return fmt.Errorf(str, subsysID, supportedSubsystems())
		}
		if !validLogLevel(logLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}
		setLogLevel(subsysID, logLevel)
	}
	return nil
}

// keyParser returns the key parser selected by --keys.
func (c *config) keyParser() miniscript.KeyParser {
	if c.Keys == "hex" {
		return miniscript.ParsePubKey
	}
	return miniscript.ParseKey
}

// loadConfig initializes and parses the config using command line options.
func loadConfig() (*config, []string, error) {
	// Default config.
	cfg := config{
		DebugLevel: defaultLogLevel,
		Mode:       defaultMode,
		Keys:       defaultKeys,
		MaxDepth:   miniscript.DefaultMaxDepth,
	}

	// Parse command line options.
	parser := flags.NewParser(&cfg, flags.Default)
	parser.Usage = "[OPTIONS] [input...]\n\nInputs are read one per " +
		"line from stdin when none are given."
	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	// Multiple networks can't be selected simultaneously.
	funcName := "loadConfig"
	numNets := 0
	if cfg.TestNet3 {
		numNets++
		activeNetParams = &chaincfg.TestNet3Params
	}
	if cfg.RegressionTest {
		numNets++
		activeNetParams = &chaincfg.RegressionNetParams
	}
	if cfg.SimNet {
		numNets++
		activeNetParams = &chaincfg.SimNetParams
	}
	if numNets > 1 {
		str := "%s: The testnet, regtest, and simnet params can't be " +
			"used together -- choose one of the three"
		err := fmt.Errorf(str, funcName)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}

	validMode := false
	for _, mode := range modes {
		if cfg.Mode == mode {
			validMode = true
		}
	}
	if !validMode {
		str := "%s: The specified mode [%v] is invalid -- supported " +
			"modes %v"
		err := fmt.Errorf(str, funcName, cfg.Mode, modes)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}

	if cfg.Keys != "named" && cfg.Keys != "hex" {
		str := "%s: The specified key kind [%v] is invalid -- " +
			"supported kinds [named hex]"
		err := fmt.Errorf(str, funcName, cfg.Keys)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}

	if cfg.MaxDepth <= 0 {
		str := "%s: The maximum depth must be positive, got %d"
		err := fmt.Errorf(str, funcName, cfg.MaxDepth)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}

	// Initialize log rotation before any subsystem logs.
	if cfg.LogDir != "" {
		initLogRotator(cleanAndExpandPath(cfg.LogDir), defaultLogName)
	}

	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("%s: %v", funcName, err.Error())
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}

	return &cfg, remainingArgs, nil
}
