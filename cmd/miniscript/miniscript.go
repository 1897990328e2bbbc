// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/miniscript/miniscript"
	"github.com/btcsuite/miniscript/policy"
	"github.com/btcsuite/miniscript/tree"
)

var cfg *config

// tool carries the parsers and caches shared by all inputs of one run.
type tool struct {
	parser       *miniscript.Parser
	policyParser *policy.Parser
	cache        *miniscript.TypeCache
	out          io.Writer
}

func newTool(c *config, out io.Writer) *tool {
	p := miniscript.NewParser()
	p.KeyParser = c.keyParser()
	p.MaxDepth = c.MaxDepth

	pp := policy.NewParser()
	pp.KeyParser = c.keyParser()
	pp.MaxDepth = c.MaxDepth

	return &tool{
		parser:       p,
		policyParser: pp,
		cache:        miniscript.NewTypeCache(c.CacheSize),
		out:          out,
	}
}

// run handles one input according to mode.
func (t *tool) run(mode, input string) error {
	switch mode {
	case "parse":
		return t.parse(input)
	case "compile":
		return t.compile(input)
	case "decompile":
		return t.decompile(input)
	case "lift":
		return t.lift(input)
	case "policy":
		return t.policy(input)
	case "tree":
		return t.tree(input)
	}
	return fmt.Errorf("unknown mode %q", mode)
}

func (t *tool) parse(input string) error {
	m, err := t.parser.Parse(input)
	if err != nil {
		return err
	}

	fmt.Fprintf(t.out, "miniscript: %v\n", m)
	fmt.Fprintf(t.out, "type:       %v\n", m.Type())
	fmt.Fprintf(t.out, "script len: %d\n", m.ScriptLen())
	fmt.Fprintf(t.out, "max ops:    %d\n", m.MaxOpCount())
	if err := m.IsSane(); err != nil {
		fmt.Fprintf(t.out, "sane:       no, %v\n", err)
	} else {
		fmt.Fprintf(t.out, "sane:       yes\n")
	}
	return nil
}

func (t *tool) compile(input string) error {
	m, err := t.parser.Parse(input)
	if err != nil {
		return err
	}
	if err := m.IsValidTopLevel(); err != nil {
		return err
	}
	if err := m.IsSane(); err != nil {
		log.Warnf("Compiling %v: %v", m, err)
	}

	script, err := m.Script()
	if err != nil {
		return err
	}
	disasm, err := txscript.DisasmString(script)
	if err != nil {
		return err
	}
	addr, err := btcutil.NewAddressWitnessScriptHash(
		chainhash.HashB(script), activeNetParams,
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(t.out, "script:  %x\n", script)
	fmt.Fprintf(t.out, "asm:     %s\n", disasm)
	fmt.Fprintf(t.out, "address: %s (%s)\n", addr.EncodeAddress(),
		activeNetParams.Name)
	return nil
}

func (t *tool) decompile(input string) error {
	script, err := hex.DecodeString(input)
	if err != nil {
		return fmt.Errorf("script is not hex: %w", err)
	}
	m, err := t.parser.DecodeScript(script)
	if err != nil {
		return err
	}

	// Decoded trees are rebuilt from their own script, so their types are
	// checked against the shared cache.
	if err := miniscript.Reverify(m, t.cache); err != nil {
		return err
	}
	log.Debugf("%d fragment types cached", t.cache.Len())

	fmt.Fprintf(t.out, "%v\n", m)
	return nil
}

func (t *tool) lift(input string) error {
	m, err := t.parser.Parse(input)
	if err != nil {
		return err
	}
	s, err := policy.Lift(m)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.out, "%v\n", s)
	return nil
}

func (t *tool) policy(input string) error {
	c, err := t.policyParser.ParseConcrete(input)
	if err != nil {
		return err
	}
	s, err := c.Lift()
	if err != nil {
		return err
	}
	fmt.Fprintf(t.out, "%v\n", s)
	return nil
}

func (t *tool) tree(input string) error {
	tr, err := tree.ParseDepth(input, t.parser.MaxDepth)
	if err != nil {
		return err
	}
	log.Tracef("Scanned %v", tr)
	m, err := t.parser.FromTree(tr)
	if err != nil {
		return err
	}
	fmt.Fprint(t.out, m.DrawTree())
	return nil
}

// inputs returns the inputs given on the command line, or else the non-empty
// lines of r.
func inputs(args []string, r io.Reader) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// realMain is the real main function for the utility.  It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is called.
func realMain() error {
	// Load configuration and parse command line.
	tcfg, args, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = tcfg
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	ins, err := inputs(args, os.Stdin)
	if err != nil {
		return err
	}

	t := newTool(cfg, os.Stdout)
	var failed int
	for _, in := range ins {
		if err := t.run(cfg.Mode, in); err != nil {
			log.Errorf("%s: %v", in, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(ins))
	}
	return nil
}

func main() {
	if err := realMain(); err != nil {
		os.Exit(1)
	}
}
