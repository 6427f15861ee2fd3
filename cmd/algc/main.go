// Command algc compiles ALG source to the stack machine's binary
// program format, with an optional hex listing alongside it.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/yasnov/algstack/internal/codegen"
	"github.com/yasnov/algstack/internal/isa"
	"github.com/yasnov/algstack/internal/parser"
)

var log = logrus.New()

func main() {
	app := &cli.App{
		Name:  "algc",
		Usage: "ALG -> stack machine binary translator",
		Commands: []*cli.Command{
			compileCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var compileCommand = &cli.Command{
	Name:      "compile",
	Usage:     "compile a .alg source file to a binary program image",
	ArgsUsage: "<source.alg> <out.bin>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "hex", Usage: "also write a hex listing to this path"},
		&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug|info|warn|error"},
	},
	Action: runCompile,
}

func runCompile(ctx *cli.Context) error {
	level, err := logrus.ParseLevel(ctx.String("log-level"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	log.SetLevel(level)

	if ctx.Args().Len() < 2 {
		return cli.Exit("usage: algc compile <source.alg> <out.bin> [--hex <out.hex>]", 2)
	}
	srcPath := ctx.Args().Get(0)
	outPath := ctx.Args().Get(1)

	src, err := os.ReadFile(srcPath)
	if err != nil {
		log.WithError(err).Error("failed to read source")
		return cli.Exit(err.Error(), 1)
	}

	prog, err := parser.Parse(string(src))
	if err != nil {
		log.WithError(err).Error("parse failed")
		return cli.Exit(err.Error(), 1)
	}

	code, err := codegen.Generate(prog)
	if err != nil {
		log.WithError(err).Error("codegen failed")
		return cli.Exit(err.Error(), 1)
	}

	blob := isa.Encode(code)
	if err := os.WriteFile(outPath, blob, 0o644); err != nil {
		log.WithError(err).Error("failed to write binary")
		return cli.Exit(err.Error(), 1)
	}

	if hexPath := ctx.String("hex"); hexPath != "" {
		if err := os.WriteFile(hexPath, []byte(isa.ToHex(code)), 0o644); err != nil {
			log.WithError(err).Error("failed to write hex listing")
			return cli.Exit(err.Error(), 1)
		}
	}

	log.WithFields(logrus.Fields{
		"source":       srcPath,
		"out":          outPath,
		"instructions": len(code),
	}).Debug("compiled")
	return nil
}
