// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"os"
	"time"

	"github.com/onosproject/onos-lib-go/pkg/cli"
	"github.com/onosproject/onos-lib-go/pkg/errors"
	"github.com/onosproject/p4bench/pkg/builder"
	"github.com/onosproject/p4bench/pkg/p4rt"
	"github.com/spf13/cobra"
)

const (
	topologyFlag = "topology"
	recipeFlag   = "recipe"
	outputFlag   = "output"
	entriesFlag  = "entries"
	p4InfoFlag   = "p4info"
	hostFlag     = "host"
	timeoutFlag  = "timeout"
)

// The main entry point
func main() {
	if err := getRootCommand().Execute(); err != nil {
		println(err.Error())
		os.Exit(1)
	}
}

func getRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "p4bench-topo {build, check, dot, entries, install}",
		Short: "Build, check, render or install P4 benchmark testbed setups",
	}
	cmd.AddCommand(getBuildCommand())
	cmd.AddCommand(getCheckCommand())
	cmd.AddCommand(getDotCommand())
	cmd.AddCommand(getEntriesCommand())
	cmd.AddCommand(getInstallCommand())
	return cmd
}

func getBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "build",
		Aliases: []string{"gen"},
		Short:   "Build a setup JSON file from a setup recipe YAML file",
		Args:    cobra.NoArgs,
		RunE:    runBuildCommand,
	}
	cmd.Flags().String(recipeFlag, "-", "setup recipe YAML file; use - for stdin (default)")
	cmd.Flags().String(outputFlag, "-", "output setup JSON file; use - for stdout (default)")
	return cmd
}

func runBuildCommand(cmd *cobra.Command, args []string) error {
	recipePath, _ := cmd.Flags().GetString(recipeFlag)
	outputPath, _ := cmd.Flags().GetString(outputFlag)
	b, err := buildFromRecipe(recipePath)
	if err != nil {
		return err
	}
	return b.SaveSetupToFile(outputPath)
}

func getCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a setup JSON file, including its table entries",
		Args:  cobra.NoArgs,
		RunE:  runCheckCommand,
	}
	cmd.Flags().String(topologyFlag, "-", "setup JSON file; use - for stdin (default)")
	return cmd
}

func runCheckCommand(cmd *cobra.Command, args []string) error {
	topologyPath, _ := cmd.Flags().GetString(topologyFlag)
	b := builder.New()
	if err := b.ReadFromFile(topologyPath); err != nil {
		return err
	}
	if b.CheckForErrors() {
		for _, p := range b.Problems() {
			cmd.PrintErrln(p.Error())
		}
		return errors.NewInvalid("%s has %d problems", topologyPath, len(b.Problems()))
	}
	cmd.Println("No problems found")
	return nil
}

func getDotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dot",
		Short: "Render the devices and links of a setup JSON file as a DOT graph",
		Args:  cobra.NoArgs,
		RunE:  runDotCommand,
	}
	cmd.Flags().String(topologyFlag, "-", "setup JSON file; use - for stdin (default)")
	cmd.Flags().String(outputFlag, "-", "output DOT file; use - for stdout (default)")
	return cmd
}

func runDotCommand(cmd *cobra.Command, args []string) error {
	topologyPath, _ := cmd.Flags().GetString(topologyFlag)
	outputPath, _ := cmd.Flags().GetString(outputFlag)
	b := builder.New()
	if err := b.ReadBaseFromFile(topologyPath); err != nil {
		return err
	}
	if outputPath == "-" {
		return b.WriteDOT(cmd.OutOrStdout())
	}
	buf := &bytes.Buffer{}
	if err := b.WriteDOT(buf); err != nil {
		return err
	}
	return os.WriteFile(outputPath, buf.Bytes(), 0644)
}

func getEntriesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Check table entries against a P4Info file and write them to a table entries JSON file",
		Args:  cobra.NoArgs,
		RunE:  runEntriesCommand,
	}
	cmd.Flags().String(entriesFlag, "-", "table entries JSON or YAML file; use - for stdin (default)")
	cmd.Flags().String(p4InfoFlag, "", "P4Info file to check the entries against; entries are not checked if empty")
	cmd.Flags().String(outputFlag, "-", "output table entries JSON file; use - for stdout (default)")
	return cmd
}

func runEntriesCommand(cmd *cobra.Command, args []string) error {
	entriesPath, _ := cmd.Flags().GetString(entriesFlag)
	p4InfoPath, _ := cmd.Flags().GetString(p4InfoFlag)
	outputPath, _ := cmd.Flags().GetString(outputFlag)

	tableEntries, err := builder.LoadTableEntries(entriesPath)
	if err != nil {
		return err
	}
	b := builder.New()
	for _, entry := range tableEntries {
		if err := b.AddTableEntryToFile(entry, p4InfoPath); err != nil {
			return err
		}
	}
	return b.SaveTableEntriesToFile(outputPath)
}

func getInstallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the table entries of a setup on its switches over P4Runtime",
		Args:  cobra.NoArgs,
		RunE:  runInstallCommand,
	}
	cmd.Flags().String(recipeFlag, "", "setup recipe YAML file; use - for stdin")
	cmd.Flags().String(topologyFlag, "", "setup JSON file, used if no recipe is given; use - for stdin")
	cmd.Flags().String(hostFlag, "localhost", "host running the switch P4Runtime servers")
	cmd.Flags().Duration(timeoutFlag, 30*time.Second, "installation timeout")
	cmd.Flags().String(cli.TLSKeyPathFlag, "", "path to client private key")
	cmd.Flags().String(cli.TLSCertPathFlag, "", "path to client certificate")
	cmd.Flags().Bool(cli.NoTLSFlag, false, "if present, do not use TLS")
	return cmd
}

func runInstallCommand(cmd *cobra.Command, args []string) error {
	recipePath, _ := cmd.Flags().GetString(recipeFlag)
	topologyPath, _ := cmd.Flags().GetString(topologyFlag)
	host, _ := cmd.Flags().GetString(hostFlag)
	timeout, _ := cmd.Flags().GetDuration(timeoutFlag)

	var b *builder.Builder
	var err error
	switch {
	case recipePath != "":
		b, err = buildFromRecipe(recipePath)
	case topologyPath != "":
		b = builder.New()
		err = b.ReadFromFile(topologyPath)
	default:
		return errors.NewInvalid("Either --%s or --%s must be given", recipeFlag, topologyFlag)
	}
	if err != nil {
		return err
	}
	if b.CheckForErrors() {
		return errors.NewInvalid("Setup has %d problems; not installing", len(b.Problems()))
	}

	dialOpts, err := p4rt.DialOptions(cli.NoTLS(cmd), cli.GetTLSCertPath(cmd), cli.GetTLSKeyPath(cmd))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return p4rt.NewInstaller(p4rt.WithDialOptions(dialOpts...)).InstallSetup(ctx, host, b.Setup(), b.Schemas())
}

func buildFromRecipe(path string) (*builder.Builder, error) {
	recipe, err := builder.LoadRecipe(path)
	if err != nil {
		return nil, err
	}
	b := builder.New()
	if err := b.Apply(recipe); err != nil {
		return nil, err
	}
	return b, nil
}
