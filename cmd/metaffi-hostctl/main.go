// Command metaffi-hostctl is a small manual-testing front-end over the
// host engine: load a runtime plugin, call one entity, free a runtime
// plugin. Out of scope per spec.md §1 Non-goals (a CLI front-end is an
// external collaborator) but carried as ambient tooling, the Go-host
// equivalent of the teacher's pedumper command, grounded on
// cmd/pedumper.go's cobra.Command tree and PersistentFlags usage.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/metaffi/host/dispatch"
	"github.com/metaffi/host/entity"
	"github.com/metaffi/host/registry"
	"github.com/metaffi/host/xllr"
	"github.com/metaffi/host/xlog"
	"github.com/spf13/cobra"
)

var log = xlog.For("go.api")

var (
	verbose     bool
	module      string
	paramsTypes string
	retvalTypes string
	args        string
)

func prettyPrint(v any) string {
	b, err := json.MarshalIndent(v, "", "\t")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func newRegistry() (*registry.Registry, error) {
	disp, err := xllr.Load()
	if err != nil {
		return nil, err
	}
	return registry.New(disp), nil
}

func runLoadRuntime(cmd *cobra.Command, args []string) error {
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	canonical, err := reg.Acquire(args[0])
	if err != nil {
		return err
	}
	fmt.Println("loaded:", canonical)
	return nil
}

func runFreeRuntime(cmd *cobra.Command, args []string) error {
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	if err := reg.Release(args[0]); err != nil {
		return err
	}
	fmt.Println("released:", args[0])
	return nil
}

func runCall(cmd *cobra.Command, posArgs []string) error {
	runtime, entityPath := posArgs[0], posArgs[1]

	paramDescriptors, err := parseKindList(paramsTypes)
	if err != nil {
		return fmt.Errorf("--params-types: %w", err)
	}
	retvalDescriptors, err := parseKindList(retvalTypes)
	if err != nil {
		return fmt.Errorf("--retvals-types: %w", err)
	}

	disp, err := xllr.Load()
	if err != nil {
		return err
	}
	reg := registry.New(disp)
	loader := entity.NewLoader(disp, reg)

	e, err := loader.Load(runtime, module, entityPath, paramDescriptors, retvalDescriptors)
	if err != nil {
		return err
	}
	defer func() {
		if err := e.Free(); err != nil {
			log.Error("free entity failed", "error", err)
		}
	}()

	params, err := parseArgs(paramDescriptors, args)
	if err != nil {
		return err
	}

	retvals, err := dispatch.Call(e, params)
	if err != nil {
		return err
	}
	fmt.Println(prettyPrint(cdtsToJSON(retvals)))
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "metaffi-hostctl",
		Short: "Manual driver for the MetaFFI host-side FFI engine",
		Long:  "metaffi-hostctl loads runtime plugins, calls entities, and prints return values as JSON, for manual testing of the host engine outside a language accessor.",
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	loadRuntimeCmd := &cobra.Command{
		Use:   "load-runtime <name>",
		Short: "Load a runtime plugin by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runLoadRuntime,
	}

	freeRuntimeCmd := &cobra.Command{
		Use:   "free-runtime <name>",
		Short: "Release a runtime plugin acquisition",
		Args:  cobra.ExactArgs(1),
		RunE:  runFreeRuntime,
	}

	callCmd := &cobra.Command{
		Use:   "call <runtime> <entity-path>",
		Short: "Load an entity and call it once",
		Args:  cobra.ExactArgs(2),
		RunE:  runCall,
	}
	callCmd.Flags().StringVar(&module, "module", "", "module the entity belongs to")
	callCmd.Flags().StringVar(&paramsTypes, "params-types", "", "comma-separated declared parameter types, e.g. int64,int64")
	callCmd.Flags().StringVar(&retvalTypes, "retvals-types", "", "comma-separated declared return types")
	callCmd.Flags().StringVar(&args, "args", "", "comma-separated literal argument values, matching --params-types")

	rootCmd.AddCommand(loadRuntimeCmd, freeRuntimeCmd, callCmd)

	cobra.OnInitialize(func() {
		if verbose {
			xlog.SetLevel(slog.LevelDebug)
		}
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
