// Command agents trains PPO actor-critic policies on the built-in
// environments and exports trained policies.
//
// Usage:
//
//	agents [klog flags] train [flags]
//	agents [klog flags] export [flags]
//	agents inspect <file>
//	agents version
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/born-ml/agents/internal/serialization"
	"k8s.io/klog/v2"
)

const version = "v0.1.0-dev"

func usage() {
	out := flag.CommandLine.Output()
	_, _ = fmt.Fprintf(out, "Usage: %s [klog flags] <command> [flags]\n\n", os.Args[0])
	_, _ = fmt.Fprintln(out, "Commands:")
	_, _ = fmt.Fprintln(out, "  train      Train a policy on a built-in environment")
	_, _ = fmt.Fprintln(out, "  export     Export the weights of a checkpoint as SafeTensors")
	_, _ = fmt.Fprintln(out, "  inspect    List the tensors of a checkpoint or SafeTensors file")
	_, _ = fmt.Fprintln(out, "  version    Show version")
	_, _ = fmt.Fprintln(out, "\nRun '<command> -h' for the flags of a command.")
}

func main() {
	klog.InitFlags(nil)
	flag.Usage = usage
	flag.Parse()
	defer klog.Flush()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	var err error
	switch args[0] {
	case "train":
		err = runTrain(args[1:])
	case "export":
		err = runExport(args[1:])
	case "inspect":
		err = runInspect(args[1:])
	case "version":
		fmt.Printf("agents %s (checkpoint format v%d, serialization %s)\n", version, serialization.FormatVersion, serialization.Version)
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}
	if err != nil {
		klog.Errorf("%s: %+v", args[0], err)
		klog.Flush()
		os.Exit(1)
	}
}
