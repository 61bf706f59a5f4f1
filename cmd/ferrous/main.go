package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/sunholo/ferrous/internal/target"
)

var (
	// Version info - set by ldflags during build
	Version = "dev"
	Commit  = "unknown"

	// Color output
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
)

func main() {
	var (
		versionFlag = flag.Bool("version", false, "Print version information")
		helpFlag    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *versionFlag {
		printVersion()
		return
	}
	if *helpFlag || flag.NArg() == 0 {
		printHelp()
		return
	}

	switch command := flag.Arg(0); command {
	case "targets":
		listTargets()

	case "target-check":
		if flag.NArg() < 2 {
			fmt.Fprintf(os.Stderr, "%s: missing target selector\n", red("Error"))
			fmt.Println("Usage: ferrous target-check <triple-or-file>")
			os.Exit(1)
		}
		checkTarget(flag.Arg(1))

	case "target-export":
		if flag.NArg() < 3 {
			fmt.Fprintf(os.Stderr, "%s: missing arguments\n", red("Error"))
			fmt.Println("Usage: ferrous target-export <triple> <out-file>")
			os.Exit(1)
		}
		exportTarget(flag.Arg(1), flag.Arg(2))

	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", red("Error"), command)
		printHelp()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("ferrous %s (%s)\n", Version, Commit)
}

func printHelp() {
	fmt.Println(bold("ferrous") + " - Rust middle-end tooling")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ferrous targets                          List built-in target triples")
	fmt.Println("  ferrous target-check <triple-or-file>    Validate a target selector")
	fmt.Println("  ferrous target-export <triple> <file>    Export a built-in target spec")
	fmt.Println()
	fmt.Println("The compilation stages (expansion, resolution, inference, layout)")
	fmt.Println("are driven by the compiler front-end; this tool exposes the target")
	fmt.Println("configuration surface.")
}

func listTargets() {
	names := target.PresetNames()
	sort.Strings(names)
	for _, n := range names {
		spec, _ := target.Preset(n)
		fmt.Printf("  %-28s %s/%s/%s %d-bit\n",
			n, spec.Family, spec.OsName, spec.EnvName, spec.Arch.PointerBits)
	}
}

func checkTarget(selector string) {
	spec, err := target.Load(selector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}
	if err := spec.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}

	cfg := target.NewCfgState()
	cfg.Apply(spec)

	fmt.Printf("%s %s (%s/%s, %d-bit, %s endian)\n",
		green("ok:"), spec.Arch.Name, spec.Family, spec.OsName,
		spec.Arch.PointerBits, endianName(spec.Arch.BigEndian))
	keys := make([]string, 0, len(cfg.Values))
	for k := range cfg.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s = %q\n", k, cfg.Values[k])
	}
}

func endianName(big bool) string {
	if big {
		return "big"
	}
	return "little"
}

func exportTarget(name, out string) {
	spec, ok := target.Preset(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "%s: unknown target %q\n", red("Error"), name)
		os.Exit(1)
	}
	if err := target.SaveFile(out, spec); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}
	fmt.Printf("%s wrote %s\n", green("ok:"), out)
}
