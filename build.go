//go:build ignore

// build.go - eexcot build driver
// Usage: go run build.go [-target=TARGET] [-v]
// Targets: build, test, clean, release

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	module = "eexcot"
	binary = "cot"
)

var (
	distDir = "dist"

	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorBlue  = "\033[34m"
	colorCyan  = "\033[36m"
)

func main() {
	target := flag.String("target", "build", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	printHeader()
	start := time.Now()

	switch *target {
	case "build":
		build(*verbose, runtime.GOOS, runtime.GOARCH)
	case "test":
		runTests(*verbose)
	case "clean":
		clean()
	case "release":
		runTests(*verbose)
		for _, p := range [][2]string{{"linux", "amd64"}, {"linux", "arm64"}, {"darwin", "arm64"}, {"windows", "amd64"}} {
			build(*verbose, p[0], p[1])
		}
	default:
		printError(fmt.Sprintf("unknown target %q (build, test, clean, release)", *target))
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Done in %s", time.Since(start).Round(time.Millisecond)))
}

func printHeader() {
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println(colorCyan + "   eexcot - EEX COT ingestion engine       " + colorReset)
	fmt.Println(colorCyan + "===========================================" + colorReset)
}

func printInfo(msg string)    { fmt.Printf("%s[INFO]%s %s\n", colorBlue, colorReset, msg) }
func printSuccess(msg string) { fmt.Printf("%s[SUCCESS]%s %s\n", colorGreen, colorReset, msg) }
func printError(msg string)   { fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg) }

// gitCommit returns the short HEAD hash, or "" outside a git checkout
func gitCommit() string {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func build(verbose bool, goos, goarch string) {
	name := binary
	if goos == "windows" {
		name += ".exe"
	}
	output := filepath.Join(distDir, goos+"_"+goarch, name)
	printInfo(fmt.Sprintf("Building %s for %s/%s...", binary, goos, goarch))

	ldflags := fmt.Sprintf("-s -w -X %s/pkg/contracts.BuildTime=%s", module, time.Now().UTC().Format(time.RFC3339))
	if commit := gitCommit(); commit != "" {
		ldflags += fmt.Sprintf(" -X %s/pkg/contracts.GitCommit=%s", module, commit)
	}

	args := []string{"build", "-trimpath", "-ldflags", ldflags, "-o", output, "./cmd/" + binary}
	if verbose {
		args = append([]string{"build", "-v"}, args[1:]...)
	}

	cmd := exec.Command("go", args...)
	cmd.Env = append(os.Environ(), "GOOS="+goos, "GOARCH="+goarch, "CGO_ENABLED=0")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if verbose {
		fmt.Printf("go %s\n", strings.Join(args, " "))
	}
	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Failed to build %s: %v", output, err))
		os.Exit(1)
	}

	if info, err := os.Stat(output); err == nil {
		printSuccess(fmt.Sprintf("Built %s (%.1f MB)", output, float64(info.Size())/1024/1024))
	}
}

func runTests(verbose bool) {
	printInfo("Running Go tests...")
	args := []string{"test", "-race"}
	if verbose {
		args = append(args, "-v")
	}
	args = append(args, "./...")

	cmd := exec.Command("go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Go tests failed: %v", err))
		os.Exit(1)
	}
	printSuccess("All tests passed")
}

func clean() {
	printInfo("Cleaning build artifacts...")
	if err := os.RemoveAll(distDir); err != nil {
		printError(fmt.Sprintf("Failed to clean %s: %v", distDir, err))
		os.Exit(1)
	}
	printSuccess("Build artifacts cleaned")
}
