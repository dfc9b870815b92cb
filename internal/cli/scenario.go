package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/buyflow/internal/harness"
)

// ScenarioOptions holds flags for the scenario commands.
type ScenarioOptions struct {
	*RootOptions
	Filter    string
	GoldenDir string
	Update    bool
}

// ScenarioResult holds the result of a single scenario run.
type ScenarioResult struct {
	Name   string               `json:"name"`
	File   string               `json:"file"`
	Pass   bool                 `json:"pass"`
	Errors []string             `json:"errors,omitempty"`
	Trace  []harness.TraceEvent `json:"trace,omitempty"`
}

// RunSummary aggregates the results of scenario run.
type RunSummary struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// FileValidation is the schema check of one scenario file.
type FileValidation struct {
	File   string                `json:"file"`
	Valid  bool                  `json:"valid"`
	Errors []harness.SchemaError `json:"errors,omitempty"`
}

// NewScenarioCommand creates the scenario command group.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Validate and replay YAML scenarios",
		Long: `Validate and replay buy-flow scenarios.

A scenario seeds the in-memory broker, scripts a list of intents and asserts
on the resulting transition trace and final state. Files are checked
against the scenario schema before they run.`,
	}

	run := &cobra.Command{
		Use:   "run <file-or-dir>...",
		Short: "Replay scenarios and check their assertions",
		Long: `Replay scenarios through the engine and check their assertions.

Directories are searched for .yaml and .yml files. With --golden the trace
of each scenario is also compared with <golden-dir>/<name>.golden; a
scenario without a golden file is checked by its assertions alone.

Examples:
  buyflow scenario run ./scenarios
  buyflow scenario run ./scenarios --filter "card_*"
  buyflow scenario run ./scenarios --golden ./golden --update`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}
	run.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose file name matches this glob")
	run.Flags().StringVar(&opts.GoldenDir, "golden", "", "directory of golden trace files")
	run.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files instead of comparing")

	validate := &cobra.Command{
		Use:   "validate <file-or-dir>...",
		Short: "Check scenario files against the schema",
		Long: `Check scenario files without running them.

Reports every schema violation with its line, then the checks that need
the intent set: known scriptable intents, their arguments, and assertion
targets.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateScenarios(opts, args, cmd)
		},
	}
	validate.Flags().StringVar(&opts.Filter, "filter", "", "only check files whose name matches this glob")

	cmd.AddCommand(run, validate)
	return cmd
}

func runScenarios(opts *ScenarioOptions, paths []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	if opts.Update && opts.GoldenDir == "" {
		return f.Fail(ExitCommandError, ErrCodeScenario, "--update needs --golden", nil)
	}

	files, err := collectScenarioFiles(paths, opts.Filter)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeScenario, "failed to find scenarios", err)
	}
	if len(files) == 0 {
		return f.Fail(ExitCommandError, ErrCodeScenario, "no scenario files found", nil)
	}

	var live io.Writer = io.Discard
	if !f.JSON() {
		live = f.Writer
	}

	summary := RunSummary{Scenarios: []ScenarioResult{}}
	for _, file := range files {
		res := runScenarioFile(file, opts)
		writeScenarioResult(live, res, opts.Update)
		summary.Scenarios = append(summary.Scenarios, res)
		if res.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	summary.Total = len(summary.Scenarios)

	if f.JSON() {
		if summary.Failed > 0 {
			_ = f.Error("E_SCENARIO_FAILED", fmt.Sprintf("%d scenario(s) failed", summary.Failed), summary)
			return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
		}
		return f.Success(summary)
	}

	fmt.Fprintln(live)
	fmt.Fprintf(live, "Summary: %d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)
	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}
	fmt.Fprintln(live, "✓ All scenarios passed")
	return nil
}

// runScenarioFile loads, runs and checks one scenario.
func runScenarioFile(file string, opts *ScenarioOptions) ScenarioResult {
	res := ScenarioResult{Name: strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)), File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("load: %v", err)}
		return res
	}
	res.Name = scenario.Name

	result, err := harness.Run(scenario)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("run: %v", err)}
		return res
	}
	res.Trace = result.Trace
	res.Errors = append(res.Errors, result.Errors...)

	if opts.GoldenDir != "" {
		if err := checkGolden(opts, scenario.Name, result); err != nil {
			res.Errors = append(res.Errors, err.Error())
		}
	}
	res.Pass = len(res.Errors) == 0
	return res
}

// checkGolden compares the trace with the golden file, or rewrites it with
// --update. A missing golden file is not an error.
func checkGolden(opts *ScenarioOptions, name string, result *harness.Result) error {
	current, err := harness.MarshalTrace(name, result)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	path := filepath.Join(opts.GoldenDir, name+".golden")

	if opts.Update {
		if err := os.MkdirAll(opts.GoldenDir, 0o755); err != nil {
			return fmt.Errorf("create golden directory: %w", err)
		}
		if err := os.WriteFile(path, current, 0o644); err != nil {
			return fmt.Errorf("write golden file: %w", err)
		}
		return nil
	}

	golden, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(golden, current) {
		return fmt.Errorf("trace does not match %s (run with --update to regenerate)", path)
	}
	return nil
}

func writeScenarioResult(w io.Writer, res ScenarioResult, updated bool) {
	if !res.Pass {
		fmt.Fprintf(w, "✗ %s\n", res.Name)
		for _, e := range res.Errors {
			for _, line := range strings.Split(strings.TrimRight(e, "\n"), "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
		return
	}
	if updated {
		fmt.Fprintf(w, "✓ %s (golden updated)\n", res.Name)
		return
	}
	fmt.Fprintf(w, "✓ %s\n", res.Name)
}

func runValidateScenarios(opts *ScenarioOptions, paths []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	files, err := collectScenarioFiles(paths, opts.Filter)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeScenario, "failed to find scenarios", err)
	}
	if len(files) == 0 {
		return f.Fail(ExitCommandError, ErrCodeScenario, "no scenario files found", nil)
	}

	var results []FileValidation
	invalid := 0
	for _, file := range files {
		f.VerboseLog("checking %s", file)
		v := validateScenarioFile(file)
		if !v.Valid {
			invalid++
		}
		results = append(results, v)
	}

	if f.JSON() {
		if invalid > 0 {
			_ = f.Error(ErrCodeSchema, fmt.Sprintf("%d invalid scenario file(s)", invalid), results)
			return NewExitError(ExitFailure, fmt.Sprintf("%d invalid scenario file(s)", invalid))
		}
		return f.Success(results)
	}

	for _, v := range results {
		if v.Valid {
			fmt.Fprintf(f.Writer, "✓ %s\n", v.File)
			continue
		}
		fmt.Fprintf(f.Writer, "✗ %s\n", v.File)
		for _, e := range v.Errors {
			fmt.Fprintf(f.Writer, "  %s\n", e.Error())
		}
	}
	if invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d invalid scenario file(s)", invalid))
	}
	return nil
}

// validateScenarioFile reports every schema error of a file, or the first
// semantic error once the schema holds.
func validateScenarioFile(file string) FileValidation {
	v := FileValidation{File: file}
	data, err := os.ReadFile(file)
	if err != nil {
		v.Errors = []harness.SchemaError{{Message: err.Error()}}
		return v
	}
	if errs := harness.ValidateSchema(file, data); len(errs) > 0 {
		v.Errors = errs
		return v
	}
	if _, err := harness.ParseScenario(file, data); err != nil {
		v.Errors = []harness.SchemaError{{Message: err.Error()}}
		return v
	}
	v.Valid = true
	return v
}

// collectScenarioFiles expands directories to the YAML files they contain.
// Files named directly are kept whatever their extension; the filter
// applies to every file by name without extension.
func collectScenarioFiles(paths []string, filter string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			ok, err := matchesFilter(p, filter)
			if err != nil {
				return nil, err
			}
			if ok {
				files = append(files, p)
			}
			continue
		}

		err = filepath.Walk(p, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			ext := filepath.Ext(path)
			if ext != ".yaml" && ext != ".yml" {
				return nil
			}
			ok, err := matchesFilter(path, filter)
			if err != nil {
				return err
			}
			if ok {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func matchesFilter(path, filter string) (bool, error) {
	if filter == "" {
		return true, nil
	}
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	ok, err := filepath.Match(filter, name)
	if err != nil {
		return false, fmt.Errorf("invalid filter pattern: %w", err)
	}
	return ok, nil
}
