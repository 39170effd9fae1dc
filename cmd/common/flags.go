package common

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// CommonFlags are shared by every command.
type CommonFlags struct {
	EnvFile     *string
	DataRoot    *string
	ConsoleOnly *bool
	Verbose     *bool
	Quiet       *bool
	Version     *bool
	Help        *bool
}

// RegisterCommonFlags registers the shared flags on fs.
func RegisterCommonFlags(fs *flag.FlagSet) *CommonFlags {
	return &CommonFlags{
		EnvFile:     fs.String("env", ".env", "Environment file path"),
		DataRoot:    fs.String("data-root", "data", "Data root directory"),
		ConsoleOnly: fs.Bool("console-only", false, "Console output only (no report files)"),
		Verbose:     fs.Bool("verbose", false, "Debug logging"),
		Quiet:       fs.Bool("quiet", false, "Warnings and errors only, no result tables"),
		Version:     fs.Bool("version", false, "Show version information"),
		Help:        fs.Bool("help", false, "Show help information"),
	}
}

// LogLevel maps -verbose and -quiet onto a level name, or "" when neither is set.
func (c *CommonFlags) LogLevel() string {
	switch {
	case *c.Verbose:
		return "debug"
	case *c.Quiet:
		return "warn"
	}
	return ""
}

// SetFlags returns the names of the flags given on the command line.
func SetFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// SplitList splits a comma separated flag value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// FlagValidator accumulates flag errors so they can be reported together.
type FlagValidator struct {
	errors []string
}

func NewFlagValidator() *FlagValidator {
	return &FlagValidator{}
}

func (v *FlagValidator) ValidateFloat(name string, value, min, max float64) *FlagValidator {
	if value < min || value > max {
		v.errors = append(v.errors, fmt.Sprintf("%s must be between %g and %g, got: %g", name, min, max, value))
	}
	return v
}

func (v *FlagValidator) ValidateInt(name string, value, min, max int) *FlagValidator {
	if value < min || value > max {
		v.errors = append(v.errors, fmt.Sprintf("%s must be between %d and %d, got: %d", name, min, max, value))
	}
	return v
}

func (v *FlagValidator) ValidateChoice(name, value string, choices []string) *FlagValidator {
	for _, choice := range choices {
		if strings.EqualFold(value, choice) {
			return v
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of [%s], got: %s", name, strings.Join(choices, ", "), value))
	return v
}

// ValidateFile checks that path exists. An empty path is only an error when required.
func (v *FlagValidator) ValidateFile(name, path string, required bool) *FlagValidator {
	if path == "" {
		if required {
			v.errors = append(v.errors, fmt.Sprintf("%s is required", name))
		}
		return v
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		v.errors = append(v.errors, fmt.Sprintf("%s file does not exist: %s", name, path))
	}
	return v
}

func (v *FlagValidator) AddError(message string) *FlagValidator {
	v.errors = append(v.errors, message)
	return v
}

func (v *FlagValidator) HasErrors() bool {
	return len(v.errors) > 0
}

// Error joins the collected errors, or returns nil.
func (v *FlagValidator) Error() error {
	switch len(v.errors) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("validation error: %s", v.errors[0])
	}
	return fmt.Errorf("validation errors:\n  - %s", strings.Join(v.errors, "\n  - "))
}

// UsageExample is one documented invocation.
type UsageExample struct {
	Command     string
	Description string
}

// UsageFormatter prints help text around a FlagSet's defaults.
type UsageFormatter struct {
	AppName        string
	AppDescription string
	Examples       []UsageExample
}

func NewUsageFormatter(appName, description string) *UsageFormatter {
	return &UsageFormatter{AppName: appName, AppDescription: description}
}

func (u *UsageFormatter) AddExample(command, description string) *UsageFormatter {
	u.Examples = append(u.Examples, UsageExample{Command: command, Description: description})
	return u
}

func (u *UsageFormatter) PrintUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, "%s - %s\n\n", u.AppName, u.AppDescription)
	fmt.Fprintf(w, "USAGE:\n  %s [OPTIONS]\n\n", fs.Name())

	if len(u.Examples) > 0 {
		fmt.Fprintf(w, "EXAMPLES:\n")
		for _, ex := range u.Examples {
			fmt.Fprintf(w, "  # %s\n  %s\n\n", ex.Description, ex.Command)
		}
	}

	fmt.Fprintf(w, "OPTIONS:\n")
	fs.SetOutput(w)
	fs.PrintDefaults()
}
