package cmd

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// serverFlagKeys maps the dev server flags onto their config keys.
var serverFlagKeys = map[string]string{
	"port":    "server.port",
	"host":    "server.host",
	"no-open": "server.no-open",
}

// addServerFlags adds the dev server flags shared by serve and start.
func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("port", "p", 3000, "Port to serve on")
	cmd.Flags().String("host", "localhost", "Host to bind to")
	cmd.Flags().Bool("no-open", false, "Don't open browser automatically")

	AddFlagValidation(cmd, "port", ValidatePort)

	// Bound when the command runs: viper keeps one flag per key, so
	// binding at init would let the last registered command win.
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, serverFlagKeys)
	}
}

// bindFlags binds the named flags of cmd to viper config keys.
func bindFlags(cmd *cobra.Command, bindings map[string]string) error {
	for flagName, configKey := range bindings {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil {
			return fmt.Errorf("unknown flag %q", flagName)
		}
		if err := viper.BindPFlag(configKey, flag); err != nil {
			return fmt.Errorf("bind --%s: %w", flagName, err)
		}
	}
	return nil
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidatePort checks a port flag value.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}

	return nil
}

// formatValidator accepts one of the given output formats.
func formatValidator(formats ...string) func(string) error {
	return func(format string) error {
		if slices.Contains(formats, format) {
			return nil
		}
		return fmt.Errorf("unsupported format: %s (supported: %s)", format, strings.Join(formats, ", "))
	}
}
