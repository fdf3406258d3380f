package cli

import (
	"bufio"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and change configuration",
	Long: `Read and change values in ~/.viewshot/config.toml.

Values set with VIEWSHOT_* environment variables or command-line flags take
precedence over the file; 'viewshot config list' shows the effective result.

Examples:
  viewshot config list
  viewshot config get server.url
  viewshot config set upload.default_project web-app
  viewshot config set auth.open_browser false`,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a stored value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Store a value",
	Long: `Store a value for a known key. When the value is omitted it is read
from standard input.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConfigSet,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the effective configuration",
	RunE:  runConfigList,
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(standalone(configCmd))
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	value, ok := settingsService.Get(args[0])
	if !ok {
		return fmt.Errorf("%s is not set", args[0])
	}
	cmd.Println(formatValue(value))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key := args[0]
	var value string
	if len(args) == 2 {
		value = args[1]
	} else {
		cmd.Printf("%s: ", key)
		value = readLine(bufio.NewReader(cmd.InOrStdin()))
	}

	if err := settingsService.Set(key, value); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return fmt.Errorf("%w\nknown keys: %s", err, strings.Join(settingsService.Keys(), ", "))
		}
		return fmt.Errorf("failed to save setting: %w", err)
	}
	cmd.Printf("Set %s = %s\n", key, value)
	return nil
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cfg, err := settingsService.Config()
	if err != nil {
		cmd.PrintErrf("warning: %v\n", err)
	}

	rows := map[string]string{
		"server.url":                 cfg.ServerURL,
		"auth.client_id":             cfg.ClientID,
		"auth.scope":                 cfg.Scope,
		"auth.instance_id":           cfg.InstanceID,
		"auth.open_browser":          fmt.Sprint(cfg.OpenBrowser),
		"storage.data_dir":           orDefault(cfg.DataDir, "~/.viewshot"),
		"log.format":                 cfg.LogFormat.Description(),
		"api.timeout_seconds":        fmt.Sprint(int(cfg.RequestTimeout.Seconds())),
		"api.requests_per_second":    fmt.Sprint(cfg.RequestsPerSecond),
		"api.burst":                  fmt.Sprint(cfg.Burst),
		"upload.retry_delay_minutes": fmt.Sprint(cfg.RetryDelayMinutes),
		"upload.default_project":     orDefault(cfg.DefaultProjectID, "(not set)"),
		"watch.debounce_ms":          fmt.Sprint(cfg.WatchDebounce.Milliseconds()),
	}
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cmd.Println("Effective Configuration")
	cmd.Println("=======================")
	for _, k := range keys {
		cmd.Printf("  %-28s %s\n", k, rows[k])
	}
	return nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ",")
	case []any:
		parts := make([]string, len(val))
		for i := range val {
			parts[i] = fmt.Sprint(val[i])
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}
