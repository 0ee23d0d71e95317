package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/worknest/messaging-api/internal/config"
)

const redacted = "redacted"

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
	}

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of every configuration key",
		RunE:  runConfigSchema,
	}
	schemaCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load configuration and report validation errors",
		RunE:  runConfigValidate,
	}
	validateCmd.Flags().StringP("file", "f", "", "YAML config file (default: $CONFIG_FILE)")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		RunE:  runConfigShow,
	}
	showCmd.Flags().StringP("file", "f", "", "YAML config file (default: $CONFIG_FILE)")
	showCmd.Flags().String("format", "yaml", "Output format: yaml, json")

	cmd.AddCommand(schemaCmd, validateCmd, showCmd)
	return cmd
}

func runConfigSchema(cmd *cobra.Command, _ []string) error {
	data, err := config.JSONSchema()
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(output, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write schema: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema written to %s\n", output)
	return nil
}

// loadConfig honours --file by pointing CONFIG_FILE at it before loading.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if cmd.Flags().Lookup("file") != nil {
		if file, _ := cmd.Flags().GetString("file"); file != "" {
			if err := os.Setenv("CONFIG_FILE", file); err != nil {
				return nil, err
			}
		}
	}
	return config.Load()
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration is valid")
	fmt.Fprintf(out, "  Listen:      %s\n", cfg.Addr())
	if cfg.UsesInMemoryStore() {
		fmt.Fprintln(out, "  Store:       in-memory")
	} else {
		fmt.Fprintln(out, "  Store:       postgres")
	}
	fmt.Fprintf(out, "  Presence:    %s (ttl %s)\n", cfg.PresenceBackend, cfg.PresenceTTL)
	fmt.Fprintf(out, "  Attachments: %s\n", cfg.AttachmentStorage)
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	safe := redact(*cfg)

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(safe)
	case "yaml":
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(safe)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

func redact(cfg config.Config) config.Config {
	if cfg.S3SecretKey != "" {
		cfg.S3SecretKey = redacted
	}
	cfg.DatabaseURL = redactURL(cfg.DatabaseURL)
	cfg.RedisURL = redactURL(cfg.RedisURL)
	return cfg
}

func redactURL(raw string) string {
	if raw == "" {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		return raw
	}
	if _, ok := parsed.User.Password(); ok {
		parsed.User = url.UserPassword(parsed.User.Username(), redacted)
	}
	return parsed.String()
}
