package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/kylinctl/kylinctl/internal/config"
	"github.com/kylinctl/kylinctl/internal/datasource"
	"github.com/kylinctl/kylinctl/internal/typemap"
)

var (
	configForce     bool
	configTypesFile string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Create, view and validate the kylinctl configuration.`,
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.ExpandHome(config.DefaultPath)
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file, from --dsn or interactively",
	Long: `Write a config file at ~/.kylinctl/kylinctl.yaml (or --config; a .toml
path writes TOML). With --dsn the server is taken from the DSN, otherwise
each setting is prompted for.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationConfig: configOptional},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s exists, use --force to overwrite", path)
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		c := config.Default()
		if dsn != "" {
			sc, err := config.ParseDSN(dsn)
			if err != nil {
				return err
			}
			c.Server = *sc
		} else {
			sc, err := promptServer(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			c.Server = sc
		}

		if err := c.Save(path); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Config written to %s\n", path)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Next steps:")
		fmt.Fprintln(out, "  kylinctl auth         Check the credentials")
		fmt.Fprintln(out, "  kylinctl projects     List the projects")
		fmt.Fprintln(out, "  kylinctl browse       Browse the datasources")
		return nil
	},
}

// promptServer asks for each server setting. An empty password is left
// for 'kylinctl auth' to prompt for.
func promptServer(in io.Reader, out io.Writer) (config.ServerConfig, error) {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "kylinctl Configuration Setup")
	fmt.Fprintln(out, "============================")
	fmt.Fprintln(out)

	sc := config.ServerConfig{}
	sc.Host = prompt(reader, out, "Host", "localhost")
	portStr := prompt(reader, out, "Port", "7070")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return sc, fmt.Errorf("invalid port: %s", portStr)
	}
	sc.Port = port
	sc.APIVersion = prompt(reader, out, "Service version (v1 Kylin, v2 KE3, v4 KE4)", config.VersionKylin)
	sc.Project = prompt(reader, out, "Project", "learn_kylin")
	sc.Username = prompt(reader, out, "Username", "ADMIN")
	sc.Password = prompt(reader, out, "Password (or ${ENV:NAME}, ${VAULT:path#key}, ${AWS_SM:name})", "")
	fmt.Fprintln(out)

	sc.ApplyDefaults()
	if sc.APIVersion != config.VersionKylin && sc.APIVersion != config.VersionKE3 && sc.APIVersion != config.VersionKE4 {
		return sc, fmt.Errorf("unsupported service version %q", sc.APIVersion)
	}
	return sc, nil
}

func prompt(reader *bufio.Reader, out io.Writer, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "  %s [%s]: ", label, defaultVal)
	} else {
		fmt.Fprintf(out, "  %s: ", label)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current config (secrets masked)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		masked := *cfg
		masked.Server.Password = maskSecret(masked.Server.Password)
		masked.Server.Session = maskSecret(masked.Server.Session)

		if outputFormat != outputTable {
			return render(cmd, masked, nil)
		}

		out := cmd.OutOrStdout()
		s := masked.Server
		fmt.Fprintln(out, "Current configuration:")
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  Server:\n")
		fmt.Fprintf(out, "    URL:            %s\n", s.BaseURL())
		fmt.Fprintf(out, "    Version:        %s\n", s.APIVersion)
		fmt.Fprintf(out, "    Project:        %s\n", s.Project)
		fmt.Fprintf(out, "    Username:       %s\n", s.Username)
		fmt.Fprintf(out, "    Password:       %s\n", s.Password)
		if s.Session != "" {
			fmt.Fprintf(out, "    Session:        %s\n", s.Session)
		}
		fmt.Fprintf(out, "    Timeout:        %ds\n", s.Timeout)
		fmt.Fprintf(out, "    Retries:        %d\n", s.RetryMax)
		fmt.Fprintf(out, "    Pushdown:       %t\n", s.IsPushdown)
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  Logging:\n")
		fmt.Fprintf(out, "    Level:          %s\n", masked.Logging.Level)
		fmt.Fprintf(out, "    Directory:      %s\n", masked.Logging.Directory)
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  Gateway:\n")
		fmt.Fprintf(out, "    Port:           %d\n", masked.Serve.Port)
		fmt.Fprintf(out, "    Origins:        %s\n", strings.Join(masked.Serve.AllowedOrigins, ", "))
		fmt.Fprintf(out, "    Poll:           %ds\n", masked.Serve.PollSeconds)
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  Schedules:        %d\n", len(masked.Schedules))
		if masked.TypeMapping != "" {
			fmt.Fprintf(out, "  Type mapping:     %s\n", masked.TypeMapping)
		}
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath())
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}

		var problems []string
		if err := c.Server.Validate(); err != nil {
			problems = append(problems, err.Error())
		}
		for i, sc := range c.Schedules {
			if _, err := cron.ParseStandard(sc.Cron); err != nil {
				problems = append(problems, fmt.Sprintf("schedules[%d]: invalid cron %q: %v", i, sc.Cron, err))
			}
			if sc.Datasource == "" || sc.Action == "" {
				problems = append(problems, fmt.Sprintf("schedules[%d]: datasource and action are required", i))
			}
			if sc.Kind != "" {
				if _, err := datasource.ParseKind(sc.Kind); err != nil {
					problems = append(problems, fmt.Sprintf("schedules[%d]: %v", i, err))
				}
			}
		}

		out := cmd.OutOrStdout()
		if len(problems) > 0 {
			fmt.Fprintln(out, "Validation errors:")
			for _, p := range problems {
				fmt.Fprintf(out, "  - %s\n", p)
			}
			return fmt.Errorf("%d validation error(s)", len(problems))
		}

		fmt.Fprintln(out, "Configuration is valid.")
		return nil
	},
}

var configTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "Show the remote type mapping, or write it with --write",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tm := typemap.Current()
		if configTypesFile != "" {
			if err := tm.WriteYAML(configTypesFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Type mapping written to %s; set type_mapping in the config to use it\n", configTypesFile)
			return nil
		}

		types := tm.SortedTypes()
		mapping := make(map[string]typemap.Kind, len(types))
		for _, t := range types {
			mapping[t], _ = tm.KindOf(t)
		}
		return render(cmd, mapping, func(w *tabwriter.Writer) {
			row(w, "REMOTE TYPE", "KIND")
			for _, t := range types {
				row(w, t, mapping[t])
			}
		})
	},
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")
	configTypesCmd.Flags().StringVar(&configTypesFile, "write", "", "write the mapping to this YAML file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configTypesCmd)
	rootCmd.AddCommand(configCmd)
}
