package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-docfill/internal/config"
	"github.com/goliatone/go-docfill/internal/httpapi"
	"github.com/goliatone/go-docfill/pkg/document"
	"github.com/goliatone/go-docfill/pkg/openapi"
	"github.com/goliatone/go-docfill/pkg/orchestrator"
	"github.com/goliatone/go-docfill/pkg/prompt"
)

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Fill document templates",
		Long: `docfill fills placeholder fields in document templates and delivers the
result as docx, odt, pdf, html, markdown or plain text.

Templates live in a directory (store.dir). Each template may carry a YAML or
JSON sidecar with the same base name that declares field labels, types and
choices.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (TOML), defaults to ./docfill.toml when present")
	flags.StringVarP(&opts.dir, "dir", "d", "", "template directory, overrides store.dir")
	flags.BoolVar(&opts.examples, "examples", false, "use the bundled example templates")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(opts),
		listCmd(opts),
		fieldsCmd(opts),
		generateCmd(opts),
		fillCmd(opts),
		openapiCmd(opts),
		configCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

// withApp wires the pipeline, runs fn and releases resources afterwards.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	if closeErr := a.Close(); closeErr != nil && runErr == nil {
		return closeErr
	}
	return runErr
}

func serveCmd(opts *globalOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the fill forms and the generation API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if addr == "" {
					addr = a.cfg.Server.Addr
				}
				srv, err := httpapi.New(a.gen,
					httpapi.WithLogger(a.logger),
					httpapi.WithMetrics(a.metrics.Handler()),
					httpapi.WithDefaultLang(a.cfg.I18n.DefaultLang),
					httpapi.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
					httpapi.WithVersion(Version),
				)
				if err != nil {
					return err
				}
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				return srv.Run(ctx, addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

func listCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				specs, err := a.gen.Templates(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, spec := range specs {
					formats := make([]string, 0)
					for _, f := range a.gen.Targets(spec.Format) {
						formats = append(formats, f.String())
					}
					fmt.Fprintf(out, "%s\t%s\t%d fields\t%s\n", spec.TemplateID, spec.Format, len(spec.Fields), strings.Join(formats, ","))
				}
				return nil
			})
		},
	}
}

func fieldsCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "fields <template>",
		Short: "Show the fields a template requires",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				spec, err := a.gen.Schema(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(spec)
				}
				for _, field := range spec.Fields {
					line := fmt.Sprintf("%s\t%s\t%s", field.Name, field.Type, field.Label)
					if len(field.Choices) > 0 {
						line += "\t[" + strings.Join(field.Choices, "|") + "]"
					}
					if !field.Required {
						line += "\toptional"
					}
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the schema as JSON")
	return cmd
}

type outputOptions struct {
	format string
	output string
}

func (o *outputOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "format", "f", "", "output format (docx, odt, pdf, html, markdown, text); defaults to the template's own")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "output file, \"-\" for stdout; defaults to <template>.<ext>")
}

func generateCmd(opts *globalOptions) *cobra.Command {
	var (
		out        outputOptions
		sets       []string
		valuesFile string
	)
	cmd := &cobra.Command{
		Use:   "generate <template>",
		Short: "Generate a document from field values",
		Example: `  docfill generate agreement --set agreement_number=42 --set date=2024-01-01 -f pdf
  docfill generate letters/payment --values payment.yaml -o -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := collectValues(valuesFile, sets)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return generate(ctx, cmd, a, args[0], values, out)
			})
		},
	}
	out.bind(cmd)
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field value as name=value, repeatable")
	cmd.Flags().StringVar(&valuesFile, "values", "", "YAML or JSON file with field values")
	return cmd
}

func fillCmd(opts *globalOptions) *cobra.Command {
	var out outputOptions
	cmd := &cobra.Command{
		Use:   "fill <template>",
		Short: "Prompt for each field, then generate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				spec, err := a.gen.Schema(ctx, args[0])
				if err != nil {
					return err
				}
				filler := prompt.New(prompt.WithChoicePolicy(a.cfg.ChoicePolicy()))
				values, err := filler.Fill(ctx, spec, nil)
				if err != nil {
					return err
				}
				return generate(ctx, cmd, a, args[0], values, out)
			})
		},
	}
	out.bind(cmd)
	return cmd
}

func generate(ctx context.Context, cmd *cobra.Command, a *app, id string, values map[string]string, out outputOptions) error {
	var format document.Format
	if out.format != "" {
		parsed, err := document.ParseFormat(out.format)
		if err != nil {
			return err
		}
		format = parsed
	}

	doc, err := a.gen.Generate(ctx, orchestrator.Request{TemplateID: id, Values: values, Format: format})
	if err != nil {
		return err
	}
	return writeDocument(cmd, doc, out.output)
}

func writeDocument(cmd *cobra.Command, doc document.RenderedDocument, target string) error {
	if target == "-" {
		_, err := io.Copy(cmd.OutOrStdout(), bytes.NewReader(doc.Content))
		return err
	}
	if target == "" {
		target = doc.Filename
	}
	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(target, doc.Content, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s written (%d bytes)\n", target, len(doc.Content))
	return nil
}

// collectValues merges a values file with --set pairs; --set wins.
func collectValues(path string, sets []string) (map[string]string, error) {
	values := map[string]string{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read values: %w", err)
		}
		// JSON is a subset of YAML, so one decoder covers both.
		if err := yaml.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("parse values %s: %w", path, err)
		}
	}
	for _, pair := range sets {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q, want name=value", pair)
		}
		values[name] = value
	}
	return values, nil
}

func openapiCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "openapi",
		Short: "Print the OpenAPI description of the generation API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				specs, err := a.gen.Templates(ctx)
				if err != nil {
					return err
				}
				templates := make([]openapi.Template, 0, len(specs))
				for _, spec := range specs {
					templates = append(templates, openapi.Template{Schema: spec, Formats: a.gen.Targets(spec.Format)})
				}
				raw, err := openapi.Build(ctx, openapi.Info{Title: appName, Version: Version}, templates)
				if err != nil {
					return err
				}
				var pretty bytes.Buffer
				if err := json.Indent(&pretty, raw, "", "  "); err != nil {
					return err
				}
				pretty.WriteByte('\n')
				_, err = pretty.WriteTo(cmd.OutOrStdout())
				return err
			})
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write a sample docfill.toml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.InitConfig(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	})
	return cmd
}
