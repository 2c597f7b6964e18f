package cmd

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/urlbot/internal/buildinfo"
	"github.com/JakeFAU/urlbot/internal/config"
	"github.com/JakeFAU/urlbot/internal/logging"
	"github.com/JakeFAU/urlbot/internal/plugins"
	"github.com/JakeFAU/urlbot/internal/retriever"
	"github.com/JakeFAU/urlbot/internal/title"
)

type getOptions struct {
	userAgent  string
	acceptLang string
	timeout    time.Duration
	redirects  int
	retries    int
	retryDelay time.Duration
	metadata   bool
	mime       bool
	curl       bool
	plugins    bool
	plugin     string
	generate   bool
}

func newGetCmd(root *rootOptions) *cobra.Command {
	opts := &getOptions{}
	cmd := &cobra.Command{
		Use:   "get [URL]",
		Short: "Resolves a single URL and prints its title",
		Long: `get runs the same retrieval and extraction the bot uses for one URL.
With --plugin the named plugin resolves the URL using credentials from
--conf; --generate writes an empty plugin credential file to --conf.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, root, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.userAgent, "user-agent", "", "user agent (default "+buildinfo.UserAgent()+")")
	flags.StringVar(&opts.acceptLang, "accept-lang", retriever.DefaultAcceptLang, "Accept-Language header")
	flags.DurationVar(&opts.timeout, "timeout", retriever.DefaultTimeout, "per-request timeout")
	flags.IntVar(&opts.redirects, "redirect", retriever.DefaultMaxRedirects, "maximum redirects to follow")
	flags.IntVar(&opts.retries, "retries", 0, "retries on server errors")
	flags.DurationVar(&opts.retryDelay, "retry-delay", 0, "delay between retries")
	flags.BoolVar(&opts.metadata, "metadata", false, "report image dimensions")
	flags.BoolVar(&opts.mime, "mime", false, "report content type and size when no title is found")
	flags.BoolVar(&opts.curl, "curl", false, "dump the response body instead of the title")
	flags.BoolVar(&opts.plugins, "plugins", false, "list available plugins")
	flags.StringVar(&opts.plugin, "plugin", "", "resolve with the named plugin (requires --conf)")
	flags.BoolVar(&opts.generate, "generate", false, "write a plugin configuration template to --conf")

	return cmd
}

func runGet(cmd *cobra.Command, root *rootOptions, opts *getOptions, args []string) error {
	out := cmd.OutOrStdout()
	registry := plugins.Default()

	if opts.plugins {
		for _, name := range plugins.Names(registry) {
			fmt.Fprintln(out, name)
		}
		return nil
	}
	if opts.generate {
		path, err := singleConf(root)
		if err != nil {
			return err
		}
		if err := config.WritePluginsTemplate(path); err != nil {
			return err
		}
		fmt.Fprintln(out, "wrote", path)
		return nil
	}
	if len(args) != 1 {
		return errors.New("a URL is required")
	}

	logger, err := logging.New(root.verbose)
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ret := retriever.New(retriever.Options{
		Timeout:      opts.timeout,
		MaxRedirects: opts.redirects,
		MaxRetries:   opts.retries,
		RetryDelay:   opts.retryDelay,
		AcceptLang:   opts.acceptLang,
		UserAgent:    opts.userAgent,
	}, logger.Named("retriever"))
	ctx := cmd.Context()

	if opts.plugin != "" {
		p, ok := plugins.Find(registry, opts.plugin)
		if !ok {
			return fmt.Errorf("unknown plugin %q (available: %s)", opts.plugin, strings.Join(plugins.Names(registry), ", "))
		}
		path, err := singleConf(root)
		if err != nil {
			return err
		}
		pcfg, err := config.LoadPlugins(config.ExpandTilde(path))
		if err != nil {
			return err
		}
		u, err := url.Parse(args[0])
		if err != nil {
			return fmt.Errorf("parse url: %w", err)
		}
		if !p.Check(pcfg, u) {
			return fmt.Errorf("plugin %s does not handle %s", p.Name(), args[0])
		}
		t, err := p.Evaluate(ctx, plugins.Runtime{Fetcher: ret, Config: pcfg}, u)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, t)
		return nil
	}

	resp, err := ret.Request(ctx, args[0])
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if opts.curl {
		if _, err := io.Copy(out, resp.Body); err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}
	t, err := title.Extract(ctx, resp, title.Features{ReportMetadata: opts.metadata, ReportMime: opts.mime})
	if err != nil {
		logger.Debug("extraction failed", zap.Int("status", resp.StatusCode), zap.String("content_type", resp.Header.Get("Content-Type")))
		return err
	}
	fmt.Fprintln(out, t)
	return nil
}

func singleConf(root *rootOptions) (string, error) {
	if len(root.confs) != 1 {
		return "", errors.New("exactly one --conf file is required")
	}
	return root.confs[0], nil
}
