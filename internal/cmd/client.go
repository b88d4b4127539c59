package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chwrapper/chwrapper/internal/config"
	apperrors "github.com/chwrapper/chwrapper/internal/errors"
	"github.com/chwrapper/chwrapper/internal/metrics"
	"github.com/chwrapper/chwrapper/internal/observability"
	"github.com/chwrapper/chwrapper/pkg/companieshouse"
)

// extraClientOptions is appended to every client built by newClient.
var extraClientOptions []companieshouse.Option

// flagOverrides turns the global flags the user actually set into config
// overrides. Unset flags leave file and environment values alone.
func flagOverrides(cmd *cobra.Command) (map[string]any, error) {
	flags := cmd.Flags()
	api := map[string]any{}

	if f := flags.Lookup("api-key"); f != nil && f.Changed {
		api["key"] = f.Value.String()
	}
	if f := flags.Lookup("ignore-status"); f != nil && f.Changed {
		codes, err := flags.GetIntSlice("ignore-status")
		if err != nil {
			return nil, err
		}
		api["ignore_status"] = codes
	}
	if f := flags.Lookup("no-raise"); f != nil && f.Changed {
		noRaise, err := flags.GetBool("no-raise")
		if err != nil {
			return nil, err
		}
		api["raise_for_status"] = !noRaise
	}

	overrides := map[string]any{}
	if len(api) > 0 {
		overrides["api"] = api
	}
	if verbose {
		overrides["logging"] = map[string]any{"level": "debug"}
	}
	return overrides, nil
}

// loadConfig resolves the effective configuration for cmd. extra overrides
// are applied after the global flags.
func loadConfig(cmd *cobra.Command, extra ...map[string]any) (*config.Config, error) {
	overrides, err := flagOverrides(cmd)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(cmd.Context(), viper.GetViper(), append([]map[string]any{overrides}, extra...)...)
	if err != nil {
		return nil, apperrors.WrapConfigInvalid(cmd.Context(), err, "invalid configuration: "+err.Error())
	}
	return cfg, nil
}

// newClient builds a registry session from cfg. Logging and metrics go to
// whatever observability has initialized.
func newClient(cfg *config.Config) (*companieshouse.Client, error) {
	opts := []companieshouse.Option{
		companieshouse.WithToken(cfg.API.Key),
		companieshouse.WithBaseURL(cfg.API.BaseURL),
		companieshouse.WithDocumentURL(cfg.API.DocumentURL),
		companieshouse.WithTimeout(cfg.API.Timeout),
		companieshouse.WithUserAgent(cfg.API.UserAgent),
		companieshouse.WithSafetyMargin(cfg.RateLimit.SafetyMargin),
		companieshouse.WithIgnoredStatuses(cfg.API.IgnoreStatus...),
		companieshouse.WithLogger(observability.ClientLogger()),
		companieshouse.WithObserver(metrics.RegistryObserver{}),
	}
	if pacer := companieshouse.NewPacer(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst); pacer != nil {
		opts = append(opts, companieshouse.WithPacer(pacer))
	}
	opts = append(opts, extraClientOptions...)

	client, err := companieshouse.New(opts...)
	if err != nil {
		return nil, err
	}
	if client.Token() == "" && observability.CLILogger != nil {
		observability.CLILogger.Warn("No API key configured; requests will be sent unauthenticated")
	}
	return client, nil
}

// callOptions builds per-call options from --param and the raise setting.
func callOptions(cmd *cobra.Command, cfg *config.Config) ([]companieshouse.CallOption, error) {
	raw, err := cmd.Flags().GetStringArray("param")
	if err != nil {
		return nil, err
	}
	params, err := parseParams(raw)
	if err != nil {
		return nil, apperrors.WrapInvalidInput(cmd.Context(), err, err.Error())
	}

	var opts []companieshouse.CallOption
	if len(params) > 0 {
		opts = append(opts, companieshouse.WithParams(params))
	}
	if !cfg.API.RaiseForStatus {
		opts = append(opts, companieshouse.WithoutRaise())
	}
	return opts, nil
}

// parseParams reads key=value pairs. Repeated keys keep every value.
func parseParams(raw []string) (url.Values, error) {
	params := url.Values{}
	for _, pair := range raw {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q: expected key=value", pair)
		}
		params.Add(key, value)
	}
	return params, nil
}
