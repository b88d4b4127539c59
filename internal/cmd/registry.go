package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apperrors "github.com/chwrapper/chwrapper/internal/errors"
	"github.com/chwrapper/chwrapper/internal/observability"
	"github.com/chwrapper/chwrapper/internal/output"
	"github.com/chwrapper/chwrapper/pkg/companieshouse"
)

var errInvalidJSON = errors.New("response body is not valid JSON")

// registryCall issues one request against the registry.
type registryCall func(ctx context.Context, client *companieshouse.Client, opts ...companieshouse.CallOption) (*companieshouse.Result, error)

// runRegistry loads config, builds a client, performs call and renders the
// JSON payload under title.
func runRegistry(cmd *cobra.Command, title string, call registryCall) error {
	formatValue, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(formatValue)
	if err != nil {
		return apperrors.WrapInvalidInput(cmd.Context(), err, err.Error())
	}

	result, err := fetch(cmd, call)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), format, title, result)
}

// fetch performs call with a client built from the effective configuration.
// Registry errors come back as envelopes.
func fetch(cmd *cobra.Command, call registryCall) (*companieshouse.Result, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	client, err := newClient(cfg)
	if err != nil {
		return nil, apperrors.FromRegistryError(cmd.Context(), err)
	}
	opts, err := callOptions(cmd, cfg)
	if err != nil {
		return nil, err
	}

	result, err := call(cmd.Context(), client, opts...)
	if err != nil {
		return nil, apperrors.FromRegistryError(cmd.Context(), err)
	}
	return result, nil
}

func render(w io.Writer, format output.Format, title string, result *companieshouse.Result) error {
	if result.Ignored() {
		_, err := fmt.Fprintln(w, output.IgnoredNotice(title, result.StatusCode))
		return err
	}

	if result.StatusCode >= 400 && observability.CLILogger != nil {
		observability.CLILogger.Warn("Registry returned an error status",
			zap.String("resource", title),
			zap.Int("status", result.StatusCode))
	}

	data, err := result.Bytes()
	if err != nil {
		return apperrors.WrapExternalService(context.Background(), err, "unreadable registry response")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		_, err := fmt.Fprintln(w, output.EmptyNotice(title, result.StatusCode))
		return err
	}
	if !json.Valid(data) {
		return apperrors.WrapExternalService(context.Background(), errInvalidJSON, "unreadable registry response")
	}

	rendered, err := output.NewFormatter(format).Format(title, json.RawMessage(data))
	if err != nil {
		return err
	}
	if rendered == "" {
		return nil
	}
	_, err = fmt.Fprintln(w, rendered)
	return err
}
