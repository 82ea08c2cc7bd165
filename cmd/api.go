package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/hego/internal/services"
	"github.com/desertthunder/hego/internal/shared"
	"github.com/urfave/cli/v3"
)

// APIGet makes a direct GET request to the backend through the interceptor chain
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}

	api, err := r.api(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("GET request", "path", path)

	resp, err := api.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	if !resp.OK() {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, resp.Err())
	}

	return r.writeResponse(resp, !cmd.Bool("json"))
}

// APIPost makes a direct POST request to the backend through the interceptor chain
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	data := cmd.String("data")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}

	var jsonTest any
	if err := json.Unmarshal([]byte(data), &jsonTest); err != nil {
		return fmt.Errorf("%w: data is not valid JSON: %v", shared.ErrInvalidInput, err)
	}

	api, err := r.api(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("POST request", "path", path)

	resp, err := api.Post(ctx, path, []byte(data))
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	if !resp.OK() {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, resp.Err())
	}

	return r.writeResponse(resp, true)
}

func (r *Runner) api(ctx context.Context) (*services.APIService, error) {
	if _, err := r.Start(ctx); err != nil {
		return nil, err
	}
	return r.stack.API.Service(), nil
}

func (r *Runner) writeResponse(resp *services.APIResponse, pretty bool) error {
	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, pretty)
	}

	if _, err := r.output.Write(resp.Body); err != nil {
		return err
	}
	_, err := r.output.Write([]byte("\n"))
	return err
}
