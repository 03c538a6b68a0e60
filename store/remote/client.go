// Package remote implements a filter store over an http api.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	nt "sieve/entity"
)

// Config configures a Client.
type Config struct {
	BaseUrl string        `yaml:"base_url" validate:"required,url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// Client is a filter store backed by a remote api.
// Requests are not retried.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	logger nt.Logger
}

// New creates a Client.
func (cfg *Config) New(lgr nt.Logger) (client *Client, err error) {

	err = validator.New().Struct(cfg)
	if err != nil {
		err = errors.Wrapf(err, "invalid remote config")
		return
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseUrl, "/"))
	if err != nil {
		err = errors.Wrapf(err, "failed to parse base url %q", cfg.BaseUrl)
		return
	}
	if base.Scheme == "" || base.Host == "" {
		err = errors.Errorf("base url %q must be absolute", cfg.BaseUrl)
		return
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if lgr == nil {
		lgr = nt.Quiet{}
	}

	client = &Client{
		base:   base,
		token:  cfg.Token,
		http:   &http.Client{Timeout: timeout},
		logger: lgr,
	}
	return
}

// StatusError is a non-2xx response.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (se *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", se.Method, se.Path, se.Status, se.Message)
}

// Fetch a filter by id.
func (client *Client) Fetch(ctx context.Context, id string) (flt nt.Filter, err error) {

	err = client.do(ctx, http.MethodGet, "/filters/"+url.PathEscape(id), nil, nil, &flt)
	err = errors.Wrapf(err, "failed to fetch filter %s", id)
	return
}

// List filters matching query.
func (client *Client) List(ctx context.Context, query nt.Params) (flts []nt.Filter, err error) {

	err = client.do(ctx, http.MethodGet, "/filters", query.Values(), nil, &flts)
	err = errors.Wrapf(err, "failed to list filters")
	return
}

// Create a filter.
func (client *Client) Create(ctx context.Context, flt nt.Filter) (created nt.Filter, err error) {

	err = client.do(ctx, http.MethodPost, "/filters", nil, flt, &created)
	err = errors.Wrapf(err, "failed to create filter %q", flt.Name)
	return
}

// Update a filter.
func (client *Client) Update(ctx context.Context, flt nt.Filter) (updated nt.Filter, err error) {

	err = client.do(ctx, http.MethodPut, "/filters/"+url.PathEscape(flt.Id), nil, flt, &updated)
	err = errors.Wrapf(err, "failed to update filter %s", flt.Id)
	return
}

// CreateInstance of a filter.
func (client *Client) CreateInstance(ctx context.Context, filterId string, inst nt.Instance) (created nt.Instance, err error) {

	path := fmt.Sprintf("/filters/%s/instances", url.PathEscape(filterId))
	err = client.do(ctx, http.MethodPost, path, nil, inst, &created)
	err = errors.Wrapf(err, "failed to create instance of %s for %s", filterId, inst.TargetRef)
	return
}

// UpdateInstance of a filter.
func (client *Client) UpdateInstance(ctx context.Context, inst nt.Instance) (updated nt.Instance, err error) {

	err = client.do(ctx, http.MethodPut, "/filter-instances/"+url.PathEscape(inst.Id), nil, inst, &updated)
	err = errors.Wrapf(err, "failed to update instance %s", inst.Id)
	return
}

// unexported

func (client *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) (err error) {

	var body io.Reader
	if in != nil {
		var data []byte
		data, err = json.Marshal(in)
		if err != nil {
			err = errors.Wrapf(err, "failed to marshal request")
			return
		}
		body = bytes.NewReader(data)
	}

	endpoint := *client.base
	endpoint.Path = client.base.Path + path
	endpoint.RawQuery = query.Encode()

	request, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		err = errors.Wrapf(err, "failed to create request")
		return
	}
	request.Header.Set("Accept", "application/json")
	if in != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if client.token != "" {
		request.Header.Set("Authorization", "Bearer "+client.token)
	}

	start := time.Now()
	response, err := client.http.Do(request)
	if err != nil {
		err = errors.Wrapf(err, "failed to send request")
		return
	}
	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		err = errors.Wrapf(err, "failed to read response")
		return
	}

	client.logger.Info(ctx, "remote store request",
		"method", method, "path", path, "status", response.StatusCode, "elapsed", time.Since(start).String())

	if response.StatusCode < 200 || response.StatusCode > 299 {
		err = &StatusError{
			Method:  method,
			Path:    path,
			Status:  response.StatusCode,
			Message: message(data, response.Status),
		}
		return
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return
	}

	err = json.Unmarshal(data, out)
	err = errors.Wrapf(err, "failed to unmarshal response")
	return
}

// message digs an explanation out of an error body.
func message(data []byte, status string) string {

	body := struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}{}
	if json.Unmarshal(data, &body) == nil {
		switch {
		case body.Message != "":
			return body.Message
		case body.Error != "":
			return body.Error
		}
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return status
	}
	return text
}
