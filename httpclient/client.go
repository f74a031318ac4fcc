package httpclient

import (
	"strings"

	// Packages
	client "github.com/mutablelogic/go-client"
	collect "github.com/mutablelogic/go-collect"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Client is a collection HTTP client that wraps the base HTTP client and
// provides typed methods for uploading files and querying workspace quota.
type Client struct {
	*client.Client
	endpoint string
}

var _ collect.Transport = (*Client)(nil)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates a new collection HTTP client with the given base URL and
// options. The url parameter should point to the collection API endpoint,
// e.g. "http://localhost:8080/api/collect".
func New(url string, opts ...client.ClientOpt) (*Client, error) {
	c := new(Client)
	cl, err := client.New(append(opts, client.OptEndpoint(url))...)
	if err != nil {
		return nil, err
	}
	c.Client = cl
	c.endpoint = strings.TrimSuffix(url, "/")
	return c, nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Endpoint returns the base URL the client was created with
func (c *Client) Endpoint() string {
	return c.endpoint
}
