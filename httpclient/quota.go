package httpclient

import (
	"context"

	// Packages
	client "github.com/mutablelogic/go-client"
	collect "github.com/mutablelogic/go-collect"
	schema "github.com/mutablelogic/go-collect/schema"
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Quota returns the current storage usage for the workspace.
func (c *Client) Quota(ctx context.Context, workspace string) (*schema.QuotaSnapshot, error) {
	req := client.NewRequest()

	// Perform request
	var response schema.QuotaSnapshot
	if err := c.DoWithContext(ctx, req, &response, client.OptPath(workspace)); err != nil {
		if ctx.Err() != nil {
			return nil, collect.ErrCancelled
		}
		return nil, err
	}

	// Return the response
	return &response, nil
}
