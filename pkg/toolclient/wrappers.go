package toolclient

import "context"

// Per-service convenience wrappers. They exist so callers dispatching on a
// known service do not need to repeat the service name constant.

func (c *Client) ExecuteGitHub(ctx context.Context, userID, operation string, args map[string]any) (map[string]any, error) {
	return c.Execute(ctx, userID, ServiceGitHub, operation, args)
}

func (c *Client) ExecuteNotion(ctx context.Context, userID, operation string, args map[string]any) (map[string]any, error) {
	return c.Execute(ctx, userID, ServiceNotion, operation, args)
}

func (c *Client) ExecuteSlack(ctx context.Context, userID, operation string, args map[string]any) (map[string]any, error) {
	return c.Execute(ctx, userID, ServiceSlack, operation, args)
}

func (c *Client) ExecuteGoogleWorkspace(ctx context.Context, userID, operation string, args map[string]any) (map[string]any, error) {
	return c.Execute(ctx, userID, ServiceGoogleWorkspace, operation, args)
}

func (c *Client) ExecuteGoogleSheets(ctx context.Context, userID, operation string, args map[string]any) (map[string]any, error) {
	return c.Execute(ctx, userID, ServiceGoogleSheets, operation, args)
}

func (c *Client) ExecuteInstagram(ctx context.Context, userID, operation string, args map[string]any) (map[string]any, error) {
	return c.Execute(ctx, userID, ServiceInstagram, operation, args)
}

func (c *Client) ExecuteTrello(ctx context.Context, userID, operation string, args map[string]any) (map[string]any, error) {
	return c.Execute(ctx, userID, ServiceTrello, operation, args)
}

func (c *Client) ExecuteTwitter(ctx context.Context, userID, operation string, args map[string]any) (map[string]any, error) {
	return c.Execute(ctx, userID, ServiceTwitterX, operation, args)
}

func (c *Client) ExecuteOpenAI(ctx context.Context, userID, operation string, args map[string]any) (map[string]any, error) {
	return c.Execute(ctx, userID, ServiceOpenAI, operation, args)
}

func (c *Client) ExecuteStripe(ctx context.Context, userID, operation string, args map[string]any) (map[string]any, error) {
	return c.Execute(ctx, userID, ServiceStripe, operation, args)
}

func (c *Client) ExecuteTwilio(ctx context.Context, userID, operation string, args map[string]any) (map[string]any, error) {
	return c.Execute(ctx, userID, ServiceTwilio, operation, args)
}
