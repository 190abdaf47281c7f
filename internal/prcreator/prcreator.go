// File: internal/prcreator/prcreator.go
package prcreator

import (
	"context"
	"fmt"

	"github.com/codeguard-pro/codeguard/api/schemas"
	"github.com/codeguard-pro/codeguard/internal/forge"
)

// Creator implements schemas.PRCreator on top of a forge.Client.
type Creator struct {
	client *forge.Client
}

func New(client *forge.Client) *Creator {
	return &Creator{client: client}
}

var _ schemas.PRCreator = (*Creator)(nil)

func (c *Creator) CreatePR(ctx context.Context, owner, repo, branch, base, title, body string) (int, string, error) {
	number, url, err := c.client.CreatePR(ctx, owner, repo, branch, base, title, body)
	if err != nil {
		return 0, "", fmt.Errorf("open healing pull request: %w", err)
	}
	return number, url, nil
}

func (c *Creator) UpdatePRBody(ctx context.Context, owner, repo string, number int, body string) error {
	if err := c.client.UpdatePR(ctx, owner, repo, number, body); err != nil {
		return fmt.Errorf("update pull request #%d body: %w", number, err)
	}
	return nil
}
