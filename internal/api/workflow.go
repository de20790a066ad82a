package api

import (
	"context"
	"net/url"

	"github.com/kubecloud/console-agent/internal/model"
)

type workflowStatusResponse struct {
	Data model.WorkflowStatus `json:"data"`
}

// GetWorkflowStatus fetches the current status of a backend workflow.
func (c *Client) GetWorkflowStatus(ctx context.Context, workflowID string) (model.WorkflowStatus, error) {
	var resp workflowStatusResponse
	if err := c.get(ctx, "/v1/workflow/"+url.PathEscape(workflowID), nil, &resp); err != nil {
		return "", err
	}
	return resp.Data, nil
}
