package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/kubecloud/console-agent/internal/model"
)

// RegisterRequest is the payload for account registration.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type taskResponse struct {
	Data struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

type userResponse struct {
	Data model.User `json:"data"`
}

type balanceResponse struct {
	Data model.Balance `json:"data"`
}

type nodesResponse struct {
	Data []model.RentedNode `json:"data"`
}

type deploymentsResponse struct {
	Data []model.ClusterSummary `json:"data"`
}

// GetUser fetches the authenticated account.
func (c *Client) GetUser(ctx context.Context) (*model.User, error) {
	var resp userResponse
	if err := c.get(ctx, "/v1/user/", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// GetBalance fetches the account balance.
func (c *Client) GetBalance(ctx context.Context) (*model.Balance, error) {
	var resp balanceResponse
	if err := c.get(ctx, "/v1/user/balance", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// GetRentedNodes fetches the user's reserved nodes.
func (c *Client) GetRentedNodes(ctx context.Context) ([]model.RentedNode, error) {
	var resp nodesResponse
	if err := c.get(ctx, "/v1/user/nodes", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetClusters fetches the deployment list.
func (c *Client) GetClusters(ctx context.Context) ([]model.ClusterSummary, error) {
	var resp deploymentsResponse
	if err := c.get(ctx, "/v1/deployments", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Register starts the account registration workflow and returns its task id.
func (c *Client) Register(ctx context.Context, req RegisterRequest, opts *RequestOptions) (string, error) {
	var resp taskResponse
	if err := c.post(ctx, "/v1/user/register", req, &resp, opts); err != nil {
		return "", err
	}
	return resp.Data.TaskID, nil
}

// VerifyCode starts the email verification workflow and returns its task id.
func (c *Client) VerifyCode(ctx context.Context, email, code string, opts *RequestOptions) (string, error) {
	body := map[string]string{"email": email, "code": code}
	var resp taskResponse
	if err := c.post(ctx, "/v1/user/register/verify", body, &resp, opts); err != nil {
		return "", err
	}
	return resp.Data.TaskID, nil
}

// ReserveNode starts a node reservation workflow and returns its task id.
func (c *Client) ReserveNode(ctx context.Context, nodeID int64, opts *RequestOptions) (string, error) {
	var resp taskResponse
	if err := c.post(ctx, fmt.Sprintf("/v1/user/nodes/%d", nodeID), nil, &resp, opts); err != nil {
		return "", err
	}
	return resp.Data.TaskID, nil
}

// UnreserveNode starts a node release workflow and returns its task id.
func (c *Client) UnreserveNode(ctx context.Context, nodeID int64, opts *RequestOptions) (string, error) {
	var resp taskResponse
	if err := c.post(ctx, fmt.Sprintf("/v1/user/nodes/unreserve/%d", nodeID), nil, &resp, opts); err != nil {
		return "", err
	}
	return resp.Data.TaskID, nil
}

// ChargeBalance starts a balance top-up workflow and returns its task id.
func (c *Client) ChargeBalance(ctx context.Context, amountUSD float64, opts *RequestOptions) (string, error) {
	body := map[string]float64{"amount_usd": amountUSD}
	var resp taskResponse
	if err := c.post(ctx, "/v1/user/balance/charge", body, &resp, opts); err != nil {
		return "", err
	}
	return resp.Data.TaskID, nil
}

// RedeemVoucher starts a voucher redemption workflow and returns its task id.
func (c *Client) RedeemVoucher(ctx context.Context, code string, opts *RequestOptions) (string, error) {
	var resp taskResponse
	if err := c.post(ctx, "/v1/user/redeem/"+url.PathEscape(code), nil, &resp, opts); err != nil {
		return "", err
	}
	return resp.Data.TaskID, nil
}
