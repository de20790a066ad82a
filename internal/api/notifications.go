package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/kubecloud/console-agent/internal/model"
)

// NotificationPage is one page of the durable notification list.
type NotificationPage struct {
	Notifications []model.Notification `json:"notifications"`
	Limit         int                  `json:"limit"`
	Offset        int                  `json:"offset"`
	Count         int                  `json:"count"`
}

type notificationListResponse struct {
	Data NotificationPage `json:"data"`
}

func pageQuery(limit, offset int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return q
}

// ListNotifications fetches a page of stored notifications, newest first.
func (c *Client) ListNotifications(ctx context.Context, limit, offset int) (*NotificationPage, error) {
	var resp notificationListResponse
	if err := c.get(ctx, "/v1/notifications", pageQuery(limit, offset), &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// ListUnreadNotifications fetches a page of unread notifications.
func (c *Client) ListUnreadNotifications(ctx context.Context, limit, offset int) (*NotificationPage, error) {
	var resp notificationListResponse
	if err := c.get(ctx, "/v1/notifications/unread", pageQuery(limit, offset), &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// MarkNotificationRead marks one stored notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.patch(ctx, "/v1/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

// MarkNotificationUnread marks one stored notification as unread.
func (c *Client) MarkNotificationUnread(ctx context.Context, id string) error {
	return c.patch(ctx, "/v1/notifications/"+url.PathEscape(id)+"/unread", nil, nil)
}

// MarkAllNotificationsRead marks every stored notification as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.patch(ctx, "/v1/notifications/read-all", nil, nil)
}

// DeleteNotification removes one stored notification.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.del(ctx, "/v1/notifications/"+url.PathEscape(id))
}

// DeleteAllNotifications removes every stored notification.
func (c *Client) DeleteAllNotifications(ctx context.Context) error {
	return c.del(ctx, "/v1/notifications")
}
