package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kubecloud/console-agent/internal/api"
	"github.com/kubecloud/console-agent/internal/model"
)

// Store is the durable notification backend, implemented by *api.Client.
type Store interface {
	ListNotifications(ctx context.Context, limit, offset int) (*api.NotificationPage, error)
	ListUnreadNotifications(ctx context.Context, limit, offset int) (*api.NotificationPage, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkNotificationUnread(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
	DeleteAllNotifications(ctx context.Context) error
}

// CenterConfig sets toast lifetimes and the durable page size.
type CenterConfig struct {
	ToastDuration      time.Duration
	ErrorToastDuration time.Duration
	PageSize           int
}

// Center owns the live toast set and a cached mirror of the durable
// notification list.
type Center struct {
	cfg    CenterConfig
	store  Store
	logger *slog.Logger

	mu     sync.Mutex
	toasts map[string]model.Notification
	timers map[string]*time.Timer
	stored []model.Notification
	count  int
}

// NewCenter creates a Center. The store may be nil for a toast-only center;
// durable operations then return nothing.
func NewCenter(cfg CenterConfig, store Store, logger *slog.Logger) *Center {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ToastDuration == 0 {
		cfg.ToastDuration = 5 * time.Second
	}
	if cfg.ErrorToastDuration == 0 {
		cfg.ErrorToastDuration = 8 * time.Second
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 50
	}

	return &Center{
		cfg:    cfg,
		store:  store,
		logger: logger,
		toasts: make(map[string]model.Notification),
		timers: make(map[string]*time.Timer),
	}
}

// SetStore attaches the durable backend after construction, for wiring
// orders where the REST client needs the center first.
func (c *Center) SetStore(store Store) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = store
}

func (c *Center) getStore() Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store
}

// Notify adds a toast and returns its id. Transient toasts self-dismiss
// after their duration; persistent ones stay until removed.
func (c *Center) Notify(n model.Notification) string {
	if n.ID == "" {
		n.ID = "toast-" + uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Severity == "" {
		n.Severity = model.SeverityInfo
	}
	if !n.Persistent && n.Duration == 0 {
		if n.Severity == model.SeverityError {
			n.Duration = c.cfg.ErrorToastDuration
		} else {
			n.Duration = c.cfg.ToastDuration
		}
	}

	c.mu.Lock()
	c.toasts[n.ID] = n
	if !n.Persistent {
		id := n.ID
		c.timers[id] = time.AfterFunc(n.Duration, func() {
			c.Remove(id)
		})
	}
	c.mu.Unlock()

	return n.ID
}

// Success shows a transient success toast.
func (c *Center) Success(message string) string {
	return c.Notify(model.Notification{
		Severity: model.SeveritySuccess,
		Payload:  map[string]string{"message": message},
	})
}

// Error shows a transient error toast. Errors linger longer than the rest.
func (c *Center) Error(message string) string {
	return c.Notify(model.Notification{
		Severity: model.SeverityError,
		Payload:  map[string]string{"message": message},
	})
}

// Warning shows a transient warning toast.
func (c *Center) Warning(message string) string {
	return c.Notify(model.Notification{
		Severity: model.SeverityWarning,
		Payload:  map[string]string{"message": message},
	})
}

// Info shows a transient info toast.
func (c *Center) Info(message string) string {
	return c.Notify(model.Notification{
		Severity: model.SeverityInfo,
		Payload:  map[string]string{"message": message},
	})
}

// Loading shows a persistent toast that stays until Remove is called.
func (c *Center) Loading(message string) string {
	return c.Notify(model.Notification{
		Severity:   model.SeverityInfo,
		Payload:    map[string]string{"message": message},
		Persistent: true,
	})
}

// Remove dismisses a toast and stops its timer. Unknown ids are ignored.
func (c *Center) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if timer, ok := c.timers[id]; ok {
		timer.Stop()
		delete(c.timers, id)
	}
	delete(c.toasts, id)
}

// Toasts returns the live toast set, newest last.
func (c *Center) Toasts() []model.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.Notification, 0, len(c.toasts))
	for _, n := range c.toasts {
		out = append(out, n)
	}
	return out
}

// Reset dismisses every toast and drops the cached durable list. Called on
// logout.
func (c *Center) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, timer := range c.timers {
		timer.Stop()
		delete(c.timers, id)
	}
	c.toasts = make(map[string]model.Notification)
	c.stored = nil
	c.count = 0
}

// Load fetches a page of the durable notification list into the cache.
func (c *Center) Load(ctx context.Context, offset int) error {
	store := c.getStore()
	if store == nil {
		return nil
	}
	page, err := store.ListNotifications(ctx, c.cfg.PageSize, offset)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.stored = page.Notifications
	c.count = page.Count
	c.mu.Unlock()
	return nil
}

// LoadUnread fetches a page of unread notifications into the cache.
func (c *Center) LoadUnread(ctx context.Context, offset int) error {
	store := c.getStore()
	if store == nil {
		return nil
	}
	page, err := store.ListUnreadNotifications(ctx, c.cfg.PageSize, offset)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.stored = page.Notifications
	c.count = page.Count
	c.mu.Unlock()
	return nil
}

// Notifications returns the cached durable list.
func (c *Center) Notifications() []model.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Notification(nil), c.stored...)
}

// UnreadCount returns the number of unread notifications in the cache.
func (c *Center) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	unread := 0
	for _, n := range c.stored {
		if n.Status == model.StatusUnread {
			unread++
		}
	}
	return unread
}

// MarkRead marks one notification read in the store and the cache.
func (c *Center) MarkRead(ctx context.Context, id string) error {
	store := c.getStore()
	if store == nil {
		return nil
	}
	if err := store.MarkNotificationRead(ctx, id); err != nil {
		return err
	}
	c.setStatus(id, model.StatusRead)
	return nil
}

// MarkUnread marks one notification unread in the store and the cache.
func (c *Center) MarkUnread(ctx context.Context, id string) error {
	store := c.getStore()
	if store == nil {
		return nil
	}
	if err := store.MarkNotificationUnread(ctx, id); err != nil {
		return err
	}
	c.setStatus(id, model.StatusUnread)
	return nil
}

// MarkAllRead marks every notification read.
func (c *Center) MarkAllRead(ctx context.Context) error {
	store := c.getStore()
	if store == nil {
		return nil
	}
	if err := store.MarkAllNotificationsRead(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	for i := range c.stored {
		c.stored[i].Status = model.StatusRead
	}
	c.mu.Unlock()
	return nil
}

// Delete removes one notification from the store and the cache.
func (c *Center) Delete(ctx context.Context, id string) error {
	store := c.getStore()
	if store == nil {
		return nil
	}
	if err := store.DeleteNotification(ctx, id); err != nil {
		return err
	}

	c.mu.Lock()
	for i, n := range c.stored {
		if n.ID == id {
			c.stored = append(c.stored[:i], c.stored[i+1:]...)
			c.count--
			break
		}
	}
	c.mu.Unlock()
	return nil
}

// DeleteAll clears the durable notification list.
func (c *Center) DeleteAll(ctx context.Context) error {
	store := c.getStore()
	if store == nil {
		return nil
	}
	if err := store.DeleteAllNotifications(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.stored = nil
	c.count = 0
	c.mu.Unlock()
	return nil
}

func (c *Center) setStatus(id string, status model.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.stored {
		if n.ID == id {
			c.stored[i].Status = status
			if status == model.StatusRead {
				now := time.Now()
				c.stored[i].ReadAt = &now
			} else {
				c.stored[i].ReadAt = nil
			}
			return
		}
	}
}
