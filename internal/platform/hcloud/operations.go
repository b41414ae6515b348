package hcloud

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// DeleteOperation deletes one hcloud resource by ID.
//
// Usage example:
//
//	func (c *Client) DeleteVolume(ctx context.Context, id string) error {
//	    return (&DeleteOperation[*hcloud.Volume]{
//	        ID:           id,
//	        ResourceType: "volume",
//	        Get:          c.client.Volume.GetByID,
//	        Delete:       c.client.Volume.Delete,
//	    }).Execute(ctx, c)
//	}
type DeleteOperation[T any] struct {
	ID           string
	ResourceType string

	// Get retrieves the resource by ID. A nil resource means it is gone.
	Get func(ctx context.Context, id int64) (T, *hcloud.Response, error)

	// Delete removes the resource
	Delete func(ctx context.Context, resource T) (*hcloud.Response, error)
}

// Execute performs the delete. It succeeds when the resource does not exist
// and retries while the resource is locked.
func (op *DeleteOperation[T]) Execute(ctx context.Context, client *Client) error {
	id, err := parseID(op.ResourceType, op.ID)
	if err != nil {
		return nil
	}

	return client.withRetry(ctx, func() error {
		resource, _, err := op.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get %s %s: %w", op.ResourceType, op.ID, err)
		}
		if reflect.ValueOf(resource).IsNil() {
			return nil
		}

		if _, err := op.Delete(ctx, resource); err != nil {
			if apiErrorIs(err, hcloud.ErrorCodeNotFound) {
				return nil
			}
			return fmt.Errorf("failed to delete %s %s: %w", op.ResourceType, op.ID, err)
		}
		client.log.V(1).Info("deleted resource", "type", op.ResourceType, "id", op.ID)
		return nil
	})
}

// retryableCodes are reported while another action holds the resource or the
// project is over its rate limit.
var retryableCodes = []hcloud.ErrorCode{
	hcloud.ErrorCodeLocked,
	hcloud.ErrorCodeConflict,
	hcloud.ErrorCodeResourceLocked,
	hcloud.ErrorCodeResourceUnavailable,
	hcloud.ErrorCodeRateLimitExceeded,
}

// retryable reports whether withRetry should try op again.
func retryable(err error) bool {
	return apiErrorIs(err, retryableCodes...)
}

// apiErrorIs reports whether err wraps an API error carrying one of codes.
func apiErrorIs(err error, codes ...hcloud.ErrorCode) bool {
	var apiErr hcloud.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.Code == code {
			return true
		}
	}
	return false
}
