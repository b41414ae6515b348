package openstack

import (
	"errors"

	"github.com/gophercloud/gophercloud"

	"github.com/imamik/fleetalloc/internal/cloud"
)

// isNotFound checks if an error is an HTTP 404 from any OpenStack service.
func isNotFound(err error) bool {
	var e404 gophercloud.ErrDefault404
	return errors.As(err, &e404)
}

// isRetryable checks if an error is a conflict, a rate limit or a temporary
// service outage.
func isRetryable(err error) bool {
	var (
		e409 gophercloud.ErrDefault409
		e429 gophercloud.ErrDefault429
		e503 gophercloud.ErrDefault503
	)
	return errors.As(err, &e409) || errors.As(err, &e429) || errors.As(err, &e503)
}

func isEndpointNotFound(err error) bool {
	var ptr *gophercloud.ErrEndpointNotFound
	return errors.As(err, &ptr) || errors.As(err, &gophercloud.ErrEndpointNotFound{})
}

// notFound translates a 404 into cloud.ErrNotFound and leaves other errors
// untouched.
func notFound(err error, kind, id string) error {
	if isNotFound(err) {
		return cloud.NotFoundError(kind, id)
	}
	return err
}
