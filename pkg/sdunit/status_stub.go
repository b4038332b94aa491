//go:build !linux

package sdunit

import "context"

func Query(ctx context.Context, name string) (Status, error) {
	return Status{}, ErrUnsupported
}
