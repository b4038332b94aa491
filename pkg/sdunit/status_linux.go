//go:build linux

package sdunit

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
)

// Query reads the state of name from the system bus.
func Query(ctx context.Context, name string) (Status, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	unit := UnitName(name)
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("connect to systemd: %w", err)
	}
	defer conn.Close()

	props, err := conn.GetUnitPropertiesContext(ctx, unit)
	if err != nil {
		if isNoSuchUnitErr(err) {
			return notFound(unit), nil
		}
		return Status{}, fmt.Errorf("status of %s: %w", unit, err)
	}
	st := fromProps(unit, props)

	// MainPID lives on the service interface, not the unit one.
	if st.Found() && st.MainPID == 0 {
		if p, err := conn.GetServicePropertyContext(ctx, unit, "MainPID"); err == nil {
			if pid, ok := p.Value.Value().(uint32); ok {
				st.MainPID = pid
			}
		}
	}
	return st, nil
}
