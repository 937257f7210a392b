package database

import (
	"strings"

	"github.com/answergrid/groundwork/helper"
	"github.com/answergrid/groundwork/model"
)

// requireTenant validates the tenant identifier for every store operation.
// This is the single choke point for tenant scoping: every public handler
// method calls it before touching the database, and every SQL function
// filters by the tenant it is given. An empty tenant is always fatal to the
// call and never silently defaulted.
func requireTenant(tenant string) (string, error) {
	trimmed := strings.TrimSpace(tenant)
	if trimmed == "" {
		return "", helper.NewError("tenant validation", model.ErrInvalidTenant)
	}
	return trimmed, nil
}
