// Package policy implements access decisions for the archive: owners may
// touch their own tree, administrators may touch anyone's.
package policy

import "github.com/archivehub/archivehub/internal/domain"

type staticAccessPolicy struct {
	admins map[string]struct{}
}

type StaticAccessPolicyDependencies struct {
	// AdminIDs is the set of identities granted the admin override.
	AdminIDs []string
}

// NewStaticAccessPolicy builds an AccessPolicy from a fixed admin allow-list.
func NewStaticAccessPolicy(deps StaticAccessPolicyDependencies) domain.AccessPolicy {
	admins := make(map[string]struct{}, len(deps.AdminIDs))
	for _, id := range deps.AdminIDs {
		if id != "" {
			admins[id] = struct{}{}
		}
	}

	return &staticAccessPolicy{admins: admins}
}

func (p *staticAccessPolicy) CanAccess(actingID, resourceOwnerID string) bool {
	if actingID == "" {
		return false
	}
	if actingID == resourceOwnerID {
		return true
	}
	return p.IsAdmin(actingID)
}

func (p *staticAccessPolicy) IsAdmin(actingID string) bool {
	_, ok := p.admins[actingID]
	return ok
}
