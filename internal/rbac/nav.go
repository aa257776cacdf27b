package rbac

import "github.com/gazette-app/gazette/internal/view"

// Nav derives the layout navigation offered to the identity.
func Nav(id Identity, ok bool) view.Nav {
	if !ok {
		return view.Nav{}
	}
	return view.Nav{
		SignedIn:               true,
		Email:                  id.Email,
		RoleLabel:              id.Role.Label(),
		CanCreatePosts:         CanCreatePosts(id),
		CanManagePublishers:    CanManagePublishers(id),
		CanBrowsePublishers:    CanViewPublisherDirectory(id),
		CanAccessAuthorization: CanAccessAuthorizationPanel(id),
	}
}
