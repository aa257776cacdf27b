package rbac

// Capability is a named permission granted to zero or more roles.
type Capability string

const (
	CapCreatePosts              Capability = "posts.create"
	CapManagePublishers         Capability = "publishers.manage"
	CapViewPublisherDirectory   Capability = "publishers.directory"
	CapManageUsers              Capability = "users.manage"
	CapAccessAuthorizationPanel Capability = "authorization.panel"
)

// Capabilities lists every capability in display order.
func Capabilities() []Capability {
	return []Capability{
		CapCreatePosts,
		CapViewPublisherDirectory,
		CapManagePublishers,
		CapManageUsers,
		CapAccessAuthorizationPanel,
	}
}

// Description is the human readable text shown in capability listings.
func (c Capability) Description() string {
	switch c {
	case CapCreatePosts:
		return "Create and manage own posts"
	case CapViewPublisherDirectory:
		return "Browse the publisher directory"
	case CapManagePublishers:
		return "Manage publishers"
	case CapManageUsers:
		return "Manage all users and their roles"
	case CapAccessAuthorizationPanel:
		return "Access the authorization panel"
	default:
		return string(c)
	}
}

// Grants is the single decision table mapping roles to capabilities.
func Grants(role Role, c Capability) bool {
	switch c {
	case CapCreatePosts:
		return createsPosts(role)
	case CapManagePublishers:
		return managesPublishers(role)
	case CapViewPublisherDirectory:
		return seesPublisherDirectory(role)
	case CapManageUsers, CapAccessAuthorizationPanel:
		return isMaster(role)
	default:
		return false
	}
}

// Allowed reports whether an authenticated identity holds the capability.
func Allowed(id Identity, c Capability) bool {
	return id.Authenticated() && Grants(id.Role, c)
}

// CanCreatePosts reports whether the identity may author posts.
func CanCreatePosts(id Identity) bool { return Allowed(id, CapCreatePosts) }

// CanManagePublishers reports whether the identity may create, edit or delete publishers.
func CanManagePublishers(id Identity) bool { return Allowed(id, CapManagePublishers) }

// CanViewPublisherDirectory reports whether the identity is offered the publisher directory.
// Admins are excluded even though they manage publishers.
func CanViewPublisherDirectory(id Identity) bool { return Allowed(id, CapViewPublisherDirectory) }

// CanManageUsers reports whether the identity may list users and change their roles.
func CanManageUsers(id Identity) bool { return Allowed(id, CapManageUsers) }

// CanAccessAuthorizationPanel reports whether the identity may use the authorization panel.
func CanAccessAuthorizationPanel(id Identity) bool {
	return Allowed(id, CapAccessAuthorizationPanel)
}

// IsOwner reports whether the identity owns the resource. Roles never bypass ownership.
func IsOwner(id Identity, res Owned) bool {
	if res == nil || !id.Authenticated() {
		return false
	}
	return id.ID == res.OwnerID()
}

// CapabilitiesFor returns the capabilities granted to role, in display order.
func CapabilitiesFor(role Role) []Capability {
	granted := make([]Capability, 0, len(Capabilities()))
	for _, c := range Capabilities() {
		if Grants(role, c) {
			granted = append(granted, c)
		}
	}
	return granted
}

// CapabilityListing returns the descriptions of every capability granted to role.
func CapabilityListing(role Role) []string {
	caps := CapabilitiesFor(role)
	listing := make([]string, len(caps))
	for i, c := range caps {
		listing[i] = c.Description()
	}
	return listing
}

func createsPosts(role Role) bool {
	switch role {
	case RoleUser:
		return true
	case RoleAdmin, RoleMaster:
		return false
	default:
		return false
	}
}

func managesPublishers(role Role) bool {
	switch role {
	case RoleAdmin, RoleMaster:
		return true
	case RoleUser:
		return false
	default:
		return false
	}
}

func seesPublisherDirectory(role Role) bool {
	switch role {
	case RoleUser, RoleMaster:
		return true
	case RoleAdmin:
		return false
	default:
		return false
	}
}

func isMaster(role Role) bool {
	switch role {
	case RoleMaster:
		return true
	case RoleUser, RoleAdmin:
		return false
	default:
		return false
	}
}
