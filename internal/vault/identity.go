package vault

// PrincipalKind tells what sort of entity a credential is bound to.
type PrincipalKind string

const (
	PrincipalTenant PrincipalKind = "tenant"
	PrincipalAgent  PrincipalKind = "agent"
)

// Identity is the resolved owner of a validated credential.
type Identity struct {
	PrincipalID   string
	PrincipalKind PrincipalKind
	TenantID      string
}
